package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [location]",
	Short: "Interactive weather view",
	Long: `Open a full-screen view of the current weather.

Keys:
  1-4, ←/→   switch location
  r          retry the last fetch
  p          request location access
  g / d      grant / deny location access
  q          quit

Log output is suppressed while the view is open unless --debug is set.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: selectorKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		var requested *model.Selector
		if len(args) == 1 {
			sel, err := model.ParseSelector(args[0])
			if err != nil {
				return err
			}
			requested = &sel
		}

		deps, err := buildDeps(nil)
		if err != nil {
			return err
		}
		defer deps.Close()

		if !globalFlags.Debug {
			globalFlags.Quiet = true
			setupLogging(cmd.ErrOrStderr())
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		orch := deps.Orchestrator
		states, unsubscribe := orch.Subscribe()
		defer unsubscribe()
		go func() { _ = orch.Run(ctx) }()
		defer func() {
			cancel()
			<-orch.Done()
		}()

		if requested != nil && *requested != orch.Selected() {
			orch.SelectLocation(*requested)
		} else {
			orch.FetchWeather()
		}

		p := tea.NewProgram(tui.NewModel(orch, deps.Location, states), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running interactive view: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
