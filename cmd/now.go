package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/render"
	"github.com/spf13/cobra"
)

var nowWait time.Duration

var nowCmd = &cobra.Command{
	Use:   "now [location]",
	Short: "Show the current weather for a location",
	Long: `Fetch and print the current weather once.

With no argument the last selected location is used (the current position
on first run). Naming a location selects it and remembers it for next time.

Locations: current, london, montevideo, buenosAires`,
	Example: `  nimbus now
  nimbus now london
  nimbus now montevideo --format json
  nimbus now current --wait 30s`,
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

		deps, err := buildDeps(terminalPrompter())
		if err != nil {
			return err
		}
		defer deps.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, nowWait)
		defer cancel()

		orch := deps.Orchestrator
		states, unsubscribe := orch.Subscribe()
		defer unsubscribe()

		runCtx, stopRun := context.WithCancel(ctx)
		go func() { _ = orch.Run(runCtx) }()
		defer func() {
			stopRun()
			<-orch.Done()
		}()

		started := time.Now()
		target := orch.Selected()
		if requested != nil && *requested != target {
			target = *requested
			orch.SelectLocation(target)
		} else {
			orch.FetchWeather()
		}

		format := resolveFormat(deps.Config.Format)
		for {
			select {
			case <-ctx.Done():
				return waitError(ctx, target)
			case st, ok := <-states:
				if !ok {
					return waitError(ctx, target)
				}
				switch st := st.(type) {
				case model.StateLoaded:
					if st.Stale {
						continue
					}
					return emit(cmd.OutOrStdout(), buildReportResult(cmd.CommandPath(), target, st, false, started), format)
				case model.StateError:
					if format == render.FormatJSON {
						_ = emit(cmd.OutOrStdout(), buildStateResult(cmd.CommandPath(), target, st), format)
					}
					return fmt.Errorf("%s\n%s", st.Message, st.Reason.Suggestion())
				}
			}
		}
	},
}

func waitError(ctx context.Context, target model.Selector) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("no weather for %s after %s", target.DisplayName(), nowWait)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return errors.New("orchestrator stopped")
	}
}

func init() {
	rootCmd.AddCommand(nowCmd)
	nowCmd.Flags().DurationVar(&nowWait, "wait", 60*time.Second,
		"give up if no weather arrives within this long (includes location lookup and retries)")
}
