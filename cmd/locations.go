package cmd

import (
	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List the selectable locations",
	Long: `List every location nimbus can show, in display order. The remembered
selection is marked with *.`,
	Example: `  nimbus locations
  nimbus locations --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(nil)
		if err != nil {
			return err
		}
		defer deps.Close()

		orch := deps.Orchestrator
		result := buildLocationsResult(cmd.CommandPath(), orch.AvailableLocations(), orch.Selected())
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(locationsCmd)
}
