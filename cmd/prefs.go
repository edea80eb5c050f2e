package cmd

import (
	"fmt"

	"github.com/derickschaefer/nimbus/internal/store"
	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect and manage saved preferences",
	Long: `Commands for inspecting and clearing the local bbolt preferences database.

nimbus remembers the last selected location here. Weather itself is never
written to disk.`,
}

// openStore opens the preferences database named by the resolved config.
// Unlike buildDeps it does not require an API key.
func openStore() (*store.Store, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DBPath)
}

// ─── prefs show ───────────────────────────────────────────────────────────────

var prefsShowCmd = &cobra.Command{
	Use:     "show",
	Short:   "List saved preferences",
	Example: `  nimbus prefs show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		prefs, err := db.List()
		if err != nil {
			return fmt.Errorf("reading preferences: %w", err)
		}
		if len(prefs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved preferences.")
			return nil
		}
		printSimpleTable(cmd.OutOrStdout(), []string{"KEY", "VALUE", "UPDATED AT"}, func(add func(...string)) {
			for _, p := range prefs {
				add(p.Key, p.Value, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
		})
		return nil
	},
}

// ─── prefs clear ──────────────────────────────────────────────────────────────

var prefsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved preference",
	Long: `Delete every saved preference. The next run starts from the current
position, as on first use.`,
	Example: `  nimbus prefs clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared saved preferences")
		return nil
	},
}

// ─── prefs stats ──────────────────────────────────────────────────────────────

var prefsStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show database location, schema and bucket sizes",
	Example: `  nimbus prefs stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		info, err := db.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", info.Path)
		fmt.Fprintf(out, "Schema:   v%d", info.SchemaVersion)
		if !info.CreatedAt.IsZero() {
			fmt.Fprintf(out, " (created %s)", info.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprint(out, "\n\n")
		printSimpleTable(out, []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, b := range info.Buckets {
				add(b.Name, fmt.Sprintf("%d", b.Count), humanBytes(b.Bytes))
			}
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsClearCmd)
	prefsCmd.AddCommand(prefsStatsCmd)
}
