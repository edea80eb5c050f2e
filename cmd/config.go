package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/nimbus/internal/config"
	"github.com/derickschaefer/nimbus/internal/owm"
	"github.com/derickschaefer/nimbus/internal/render"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nimbus configuration",
	Long:  `Read and write nimbus configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created %s\n", path)
		fmt.Fprintln(out, "  Edit it and set your api_key to get started.")
		fmt.Fprintln(out, "  Get a free key at: https://home.openweathermap.org/api_keys")
		return nil
	},
}

var configGetShowSecrets bool

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		apiKey := cfg.RedactedAPIKey()
		if configGetShowSecrets {
			apiKey = cfg.APIKey
		}
		if cfg.APIKey == "" {
			apiKey = "(not set)"
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}

		position := "(ip lookup)"
		if cfg.HasFixedPosition() {
			position = fmt.Sprintf("%.4f, %.4f", *cfg.Latitude, *cfg.Longitude)
		}

		switch resolveFormat(cfg.Format) {
		case render.FormatJSON:
			type configOut struct {
				APIKey         string   `json:"api_key"`
				Format         string   `json:"default_format"`
				BaseURL        string   `json:"base_url"`
				Units          string   `json:"units"`
				Timeout        string   `json:"timeout"`
				Rate           float64  `json:"rate"`
				MaxRetries     int      `json:"max_retries"`
				Freshness      string   `json:"freshness"`
				DBPath         string   `json:"db_path"`
				LocationAccess string   `json:"location_access"`
				Latitude       *float64 `json:"latitude,omitempty"`
				Longitude      *float64 `json:"longitude,omitempty"`
				ConfigFile     string   `json:"config_file"`
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configOut{
				APIKey:         apiKey,
				Format:         cfg.Format,
				BaseURL:        cfg.BaseURL,
				Units:          cfg.Units,
				Timeout:        cfg.Timeout.String(),
				Rate:           cfg.Rate,
				MaxRetries:     cfg.MaxRetries,
				Freshness:      cfg.Freshness.String(),
				DBPath:         cfg.DBPath,
				LocationAccess: cfg.LocationAccess,
				Latitude:       cfg.Latitude,
				Longitude:      cfg.Longitude,
				ConfigFile:     src,
			})
		default:
			rows := [][]string{
				{"api_key", apiKey},
				{"default_format", cfg.Format},
				{"base_url", cfg.BaseURL},
				{"units", cfg.Units},
				{"timeout", cfg.Timeout.String()},
				{"rate", fmt.Sprintf("%.1f req/s", cfg.Rate)},
				{"max_retries", strconv.Itoa(cfg.MaxRetries)},
				{"freshness", cfg.Freshness.String()},
				{"db_path", cfg.DBPath},
				{"location_access", cfg.LocationAccess},
				{"position", position},
				{"config_file", src},
			}
			printKVTable(cmd.OutOrStdout(), rows)
			return nil
		}
	},
}

const validConfigKeys = "api_key, default_format, base_url, units, timeout, rate, max_retries, freshness, db_path, location_access, latitude, longitude"

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  nimbus config set api_key abc123
  nimbus config set units imperial
  nimbus config set location_access granted
  nimbus config set latitude -34.9011`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		val := args[1]

		// Load existing file or start from template
		path := config.DefaultConfigFile
		f, err := config.ReadFile(path)
		if os.IsNotExist(err) {
			f = config.Template()
		} else if err != nil {
			return err
		}

		if err := setConfigKey(&f, key, val); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

// setConfigKey applies one key/value pair to f, checking its syntax.
// Range checks happen in Config.Validate at load time.
func setConfigKey(f *config.File, key, val string) error {
	switch key {
	case "api_key":
		f.APIKey = val
	case "default_format", "format":
		f.DefaultFormat = val
	case "base_url":
		f.BaseURL = val
	case "units":
		if !owm.ValidUnits(val) {
			return fmt.Errorf("units must be one of metric, imperial, standard")
		}
		f.Units = val
	case "timeout":
		f.Timeout = val
	case "freshness":
		f.Freshness = val
	case "db_path":
		f.DBPath = val
	case "location_access":
		f.LocationAccess = val
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("rate must be a number")
		}
		f.Rate = r
	case "max_retries":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("max_retries must be an integer")
		}
		f.MaxRetries = &n
	case "latitude", "longitude":
		if val == "" || val == "none" {
			if key == "latitude" {
				f.Latitude = nil
			} else {
				f.Longitude = nil
			}
			return nil
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", key)
		}
		if key == "latitude" {
			f.Latitude = &v
		} else {
			f.Longitude = &v
		}
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, validConfigKeys)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configGetCmd.Flags().BoolVar(&configGetShowSecrets, "show-secrets", false, "show API key in plain text")
}

// printKVTable renders a two-column key/value table using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}
