// Package cmd implements the nimbus CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/derickschaefer/nimbus/internal/app"
	"github.com/derickschaefer/nimbus/internal/config"
	"github.com/derickschaefer/nimbus/internal/location"
	"github.com/spf13/cobra"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	APIKey  string
	Format  string
	Out     string
	Timeout string
	Rate    float64
	Units   string
	DBPath  string
	Quiet   bool
	Verbose bool
	Debug   bool
}

// rootCmd is the base command. Running `nimbus` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "nimbus",
	Short: "nimbus: current weather for your location and a few favourite cities",
	Long: `nimbus shows current weather conditions from the OpenWeather API for the
device's approximate position, London, Montevideo and Buenos Aires.

The last selected location is remembered between runs.

Get a free API key at: https://home.openweathermap.org/api_keys

Quick start:
  nimbus config init           # create a config.json, then set api_key
  nimbus now london            # current weather in London
  nimbus watch                 # interactive view`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr)
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveConfig loads config and applies CLI flag overrides.
func resolveConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.APIKey)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout %q: %w", globalFlags.Timeout, err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}
	if globalFlags.Units != "" {
		cfg.Units = globalFlags.Units
	}
	if globalFlags.DBPath != "" {
		cfg.DBPath = globalFlags.DBPath
	}
	return cfg, nil
}

// buildDeps resolves and validates config and constructs the dependency
// container. Called at the start of each command's RunE; the caller must
// Close the result.
func buildDeps(prompt location.Prompter) (*app.Deps, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(cfg, prompt)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.APIKey, "api-key", "",
		"OpenWeather API key (overrides env OPENWEATHER_API_KEY and config.json)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max API requests per second (default: 2.0)")
	pf.StringVar(&globalFlags.Units, "units", "",
		"unit system requested upstream: metric|imperial|standard (display is always °C and m/s)")
	pf.StringVar(&globalFlags.DBPath, "db-path", "",
		"preferences database path (overrides env NIMBUS_DB_PATH and config.json)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show cache/timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses (API key redacted)")
}
