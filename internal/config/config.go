// Package config handles loading and resolving nimbus configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (--api-key, --units, --timeout, --rate, --db-path)
//  2. Environment variables OPENWEATHER_API_KEY and NIMBUS_DB_PATH, after
//     loading a .env file from the working directory if one exists
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile     = "config.json"
	DefaultEnvFile        = ".env"
	DefaultFormat         = "table"
	DefaultBaseURL        = "https://api.openweathermap.org/data/2.5"
	DefaultUnits          = "metric"
	DefaultTimeout        = 30 * time.Second
	DefaultRate           = 2.0
	DefaultMaxRetries     = 2
	DefaultFreshness      = 10 * time.Minute
	DefaultLocationAccess = "prompt"
	EnvAPIKey             = "OPENWEATHER_API_KEY"
	EnvDBPath             = "NIMBUS_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	APIKey         string   `json:"api_key"`
	DefaultFormat  string   `json:"default_format"`
	BaseURL        string   `json:"base_url"`
	Units          string   `json:"units"`
	Timeout        string   `json:"timeout"`
	Rate           float64  `json:"rate"`
	MaxRetries     *int     `json:"max_retries,omitempty"`
	Freshness      string   `json:"freshness"`
	DBPath         string   `json:"db_path,omitempty"`
	LocationAccess string   `json:"location_access"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	APIKey         string
	Format         string        `validate:"oneof=table json md"`
	BaseURL        string        `validate:"required,url"`
	Units          string        `validate:"oneof=metric imperial standard"`
	Timeout        time.Duration `validate:"gt=0"`
	Rate           float64       `validate:"gte=0"`
	MaxRetries     int           `validate:"gte=0,lte=10"`
	Freshness      time.Duration `validate:"gt=0"`
	DBPath         string
	LocationAccess string   `validate:"oneof=granted denied prompt"`
	Latitude       *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `validate:"omitempty,gte=-180,lte=180"`
	ConfigPath     string   // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

var validate = validator.New()

// Load resolves configuration from all sources.
// flagAPIKey is the value of --api-key (empty string if not set).
func Load(flagAPIKey string) (*Config, error) {
	cfg := &Config{
		Format:         DefaultFormat,
		BaseURL:        DefaultBaseURL,
		Units:          DefaultUnits,
		Timeout:        DefaultTimeout,
		Rate:           DefaultRate,
		MaxRetries:     DefaultMaxRetries,
		Freshness:      DefaultFreshness,
		LocationAccess: DefaultLocationAccess,
	}

	// Layer 1: config.json (lowest priority)
	f, path, err := loadFile()
	switch {
	case err == nil:
		applyFile(cfg, f, path)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	// Layer 2: environment, with .env filling in unset variables
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("loading .env", "err", err)
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flag (highest priority)
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".nimbus", "nimbus.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if required fields are missing or any resolved
// value is out of range.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New(
			"API key not found.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        nimbus --api-key YOUR_KEY ...\n" +
				"  2. Environment:     export OPENWEATHER_API_KEY=YOUR_KEY\n" +
				"  3. .env file:       OPENWEATHER_API_KEY=YOUR_KEY\n" +
				"  4. config.json:     {\"api_key\": \"YOUR_KEY\"}\n\n" +
				"Get a free key at https://home.openweathermap.org/api_keys",
		)
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return errors.New("invalid configuration: latitude and longitude must be set together")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating configuration: %w", err)
		}
		lines := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			lines = append(lines, "  "+describeField(fe))
		}
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(lines, "\n"))
	}
	return nil
}

func describeField(fe validator.FieldError) string {
	name := fieldNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s: %v is not one of %s", name, fe.Value(), strings.ReplaceAll(fe.Param(), " ", "|"))
	case "required":
		return name + ": required"
	case "url":
		return fmt.Sprintf("%s: %q is not a valid URL", name, fe.Value())
	case "gt", "gte":
		return fmt.Sprintf("%s: must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s: must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", name, fe.Tag())
	}
}

// fieldNames maps struct fields to their config.json keys.
var fieldNames = map[string]string{
	"Format":         "default_format",
	"BaseURL":        "base_url",
	"Units":          "units",
	"Timeout":        "timeout",
	"Rate":           "rate",
	"MaxRetries":     "max_retries",
	"Freshness":      "freshness",
	"LocationAccess": "location_access",
	"Latitude":       "latitude",
	"Longitude":      "longitude",
}

// RedactedAPIKey returns the API key with most characters replaced by asterisks.
// Safe for logging and display.
func (c *Config) RedactedAPIKey() string {
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return c.APIKey[:2] + "****" + c.APIKey[len(c.APIKey)-2:]
}

// HasFixedPosition reports whether a device position is configured.
func (c *Config) HasFixedPosition() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// loadFile attempts to read config.json from the current working directory.
// A missing file yields an error wrapping os.ErrNotExist.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s: %w", path, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty. Unparseable durations keep the
// default.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.APIKey != "" {
		cfg.APIKey = f.APIKey
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.Units != "" {
		cfg.Units = f.Units
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		} else {
			slog.Warn("config.json: ignoring invalid timeout", "value", f.Timeout)
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.MaxRetries != nil {
		cfg.MaxRetries = *f.MaxRetries
	}
	if f.Freshness != "" {
		if d, err := time.ParseDuration(f.Freshness); err == nil {
			cfg.Freshness = d
		} else {
			slog.Warn("config.json: ignoring invalid freshness", "value", f.Freshness)
		}
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.LocationAccess != "" {
		cfg.LocationAccess = f.LocationAccess
	}
	cfg.Latitude = f.Latitude
	cfg.Longitude = f.Longitude
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `nimbus config init`.
func Template() File {
	retries := DefaultMaxRetries
	return File{
		APIKey:         "",
		DefaultFormat:  DefaultFormat,
		BaseURL:        DefaultBaseURL,
		Units:          DefaultUnits,
		Timeout:        "30s",
		Rate:           DefaultRate,
		MaxRetries:     &retries,
		Freshness:      "10m",
		LocationAccess: DefaultLocationAccess,
	}
}

// ReadFile parses the config.json at path.
func ReadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
