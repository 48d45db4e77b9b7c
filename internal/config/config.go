// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/autoapply/internal/types"
)

// Config represents the run configuration loaded from a JSON or YAML file.
// Fields absent from the file keep the values from Default.
type Config struct {
	Searches           []types.SearchSpec `json:"searches" yaml:"searches" validate:"dive"`
	ApplyLimit         int                `json:"apply_limit" yaml:"apply_limit" validate:"gte=0"`
	MaxExperienceYears int                `json:"max_experience_years" yaml:"max_experience_years" validate:"gte=0"`
	FilteredJobsURL    string             `json:"filtered_jobs_url,omitempty" yaml:"filtered_jobs_url" validate:"omitempty,url"`

	// Browser
	Headless bool     `json:"headless" yaml:"headless"`
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`

	// Persistence
	DataDir string      `json:"data_dir" yaml:"data_dir" validate:"required"`
	Store   StoreConfig `json:"store" yaml:"store"`

	// Behavior
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" validate:"gt=0,lt=1"`
	SuccessPolicy       string  `json:"success_policy" yaml:"success_policy" validate:"oneof=apply_control secondary_control"`
	ListingsPerMinute   float64 `json:"listings_per_minute" yaml:"listings_per_minute" validate:"gte=0"`

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `json:"log_format" yaml:"log_format" validate:"oneof=text json"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `json:"driver" yaml:"driver" validate:"omitempty,oneof=file sqlite postgres"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url"`
}

// Timeouts bounds every wait the browser performs.
type Timeouts struct {
	PageLoad Duration `json:"page_load" yaml:"page_load" validate:"gt=0"`
	Element  Duration `json:"element" yaml:"element" validate:"gt=0"`
	Settle   Duration `json:"settle" yaml:"settle" validate:"gt=0"`
	Popup    Duration `json:"popup" yaml:"popup" validate:"gt=0"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		ApplyLimit:         30,
		MaxExperienceYears: 3,
		Timeouts: Timeouts{
			PageLoad: Duration(30 * time.Second),
			Element:  Duration(10 * time.Second),
			Settle:   Duration(10 * time.Second),
			Popup:    Duration(2 * time.Second),
		},
		DataDir:             ".",
		Store:               StoreConfig{Driver: "file"},
		SimilarityThreshold: 0.6,
		SuccessPolicy:       "apply_control",
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads configuration from a JSON file, or a YAML file when the path ends
// in .yaml or .yml, on top of Default. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	cfg.normalizePortals()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizePortals rewrites search portal names to their canonical form.
// Unknown names are left for Validate to report.
func (c *Config) normalizePortals() {
	for i, spec := range c.Searches {
		if p, err := types.ParsePortal(string(spec.Portal)); err == nil {
			c.Searches[i].Portal = p
		}
	}
}

// Validate checks field ranges and the constraints between fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return fmt.Errorf("config error: 'store.database_url' is required for the postgres driver")
	}
	return nil
}

// Portals returns the distinct portals named by Searches, in first-seen order.
func (c *Config) Portals() []types.Portal {
	seen := make(map[types.Portal]bool)
	var portals []types.Portal
	for _, s := range c.Searches {
		if !seen[s.Portal] {
			seen[s.Portal] = true
			portals = append(portals, s.Portal)
		}
	}
	return portals
}

// NewLogger creates a structured logger writing to w.
// When LogFormat is "json" it emits JSON records, otherwise human-readable text.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
