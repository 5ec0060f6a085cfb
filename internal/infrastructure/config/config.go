// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Values missing from the YAML file keep their defaults. Every loaded
// configuration is validated, so a negative tolerance or an unknown pattern
// type fails at load time rather than during a reconciliation run.
//
// Example usage:
//
//	cfg, err := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	engineCfg, err := cfg.Reconcile.MatcherConfig()
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Reconcile     ReconcileConfig     `yaml:"reconcile"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ReconcileConfig holds engine tuning and run defaults
type ReconcileConfig struct {
	MaxDateDifferenceDays    int     `yaml:"max_date_difference_days"`
	ExactMatchTolerance      float64 `yaml:"exact_match_tolerance"`
	SumMatchTolerancePercent float64 `yaml:"sum_match_tolerance_percent"`
	AbsoluteToleranceFloor   float64 `yaml:"absolute_tolerance_floor"`
	CombinationSearchLimit   int     `yaml:"combination_search_limit"`
	SuggestionCandidateCap   int     `yaml:"suggestion_candidate_cap"`
	ProximityScore           float64 `yaml:"proximity_score"`
	HighConfidenceMaxDays    int     `yaml:"high_confidence_max_days"`

	// LookbackDays limits a run to records dated within the last N days (0 = all)
	LookbackDays int `yaml:"lookback_days"`
	// PatternTypes are run in this order; empty means every configured pattern
	PatternTypes []string                 `yaml:"pattern_types"`
	Patterns     map[string]PatternConfig `yaml:"patterns"`
}

// PatternConfig is the YAML form of a matcher pattern table
type PatternConfig struct {
	ChargePatterns []string `yaml:"charge_patterns"`
	ContextOrigin  string   `yaml:"context_origin"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	engine := matcher.DefaultConfig()
	patterns := make(map[string]PatternConfig, len(engine.PatternTables))
	for pt, table := range engine.PatternTables {
		patterns[string(pt)] = PatternConfig{
			ChargePatterns: append([]string(nil), table.ChargePatterns...),
			ContextOrigin:  string(table.ContextOrigin),
		}
	}

	return &Config{
		Storage: StorageConfig{
			DatabasePath: "reconcile.db",
		},
		Reconcile: ReconcileConfig{
			MaxDateDifferenceDays:    engine.MaxDateDifferenceInDays,
			ExactMatchTolerance:      engine.ExactMatchTolerance,
			SumMatchTolerancePercent: engine.SumMatchTolerancePercent,
			AbsoluteToleranceFloor:   engine.AbsoluteToleranceFloor,
			CombinationSearchLimit:   engine.CombinationSearchLimit,
			SuggestionCandidateCap:   engine.SuggestionCandidateCap,
			ProximityScore:           engine.ProximityScore,
			HighConfidenceMaxDays:    engine.HighConfidenceMaxDays,
			LookbackDays:             90,
			Patterns:                 patterns,
		},
		API: APIConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads, parses and validates the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECONCILE_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	cfg.Storage.DatabasePath = getEnv("RECONCILE_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Reconcile.LookbackDays = getEnvInt("RECONCILE_LOOKBACK_DAYS", cfg.Reconcile.LookbackDays)
	cfg.Reconcile.MaxDateDifferenceDays = getEnvInt("RECONCILE_MAX_DATE_DIFFERENCE_DAYS", cfg.Reconcile.MaxDateDifferenceDays)
	if types := getEnv("RECONCILE_PATTERN_TYPES", ""); types != "" {
		cfg.Reconcile.PatternTypes = splitList(types)
	}
	cfg.API.Port = getEnvInt("API_PORT", cfg.API.Port)
	if origins := getEnv("API_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	return cfg, nil
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() (*Config, error) {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath loads path if it exists, otherwise falls back to environment variables.
// A file that exists but fails to parse or validate is an error.
func LoadOrEnvWithPath(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return LoadFromEnv()
	}
	return nil, err
}

// Validate checks every section
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DatabasePath) == "" {
		return errors.New("storage.database_path is required")
	}
	if _, err := c.Reconcile.MatcherConfig(); err != nil {
		return err
	}
	if c.Reconcile.LookbackDays < 0 {
		return fmt.Errorf("reconcile.lookback_days cannot be negative: %d", c.Reconcile.LookbackDays)
	}
	for _, pt := range c.Reconcile.PatternTypes {
		if _, ok := c.Reconcile.Patterns[pt]; !ok {
			return fmt.Errorf("reconcile.pattern_types: no patterns configured for %q", pt)
		}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	switch c.Observability.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("observability.logging.format must be text or json, got %q", c.Observability.Logging.Format)
	}
	return nil
}

// MatcherConfig converts the reconcile section into a validated engine config
func (r ReconcileConfig) MatcherConfig() (matcher.Config, error) {
	tables := make(map[matcher.PatternType]matcher.PatternTable, len(r.Patterns))
	for name, p := range r.Patterns {
		origin, err := matcher.ParseOrigin(p.ContextOrigin)
		if err != nil {
			return matcher.Config{}, fmt.Errorf("reconcile.patterns.%s: %w", name, err)
		}
		tables[matcher.PatternType(name)] = matcher.PatternTable{
			ChargePatterns: append([]string(nil), p.ChargePatterns...),
			ContextOrigin:  origin,
		}
	}

	cfg := matcher.Config{
		MaxDateDifferenceInDays:  r.MaxDateDifferenceDays,
		ExactMatchTolerance:      r.ExactMatchTolerance,
		SumMatchTolerancePercent: r.SumMatchTolerancePercent,
		AbsoluteToleranceFloor:   r.AbsoluteToleranceFloor,
		CombinationSearchLimit:   r.CombinationSearchLimit,
		SuggestionCandidateCap:   r.SuggestionCandidateCap,
		ProximityScore:           r.ProximityScore,
		HighConfidenceMaxDays:    r.HighConfidenceMaxDays,
		PatternTables:            tables,
	}
	if err := cfg.Validate(); err != nil {
		return matcher.Config{}, fmt.Errorf("reconcile: %w", err)
	}
	return cfg, nil
}

// EnabledPatternTypes returns PatternTypes, or every configured pattern in sorted order
func (r ReconcileConfig) EnabledPatternTypes() []matcher.PatternType {
	if len(r.PatternTypes) > 0 {
		out := make([]matcher.PatternType, len(r.PatternTypes))
		for i, pt := range r.PatternTypes {
			out[i] = matcher.PatternType(pt)
		}
		return out
	}
	cfg, err := r.MatcherConfig()
	if err != nil {
		return nil
	}
	return cfg.PatternTypes()
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
