package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/echobell/echobell/internal/classifier"
	"github.com/echobell/echobell/internal/models"
)

const (
	// DefaultMinScore is the raw score below which a classification is unknown.
	DefaultMinScore = 0.5

	// DefaultConfidenceScale divides raw scores before the exponential squash.
	DefaultConfidenceScale = 1.0

	// DefaultRetentionDays is how long events are kept.
	DefaultRetentionDays = 90

	// DefaultVisionModel is used when a frame does not name its detector.
	DefaultVisionModel = "yolov8n"
)

// Config holds all configuration for echobell.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Vision     VisionConfig     `mapstructure:"vision"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Events     EventsConfig     `mapstructure:"events"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	API        APIConfig        `mapstructure:"api"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// Seed inserts the default rules and household rows on init.
	Seed bool `mapstructure:"seed"`
}

// ClassifierConfig tunes intent scoring.
type ClassifierConfig struct {
	MinScore        float64        `mapstructure:"min_score"`
	ConfidenceScale float64        `mapstructure:"confidence_scale"`
	Priority        []string       `mapstructure:"priority"`
	Urgency         map[string]int `mapstructure:"urgency"`
}

// Options converts the config into classifier options.
func (c ClassifierConfig) Options() classifier.Options {
	opts := classifier.DefaultOptions()
	opts.MinScore = c.MinScore
	opts.ConfidenceScale = c.ConfidenceScale
	if len(c.Priority) > 0 {
		opts.Priority = append([]string(nil), c.Priority...)
	}
	// Configured urgencies override the defaults one intent at a time.
	for intent, u := range c.Urgency {
		opts.Urgency[intent] = u
	}
	return opts
}

// VisionConfig holds label mapping settings.
type VisionConfig struct {
	DefaultModel string `mapstructure:"default_model"`
}

// RulesConfig controls rule reloading.
type RulesConfig struct {
	// ReloadSchedule is a cron expression; empty disables scheduled reloads.
	ReloadSchedule string `mapstructure:"reload_schedule"`
}

// PolicyConfig selects the response policy document.
type PolicyConfig struct {
	// Path to a YAML policy; empty selects the built-in document.
	Path string `mapstructure:"path"`
}

// EventsConfig controls the event log.
type EventsConfig struct {
	// RetentionDays drops events older than this many days; 0 keeps them forever.
	RetentionDays int `mapstructure:"retention_days"`
	// PruneSchedule is the cron expression serve uses to apply retention.
	PruneSchedule string `mapstructure:"prune_schedule"`
}

// Retention returns the retention window as a duration.
func (c EventsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// String returns a safe representation of APIConfig with the token masked.
func (c APIConfig) String() string {
	return fmt.Sprintf("APIConfig{ListenAddr:%s, AuthToken:%s}", c.ListenAddr, maskSecret(c.AuthToken))
}

// maskSecret shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskSecret(key string) string {
	const visible = 4
	if key == "" {
		return ""
	}
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from the default search paths when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("database.path", filepath.Join(homeDir(), ".echobell", "echobell.db"))
	v.SetDefault("database.seed", true)

	v.SetDefault("classifier.min_score", DefaultMinScore)
	v.SetDefault("classifier.confidence_scale", DefaultConfidenceScale)
	v.SetDefault("classifier.priority", models.DefaultIntentPriority)
	v.SetDefault("classifier.urgency", map[string]int{})

	v.SetDefault("vision.default_model", DefaultVisionModel)

	v.SetDefault("rules.reload_schedule", "")
	v.SetDefault("policy.path", "")

	v.SetDefault("events.retention_days", DefaultRetentionDays)
	v.SetDefault("events.prune_schedule", "@daily")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".echobell"))
		v.AddConfigPath(".")
	}

	// Environment variables: ECHOBELL_DATABASE_PATH, ECHOBELL_API_AUTH_TOKEN, ...
	v.SetEnvPrefix("ECHOBELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK; use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Classifier.MinScore < 0 {
		return fmt.Errorf("classifier.min_score must be >= 0")
	}
	if c.Classifier.ConfidenceScale <= 0 {
		return fmt.Errorf("classifier.confidence_scale must be greater than 0")
	}
	seen := make(map[string]struct{}, len(c.Classifier.Priority))
	for _, p := range c.Classifier.Priority {
		if _, dup := seen[p]; dup {
			return fmt.Errorf("classifier.priority lists %q more than once", p)
		}
		seen[p] = struct{}{}
	}
	for intent, u := range c.Classifier.Urgency {
		if u < 0 || u > 100 {
			return fmt.Errorf("classifier.urgency.%s must be between 0 and 100", intent)
		}
	}
	if c.Vision.DefaultModel == "" {
		return fmt.Errorf("vision.default_model must not be empty")
	}
	if c.Rules.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(c.Rules.ReloadSchedule); err != nil {
			return fmt.Errorf("rules.reload_schedule: %w", err)
		}
	}
	if c.Events.RetentionDays < 0 {
		return fmt.Errorf("events.retention_days must be >= 0")
	}
	if c.Events.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Events.PruneSchedule); err != nil {
			return fmt.Errorf("events.prune_schedule: %w", err)
		}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
