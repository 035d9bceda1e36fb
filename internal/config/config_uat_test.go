package config

import (
	"strings"
	"testing"
)

// validCfg returns a fully-valid Config for mutation testing.
func validCfg() *Config {
	return &Config{
		Database:   DatabaseConfig{Path: "/tmp/echobell.db", Seed: true},
		Classifier: ClassifierConfig{MinScore: DefaultMinScore, ConfidenceScale: DefaultConfidenceScale},
		Vision:     VisionConfig{DefaultModel: DefaultVisionModel},
		Events:     EventsConfig{RetentionDays: DefaultRetentionDays, PruneSchedule: "@daily"},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestUAT_MaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "***"},
		{"12345678", "***"},
		{"abcd1234efgh", "abcd****efgh"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUAT_Validate_MinScoreZeroAllowed(t *testing.T) {
	cfg := validCfg()
	cfg.Classifier.MinScore = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("min_score 0 should pass, got: %v", err)
	}
}

func TestUAT_Validate_UrgencyBounds(t *testing.T) {
	cfg := validCfg()
	cfg.Classifier.Urgency = map[string]int{"package_drop": 0, "authority_urgent": 100}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("urgency at bounds should pass, got: %v", err)
	}
	cfg.Classifier.Urgency["package_drop"] = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for urgency -1")
	}
	if !strings.Contains(err.Error(), "package_drop") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_EmptySchedulesAllowed(t *testing.T) {
	cfg := validCfg()
	cfg.Rules.ReloadSchedule = ""
	cfg.Events.PruneSchedule = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty schedules should pass, got: %v", err)
	}
}

func TestUAT_Validate_CronDescriptors(t *testing.T) {
	for _, spec := range []string{"@every 30s", "@hourly", "*/5 * * * *"} {
		cfg := validCfg()
		cfg.Rules.ReloadSchedule = spec
		if err := cfg.Validate(); err != nil {
			t.Errorf("schedule %q should pass, got: %v", spec, err)
		}
	}
}

func TestUAT_Validate_ValidConfigPasses(t *testing.T) {
	if err := validCfg().Validate(); err != nil {
		t.Fatalf("valid config should pass, got: %v", err)
	}
}
