package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/echobell/echobell/internal/models"
)

// ErrNotFound is returned by updates that address a row which does not exist.
var ErrNotFound = errors.New("not found")

// RuleSource supplies the classification rule tables.
type RuleSource interface {
	// LoadRuleSet reads intents, entities, patterns and vision mappings as one consistent view.
	LoadRuleSet(ctx context.Context) (*models.RuleSet, error)
}

// HouseholdSource supplies settings, features, modes, quiet hours, notifiers and visitors.
type HouseholdSource interface {
	LoadHousehold(ctx context.Context) (*models.Household, error)
}

// EventRecorder persists structured events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event models.Event) error
}

// Store is the full persistence surface of the assistant.
type Store interface {
	RuleSource
	HouseholdSource
	EventRecorder

	// Init creates the schema if needed, applies migrations and seeds defaults.
	Init(ctx context.Context) error

	// ListEvents returns up to limit events, newest first.
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)

	// CountEventsBefore counts events created strictly before cutoff.
	CountEventsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteEventsBefore removes events created strictly before cutoff and returns how many went.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// SetPatternEnabled toggles a pattern rule by ID.
	SetPatternEnabled(ctx context.Context, id int64, enabled bool) error

	// SetEntityEnabled toggles an entity definition by name.
	SetEntityEnabled(ctx context.Context, name string, enabled bool) error

	// SetVisionMappingEnabled toggles the (model, raw class) mapping. Keys
	// match case-insensitively, ignoring surrounding whitespace.
	SetVisionMappingEnabled(ctx context.Context, model, rawClass string, enabled bool) error

	// UpsertVisionMapping inserts or replaces a (model, raw class) mapping.
	UpsertVisionMapping(ctx context.Context, mapping models.VisionClassMapping) error

	// SetActiveMode makes name the only active presence mode.
	SetActiveMode(ctx context.Context, name string) error

	// Close cleans up resources.
	Close() error
}

// foldKey is the comparison form of a vision mapping key.
func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
