// Package lifecycle enforces retention on the event log.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventPruner is the part of the store the retention pass needs.
type EventPruner interface {
	CountEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Report summarizes the results of a lifecycle run.
type Report struct {
	Expired int       `json:"expired"`
	Cutoff  time.Time `json:"cutoff"`
	DryRun  bool      `json:"dry_run"`
}

// Manager removes events older than the retention window.
type Manager struct {
	store     EventPruner
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager creates a lifecycle manager. A retention of zero or less keeps events forever.
func NewManager(st EventPruner, retention time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:     st,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Retention returns the configured retention window.
func (m *Manager) Retention() time.Duration {
	return m.retention
}

// Run expires events created before now minus the retention window.
// With dryRun set it only counts them.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun}
	if m.retention <= 0 {
		m.logger.Debug("event retention disabled")
		return report, nil
	}
	report.Cutoff = m.now().UTC().Add(-m.retention)

	var (
		n   int
		err error
	)
	if dryRun {
		n, err = m.store.CountEventsBefore(ctx, report.Cutoff)
	} else {
		n, err = m.store.DeleteEventsBefore(ctx, report.Cutoff)
	}
	if err != nil {
		return nil, fmt.Errorf("expiring events: %w", err)
	}
	report.Expired = n

	if n > 0 {
		m.logger.Info("expired events", "count", n, "cutoff", report.Cutoff, "dry_run", dryRun)
	}
	return report, nil
}
