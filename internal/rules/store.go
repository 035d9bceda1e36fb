package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/echobell/echobell/internal/metrics"
	"github.com/echobell/echobell/internal/store"
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusEmpty    = "empty"
)

// Report summarizes one successful reload.
type Report struct {
	Version        uint64        `json:"version"`
	Patterns       int           `json:"patterns"`
	Entities       int           `json:"entities"`
	VisionMappings int           `json:"vision_mappings"`
	Invalid        []RuleError   `json:"invalid"`
	Duration       time.Duration `json:"duration_ns"`
}

// Health describes the rule store state.
type Health struct {
	Status     string    `json:"status"`
	Version    uint64    `json:"version"`
	LastReload time.Time `json:"last_reload"`
	LastError  string    `json:"last_error,omitempty"`
	Invalid    int       `json:"invalid_rules"`
}

// Store holds the active rule snapshot. Readers call Snapshot without locking;
// Reload swaps in a new snapshot atomically.
type Store struct {
	source store.RuleSource
	logger *slog.Logger

	reloadMu sync.Mutex
	current  atomic.Pointer[Snapshot]

	stateMu  sync.RWMutex
	degraded bool
	lastErr  error
}

// New creates a rule store over source. The initial snapshot is empty; call Reload to load.
func New(source store.RuleSource, logger *slog.Logger) *Store {
	s := &Store{source: source, logger: logger}
	s.current.Store(emptySnapshot())
	return s
}

// Snapshot returns the active snapshot. Never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload reads the rule set from the source, compiles it and publishes it.
// On source failure the previous snapshot stays active and the error wraps ErrStoreUnavailable.
func (s *Store) Reload(ctx context.Context) (*Report, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	rs, err := s.source.LoadRuleSet(ctx)
	if err != nil {
		s.setState(true, err)
		metrics.RuleReloadsTotal.WithLabelValues("failure").Inc()
		prev := s.current.Load()
		s.logger.Error("rule reload failed, keeping previous snapshot", "version", prev.Version, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	prev := s.current.Load()
	snap := Compile(rs, prev.Version+1)
	s.current.Store(snap)
	s.setState(false, nil)

	for i := range snap.Invalid {
		s.logger.Warn("rule excluded from snapshot", "kind", snap.Invalid[i].Kind, "ref", snap.Invalid[i].Ref, "reason", snap.Invalid[i].Reason, "error", snap.Invalid[i].Err)
	}

	metrics.RuleReloadsTotal.WithLabelValues("success").Inc()
	metrics.InvalidRules.Set(float64(len(snap.Invalid)))
	metrics.ActivePatterns.Set(float64(len(snap.Rules)))
	metrics.RulesetVersion.Set(float64(snap.Version))

	report := &Report{
		Version:        snap.Version,
		Patterns:       len(snap.Rules),
		Entities:       len(snap.Entities),
		VisionMappings: len(snap.Mappings),
		Invalid:        snap.Invalid,
		Duration:       time.Since(start),
	}
	s.logger.Info("rules reloaded",
		"version", report.Version,
		"patterns", report.Patterns,
		"entities", report.Entities,
		"vision_mappings", report.VisionMappings,
		"invalid", len(report.Invalid),
		"duration", report.Duration,
	)
	return report, nil
}

// Health reports whether the last reload succeeded.
func (s *Store) Health() Health {
	snap := s.current.Load()
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	h := Health{
		Status:     StatusOK,
		Version:    snap.Version,
		LastReload: snap.LoadedAt,
		Invalid:    len(snap.Invalid),
	}
	switch {
	case s.degraded:
		h.Status = StatusDegraded
	case snap.Version == 0:
		h.Status = StatusEmpty
	}
	if s.lastErr != nil {
		h.LastError = s.lastErr.Error()
	}
	return h
}

func (s *Store) setState(degraded bool, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.degraded = degraded
	s.lastErr = err
}
