// Package household exposes the household configuration as an immutable snapshot
// that collaborators receive explicitly.
package household

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/store"
)

// DefaultMode is reported when no mode row is active.
const DefaultMode = "HOME"

// Snapshot is a read-only view of one household load.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time

	hh  models.Household
	loc *time.Location
}

// NewSnapshot wraps hh. The "timezone" setting selects the location used for quiet hours.
func NewSnapshot(hh models.Household, version uint64) *Snapshot {
	s := &Snapshot{Version: version, LoadedAt: time.Now().UTC(), loc: time.Local}
	s.hh = hh
	if s.hh.Settings == nil {
		s.hh.Settings = map[string]string{}
	}
	if s.hh.Features == nil {
		s.hh.Features = map[string]bool{}
	}
	if tz := s.hh.Settings["timezone"]; tz != "" && tz != "Local" {
		if loc, err := time.LoadLocation(tz); err == nil {
			s.loc = loc
		}
	}
	return s
}

// Setting returns the value of key, or def when unset or empty.
func (s *Snapshot) Setting(key, def string) string {
	if v, ok := s.hh.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// FeatureEnabled reports whether the named feature flag is on. Unknown flags are off.
func (s *Snapshot) FeatureEnabled(name string) bool {
	return s.hh.Features[name]
}

// ActiveMode returns the active presence mode name.
func (s *Snapshot) ActiveMode() string {
	for _, m := range s.hh.Modes {
		if m.Active {
			return m.Name
		}
	}
	return DefaultMode
}

// Household returns a shallow copy of the underlying tables.
func (s *Snapshot) Household() models.Household {
	return s.hh
}

// NotifierTargets returns enabled notifiers of kind whose priority is priority or normal.
func (s *Snapshot) NotifierTargets(kind, priority string) []models.Notifier {
	var out []models.Notifier
	for _, n := range s.hh.Notifiers {
		if !n.Enabled || n.Kind != kind {
			continue
		}
		if n.Priority == priority || n.Priority == models.PriorityNormal {
			out = append(out, n)
		}
	}
	return out
}

// InQuietHours reports whether t falls inside any enabled quiet-hours window.
// A window whose end is before its start wraps past midnight; the part after
// midnight counts toward the day the window started.
func (s *Snapshot) InQuietHours(t time.Time) bool {
	t = t.In(s.loc)
	minute := t.Hour()*60 + t.Minute()
	for _, q := range s.hh.QuietHours {
		if !q.Enabled {
			continue
		}
		start, err := parseHHMM(q.Start)
		if err != nil {
			continue
		}
		end, err := parseHHMM(q.End)
		if err != nil || start == end {
			continue
		}
		if start < end {
			if minute >= start && minute < end && dayMatches(q.Days, t.Weekday()) {
				return true
			}
			continue
		}
		if minute >= start && dayMatches(q.Days, t.Weekday()) {
			return true
		}
		if minute < end && dayMatches(q.Days, t.AddDate(0, 0, -1).Weekday()) {
			return true
		}
	}
	return false
}

// ValidateQuietHours checks the HH:MM and day fields of q.
func ValidateQuietHours(q models.QuietHours) error {
	if _, err := parseHHMM(q.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := parseHHMM(q.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	days := strings.TrimSpace(q.Days)
	if days == "" || days == "*" {
		return nil
	}
	for _, d := range strings.Split(days, ",") {
		if _, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]; !ok {
			return fmt.Errorf("unknown day %q", d)
		}
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func dayMatches(days string, wd time.Weekday) bool {
	days = strings.TrimSpace(days)
	if days == "" || days == "*" {
		return true
	}
	for _, d := range strings.Split(days, ",") {
		if w, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]; ok && w == wd {
			return true
		}
	}
	return false
}

func parseHHMM(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// Store keeps the current household snapshot and reloads it from a source.
type Store struct {
	source store.HouseholdSource
	logger *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewStore creates a household store. The initial snapshot is empty.
func NewStore(source store.HouseholdSource, logger *slog.Logger) *Store {
	s := &Store{source: source, logger: logger}
	s.current.Store(NewSnapshot(models.Household{}, 0))
	return s
}

// Snapshot returns the current household snapshot. Never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload reads the household tables and publishes a new snapshot.
// On failure the previous snapshot stays active.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hh, err := s.source.LoadHousehold(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading household: %w", err)
	}
	for _, q := range hh.QuietHours {
		if verr := ValidateQuietHours(q); verr != nil {
			s.logger.Warn("ignoring malformed quiet hours", "id", q.ID, "error", verr)
		}
	}
	snap := NewSnapshot(*hh, s.current.Load().Version+1)
	s.current.Store(snap)
	s.logger.Debug("household reloaded", "version", snap.Version, "mode", snap.ActiveMode())
	return snap, nil
}
