package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/echobell/echobell/internal/models"
)

// MockStore is an in-memory implementation of Store for testing.
// It starts with the default rule set and household.
type MockStore struct {
	mu        sync.RWMutex
	rules     models.RuleSet
	household models.Household
	events    []models.Event
	loadErr   error
	hhErr     error
	loadCalls int
}

// NewMockStore creates a mock store holding the default seed data.
func NewMockStore() *MockStore {
	return &MockStore{
		rules:     DefaultRuleSet(),
		household: DefaultHousehold(),
	}
}

// NewMockStoreWithRules creates a mock store holding rs and the default household.
func NewMockStoreWithRules(rs models.RuleSet) *MockStore {
	return &MockStore{
		rules:     copyRuleSet(rs),
		household: DefaultHousehold(),
	}
}

// SetLoadError makes every subsequent Load* call fail with err. Pass nil to recover.
func (m *MockStore) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// SetHouseholdLoadError makes only LoadHousehold fail with err. Pass nil to recover.
func (m *MockStore) SetHouseholdLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hhErr = err
}

// SetRuleSet replaces the stored rules.
func (m *MockStore) SetRuleSet(rs models.RuleSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = copyRuleSet(rs)
}

// SetHousehold replaces the stored household.
func (m *MockStore) SetHousehold(hh models.Household) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.household = copyHousehold(hh)
}

// LoadCalls reports how many times LoadRuleSet was called.
func (m *MockStore) LoadCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadCalls
}

// Init is a no-op for the mock store.
func (m *MockStore) Init(_ context.Context) error {
	return nil
}

// LoadRuleSet returns a deep copy of the stored rules.
func (m *MockStore) LoadRuleSet(_ context.Context) (*models.RuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	rs := copyRuleSet(m.rules)
	return &rs, nil
}

// LoadHousehold returns a deep copy of the stored household.
func (m *MockStore) LoadHousehold(_ context.Context) (*models.Household, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.hhErr != nil {
		return nil, m.hhErr
	}
	hh := copyHousehold(m.household)
	return &hh, nil
}

// RecordEvent appends an event.
func (m *MockStore) RecordEvent(_ context.Context, ev models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("record event: id must not be empty")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events {
		if existing.ID == ev.ID {
			return fmt.Errorf("record event %s: duplicate id", ev.ID)
		}
	}
	m.events = append(m.events, copyEvent(ev))
	return nil
}

// ListEvents returns up to limit events, newest first.
func (m *MockStore) ListEvents(_ context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Events sharing a timestamp list the later-recorded one first.
	out := make([]models.Event, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		out = append(out, copyEvent(m.events[i]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountEventsBefore counts events created strictly before cutoff.
func (m *MockStore) CountEventsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ev := range m.events {
		if ev.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// DeleteEventsBefore removes events created strictly before cutoff.
func (m *MockStore) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, ev := range m.events {
		if !ev.CreatedAt.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	n := len(m.events) - len(kept)
	m.events = kept
	return n, nil
}

// SetPatternEnabled toggles a pattern rule by ID.
func (m *MockStore) SetPatternEnabled(_ context.Context, id int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules.Patterns {
		if m.rules.Patterns[i].ID == id {
			m.rules.Patterns[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("pattern %d: %w", id, ErrNotFound)
}

// SetEntityEnabled toggles an entity definition by name.
func (m *MockStore) SetEntityEnabled(_ context.Context, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules.Entities {
		if m.rules.Entities[i].Name == name {
			m.rules.Entities[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("entity %q: %w", name, ErrNotFound)
}

// SetVisionMappingEnabled toggles every row whose normalized (model, raw class) matches.
func (m *MockStore) SetVisionMappingEnabled(_ context.Context, model, rawClass string, enabled bool) error {
	model, rawClass = foldKey(model), foldKey(rawClass)
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.rules.VisionMappings {
		vm := &m.rules.VisionMappings[i]
		if foldKey(vm.ModelName) == model && foldKey(vm.RawClass) == rawClass {
			vm.Enabled = enabled
			found = true
		}
	}
	if !found {
		return fmt.Errorf("vision mapping %s/%s: %w", model, rawClass, ErrNotFound)
	}
	return nil
}

// UpsertVisionMapping inserts or replaces a (model, raw class) mapping.
func (m *MockStore) UpsertVisionMapping(_ context.Context, vm models.VisionClassMapping) error {
	vm.ModelName = foldKey(vm.ModelName)
	vm.RawClass = foldKey(vm.RawClass)
	vm.SemanticClass = strings.TrimSpace(vm.SemanticClass)
	if vm.ModelName == "" || vm.RawClass == "" || vm.SemanticClass == "" {
		return fmt.Errorf("upsert vision mapping: model, raw class and semantic class are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.rules.VisionMappings {
		existing := &m.rules.VisionMappings[i]
		if foldKey(existing.ModelName) == vm.ModelName && foldKey(existing.RawClass) == vm.RawClass {
			existing.SemanticClass = vm.SemanticClass
			existing.Enabled = vm.Enabled
			found = true
		}
	}
	if !found {
		m.rules.VisionMappings = append(m.rules.VisionMappings, vm)
	}
	return nil
}

// SetActiveMode makes name the only active presence mode.
func (m *MockStore) SetActiveMode(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, mode := range m.household.Modes {
		if mode.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("mode %q: %w", name, ErrNotFound)
	}
	for i := range m.household.Modes {
		m.household.Modes[i].Active = m.household.Modes[i].Name == name
	}
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// --- helpers ---

func copyRuleSet(rs models.RuleSet) models.RuleSet {
	return models.RuleSet{
		Intents:        append([]models.IntentDefinition(nil), rs.Intents...),
		Entities:       append([]models.EntityDefinition(nil), rs.Entities...),
		Patterns:       append([]models.PatternRule(nil), rs.Patterns...),
		VisionMappings: append([]models.VisionClassMapping(nil), rs.VisionMappings...),
	}
}

func copyHousehold(hh models.Household) models.Household {
	out := models.Household{
		Settings:   make(map[string]string, len(hh.Settings)),
		Features:   make(map[string]bool, len(hh.Features)),
		Modes:      append([]models.Mode(nil), hh.Modes...),
		QuietHours: append([]models.QuietHours(nil), hh.QuietHours...),
		Notifiers:  append([]models.Notifier(nil), hh.Notifiers...),
		Visitors:   append([]models.Visitor(nil), hh.Visitors...),
	}
	for k, v := range hh.Settings {
		out.Settings[k] = v
	}
	for k, v := range hh.Features {
		out.Features[k] = v
	}
	return out
}

func copyEvent(ev models.Event) models.Event {
	if len(ev.Actions) > 0 {
		actions := make(map[string]any, len(ev.Actions))
		for k, v := range ev.Actions {
			actions[k] = v
		}
		ev.Actions = actions
	}
	if len(ev.MatchedRuleIDs) > 0 {
		ev.MatchedRuleIDs = append([]int64(nil), ev.MatchedRuleIDs...)
	}
	return ev
}
