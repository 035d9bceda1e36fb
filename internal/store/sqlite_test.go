package store_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echobell.db")
	st, err := store.NewSQLiteStore(path, true, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Init(context.Background()))
	return st
}

func TestSQLiteStore_InitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	v, err := st.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	before, err := st.LoadRuleSet(ctx)
	require.NoError(t, err)

	require.NoError(t, st.Init(ctx))
	after, err := st.LoadRuleSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(before.Patterns), len(after.Patterns))
	assert.Equal(t, len(before.Entities), len(after.Entities))
	assert.Equal(t, len(before.VisionMappings), len(after.VisionMappings))
}

func TestSQLiteStore_LoadRuleSetMatchesSeed(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	want := store.DefaultRuleSet()

	rs, err := st.LoadRuleSet(ctx)
	require.NoError(t, err)

	require.Len(t, rs.Intents, len(want.Intents))
	assert.Equal(t, models.IntentAuthorityUrgent, rs.Intents[0].Name)
	assert.Len(t, rs.Entities, len(want.Entities))
	assert.Len(t, rs.Patterns, len(want.Patterns))
	assert.Len(t, rs.VisionMappings, len(want.VisionMappings))

	byName := map[string]models.EntityDefinition{}
	for _, e := range rs.Entities {
		byName[e.Name] = e
	}
	assert.Equal(t, models.IntentPackageDrop, byName["fedex"].IntentHint)
	assert.InDelta(t, 0.9, byName["fedex"].Weight, 1e-9)
	assert.False(t, byName["adt"].HasHint())
	assert.True(t, byName["adt"].Enabled)

	for i := 1; i < len(rs.Patterns); i++ {
		assert.Less(t, rs.Patterns[i-1].ID, rs.Patterns[i].ID, "patterns ordered by id")
	}

	var book *models.VisionClassMapping
	for i := range rs.VisionMappings {
		if rs.VisionMappings[i].ModelName == "yolov8n" && rs.VisionMappings[i].RawClass == "book" {
			book = &rs.VisionMappings[i]
		}
	}
	require.NotNil(t, book)
	assert.False(t, book.Enabled)
}

func TestSQLiteStore_SeedDoesNotOverwriteEdits(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	require.NoError(t, st.SetPatternEnabled(ctx, 1, false))
	require.NoError(t, st.Init(ctx))

	rs, err := st.LoadRuleSet(ctx)
	require.NoError(t, err)
	for _, p := range rs.Patterns {
		if p.ID == 1 {
			assert.False(t, p.Enabled)
		}
	}
}

func TestSQLiteStore_Toggles(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	require.NoError(t, st.SetEntityEnabled(ctx, "fedex", false))
	require.NoError(t, st.SetVisionMappingEnabled(ctx, " YOLOv8n ", "Microwave", false))

	err := st.SetPatternEnabled(ctx, 9999, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = st.SetEntityEnabled(ctx, "nobody", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = st.SetVisionMappingEnabled(ctx, "yolov8n", "giraffe", true)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rs, err := st.LoadRuleSet(ctx)
	require.NoError(t, err)
	for _, e := range rs.Entities {
		if e.Name == "fedex" {
			assert.False(t, e.Enabled)
		}
	}
	for _, m := range rs.VisionMappings {
		if m.ModelName == "yolov8n" && m.RawClass == "microwave" {
			assert.False(t, m.Enabled)
		}
	}
}

func TestSQLiteStore_UpsertVisionMapping(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	require.NoError(t, st.UpsertVisionMapping(ctx, models.VisionClassMapping{
		ModelName: "yolov8n", RawClass: "Cat", SemanticClass: "pet", Enabled: true,
	}))
	require.NoError(t, st.UpsertVisionMapping(ctx, models.VisionClassMapping{
		ModelName: "yolov8n", RawClass: "microwave", SemanticClass: "appliance", Enabled: true,
	}))
	assert.Error(t, st.UpsertVisionMapping(ctx, models.VisionClassMapping{ModelName: "yolov8n"}))

	rs, err := st.LoadRuleSet(ctx)
	require.NoError(t, err)
	got := map[string]string{}
	for _, m := range rs.VisionMappings {
		if m.ModelName == "yolov8n" {
			got[m.RawClass] = m.SemanticClass
		}
	}
	assert.Equal(t, "pet", got["cat"])
	assert.Equal(t, "appliance", got["microwave"])
}

func TestSQLiteStore_VisionWritesMatchNormalizedKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "echobell.db")
	st, err := store.NewSQLiteStore(path, true, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Init(ctx))

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, `INSERT INTO vision_class_map (model_name, raw_class, semantic_class, enabled) VALUES (' YOLOv8n', 'Toaster ', 'Package', 1)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	find := func() []models.VisionClassMapping {
		rs, err := st.LoadRuleSet(ctx)
		require.NoError(t, err)
		var out []models.VisionClassMapping
		for _, m := range rs.VisionMappings {
			if m.RawClass == "Toaster " || m.RawClass == "toaster" {
				out = append(out, m)
			}
		}
		return out
	}

	require.NoError(t, st.SetVisionMappingEnabled(ctx, "yolov8n", "TOASTER", false))
	rows := find()
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Enabled)

	require.NoError(t, st.UpsertVisionMapping(ctx, models.VisionClassMapping{
		ModelName: "yolov8n", RawClass: "toaster", SemanticClass: " Parcel ", Enabled: true,
	}))
	rows = find()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Enabled)
	assert.Equal(t, "Parcel", rows[0].SemanticClass)
}

func TestSQLiteStore_Household(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	hh, err := st.LoadHousehold(ctx)
	require.NoError(t, err)
	assert.Equal(t, "yolov8n", hh.Settings["vision_default_model"])
	assert.True(t, hh.Features["vision"])
	assert.False(t, hh.Features["llm_fallback"])
	require.Len(t, hh.QuietHours, 1)
	assert.Equal(t, "22:00", hh.QuietHours[0].Start)
	assert.Len(t, hh.Notifiers, 3)

	active := ""
	for _, m := range hh.Modes {
		if m.Active {
			active = m.Name
		}
	}
	assert.Equal(t, "WORKING", active)

	require.NoError(t, st.SetActiveMode(ctx, "AWAY"))
	hh, err = st.LoadHousehold(ctx)
	require.NoError(t, err)
	activeCount := 0
	for _, m := range hh.Modes {
		if m.Active {
			activeCount++
			assert.Equal(t, "AWAY", m.Name)
		}
	}
	assert.Equal(t, 1, activeCount)

	assert.ErrorIs(t, st.SetActiveMode(ctx, "VACATION"), store.ErrNotFound)
}

func TestSQLiteStore_Events(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordEvent(ctx, models.Event{
		ID: "ev-1", Type: models.EventTypeRing, Intent: models.IntentPackageDrop,
		Confidence: 0.8, Urgency: 10, Mode: "HOME", CreatedAt: base,
	}))
	require.NoError(t, st.RecordEvent(ctx, models.Event{
		ID: "ev-2", Type: models.EventTypeRing, Intent: models.IntentAuthorityUrgent,
		Confidence: 0.85, Urgency: 90, Mode: "AWAY", Transcript: "police",
		Actions:        map[string]any{"speak": "One moment please.", "notify": "high"},
		MatchedRuleIDs: []int64{1, 2}, RulesetVersion: 3,
		CreatedAt: base.Add(100 * time.Millisecond),
	}))

	assert.Error(t, st.RecordEvent(ctx, models.Event{ID: "ev-1", Type: models.EventTypeRing}), "duplicate id")
	assert.Error(t, st.RecordEvent(ctx, models.Event{Type: models.EventTypeRing}), "empty id")

	events, err := st.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-2", events[0].ID, "newest first")
	assert.Equal(t, []int64{1, 2}, events[0].MatchedRuleIDs)
	assert.Equal(t, "high", events[0].Actions["notify"])
	assert.Equal(t, uint64(3), events[0].RulesetVersion)
	assert.True(t, events[0].CreatedAt.Equal(base.Add(100*time.Millisecond)))
	assert.Nil(t, events[1].Actions)

	events, err = st.ListEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLiteStore_DeleteEventsBefore(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old-1", "old-2", "new-1"} {
		require.NoError(t, st.RecordEvent(ctx, models.Event{
			ID: id, Type: models.EventTypeRing, CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}
	cutoff := base.Add(36 * time.Hour)

	n, err := st.CountEventsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.DeleteEventsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := st.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new-1", events[0].ID)

	n, err = st.DeleteEventsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_LoadRuleSetQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name, COALESCE\\(description").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	st := store.NewSQLiteStoreFromDB(db, false, testLogger())
	_, err = st.LoadRuleSet(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_LoadRuleSetBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	st := store.NewSQLiteStoreFromDB(db, false, testLogger())
	_, err = st.LoadRuleSet(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_SetPatternEnabledNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE pattern_def SET enabled").
		WithArgs(true, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	st := store.NewSQLiteStoreFromDB(db, false, testLogger())
	err = st.SetPatternEnabled(context.Background(), 42, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
