package lifecycle_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echobell/echobell/internal/lifecycle"
	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seedEvents(t *testing.T, ms *store.MockStore, now time.Time, ages ...time.Duration) {
	t.Helper()
	for i, age := range ages {
		require.NoError(t, ms.RecordEvent(context.Background(), models.Event{
			ID:        string(rune('a' + i)),
			Type:      models.EventTypeRing,
			CreatedAt: now.Add(-age),
		}))
	}
}

func TestManager_ExpiresOldEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ms := store.NewMockStore()
	seedEvents(t, ms, now, time.Hour, 10*24*time.Hour, 40*24*time.Hour, 400*24*time.Hour)

	m := lifecycle.NewManager(ms, 30*24*time.Hour, testLogger()).WithClock(func() time.Time { return now })

	report, err := m.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Expired)
	assert.True(t, report.DryRun)
	assert.True(t, report.Cutoff.Equal(now.Add(-30*24*time.Hour)))

	events, err := ms.ListEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 4, "dry run deletes nothing")

	report, err = m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Expired)

	events, err = ms.ListEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestManager_ZeroRetentionKeepsEverything(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	ms := store.NewMockStore()
	seedEvents(t, ms, now, 1000*24*time.Hour)

	report, err := lifecycle.NewManager(ms, 0, testLogger()).Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.Expired)
	assert.True(t, report.Cutoff.IsZero())

	events, err := ms.ListEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

type failingPruner struct{}

func (failingPruner) CountEventsBefore(context.Context, time.Time) (int, error) {
	return 0, errors.New("locked")
}

func (failingPruner) DeleteEventsBefore(context.Context, time.Time) (int, error) {
	return 0, errors.New("locked")
}

func TestManager_StoreFailure(t *testing.T) {
	_, err := lifecycle.NewManager(failingPruner{}, time.Hour, testLogger()).Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}
