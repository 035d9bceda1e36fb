package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/store"
)

func TestMockStore_LoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMockStore()

	rs, err := ms.LoadRuleSet(ctx)
	require.NoError(t, err)
	rs.Patterns[0].Enabled = false
	rs.Entities = nil

	again, err := ms.LoadRuleSet(ctx)
	require.NoError(t, err)
	assert.True(t, again.Patterns[0].Enabled)
	assert.NotEmpty(t, again.Entities)
	assert.Equal(t, 2, ms.LoadCalls())

	hh, err := ms.LoadHousehold(ctx)
	require.NoError(t, err)
	hh.Settings["assistant_name"] = "changed"
	hh2, err := ms.LoadHousehold(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Echo-Bell", hh2.Settings["assistant_name"])
}

func TestMockStore_LoadError(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMockStore()
	boom := errors.New("boom")

	ms.SetLoadError(boom)
	_, err := ms.LoadRuleSet(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = ms.LoadHousehold(ctx)
	assert.ErrorIs(t, err, boom)

	ms.SetLoadError(nil)
	_, err = ms.LoadRuleSet(ctx)
	assert.NoError(t, err)
}

func TestMockStore_EventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMockStore()
	base := time.Now().UTC()

	require.NoError(t, ms.RecordEvent(ctx, models.Event{ID: "a", Type: models.EventTypeRing, CreatedAt: base}))
	require.NoError(t, ms.RecordEvent(ctx, models.Event{ID: "b", Type: models.EventTypeRing, CreatedAt: base.Add(time.Second)}))
	assert.Error(t, ms.RecordEvent(ctx, models.Event{ID: "a", Type: models.EventTypeRing}))

	events, err := ms.ListEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID)
}

func TestMockStore_Toggles(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMockStore()

	assert.NoError(t, ms.SetPatternEnabled(ctx, 1, false))
	assert.ErrorIs(t, ms.SetPatternEnabled(ctx, 12345, false), store.ErrNotFound)
	assert.NoError(t, ms.SetEntityEnabled(ctx, "ups", false))
	assert.ErrorIs(t, ms.SetEntityEnabled(ctx, "nope", false), store.ErrNotFound)
	assert.NoError(t, ms.SetVisionMappingEnabled(ctx, "YOLOV8N", "box", false))
	assert.NoError(t, ms.SetActiveMode(ctx, "NIGHT"))
	assert.ErrorIs(t, ms.SetActiveMode(ctx, "PARTY"), store.ErrNotFound)

	hh, err := ms.LoadHousehold(ctx)
	require.NoError(t, err)
	for _, m := range hh.Modes {
		assert.Equal(t, m.Name == "NIGHT", m.Active, m.Name)
	}
}
