package doorbell_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echobell/echobell/internal/classifier"
	"github.com/echobell/echobell/internal/doorbell"
	"github.com/echobell/echobell/internal/household"
	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/policy"
	"github.com/echobell/echobell/internal/rules"
	"github.com/echobell/echobell/internal/store"
	"github.com/echobell/echobell/internal/vision"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingRecorder struct{ err error }

func (f failingRecorder) RecordEvent(_ context.Context, _ models.Event) error { return f.err }

type fixture struct {
	ms    *store.MockStore
	hh    *household.Store
	agent *doorbell.Agent
}

func newFixture(t *testing.T, at time.Time, recorder store.EventRecorder) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	ms := store.NewMockStore()
	hhData := store.DefaultHousehold()
	hhData.Settings["timezone"] = "UTC"
	ms.SetHousehold(hhData)

	rs := rules.New(ms, logger)
	_, err := rs.Reload(ctx)
	require.NoError(t, err)
	hs := household.NewStore(ms, logger)
	_, err = hs.Reload(ctx)
	require.NoError(t, err)

	if recorder == nil {
		recorder = ms
	}
	cls := classifier.New(rs, classifier.DefaultOptions(), logger)
	mapper := vision.NewMapper(rs, "yolov8n", logger)
	agent := doorbell.NewAgent(mapper, cls, policy.Default(), hs, recorder, logger).
		WithClock(func() time.Time { return at })
	return &fixture{ms: ms, hh: hs, agent: agent}
}

var midday = time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)

func TestHandleRing_TextPackage(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, midday, nil)

	out, err := fx.agent.HandleRing(ctx, doorbell.Ring{
		Transcript:   "  Hi, this is FedEx\nwith a delivery ",
		SnapshotPath: "/var/snapshots/1.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, models.IntentPackageDrop, out.Classification.Intent)
	assert.Equal(t, models.SourceText, out.Classification.Source)
	assert.Equal(t, "package", out.Plan.Rule)
	assert.Equal(t, models.PriorityNormal, out.Plan.Notify)
	require.Len(t, out.Targets, 1)
	assert.Equal(t, "household", out.Targets[0].Target)

	events, err := fx.ms.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2, "the snapshot adds a motion event")
	ev := events[0]
	assert.Equal(t, out.Event.ID, ev.ID)
	assert.Len(t, ev.ID, 36)
	assert.Equal(t, models.EventTypeRing, ev.Type)
	assert.Equal(t, "WORKING", ev.Mode)
	assert.Equal(t, "Hi, this is FedEx with a delivery", ev.Transcript)
	assert.Equal(t, "/var/snapshots/1.jpg", ev.SnapshotPath)
	assert.Equal(t, uint64(1), ev.RulesetVersion)
	assert.Contains(t, ev.MatchedRuleIDs, int64(20))
	assert.Equal(t, "package", ev.Actions["rule"])
	assert.Equal(t, false, ev.Actions["quiet_hours"])
	assert.True(t, ev.CreatedAt.Equal(midday))

	motion := events[1]
	require.NotNil(t, out.Motion)
	assert.Equal(t, out.Motion.ID, motion.ID)
	assert.Equal(t, models.EventTypeMotion, motion.Type)
	assert.Equal(t, "/var/snapshots/1.jpg", motion.SnapshotPath)
	assert.Empty(t, motion.Transcript)
}

func TestHandleRing_PackageDuringQuietHours(t *testing.T) {
	fx := newFixture(t, time.Date(2026, 6, 3, 23, 30, 0, 0, time.UTC), nil)

	out, err := fx.agent.HandleRing(context.Background(), doorbell.Ring{Transcript: "amazon package"})
	require.NoError(t, err)
	assert.Equal(t, "package_quiet_hours", out.Plan.Rule)
	assert.Equal(t, models.PriorityLow, out.Plan.Notify)
	require.Len(t, out.Targets, 1, "normal-priority targets always receive")
	assert.Equal(t, "household", out.Targets[0].Target)
	assert.Equal(t, true, out.Event.Actions["quiet_hours"])
}

func TestHandleRing_VisionFirst(t *testing.T) {
	fx := newFixture(t, midday, nil)

	out, err := fx.agent.HandleRing(context.Background(), doorbell.Ring{
		Transcript: "free solar estimate",
		Detections: []models.Detection{{Class: "person", Confidence: 0.9}, {Class: "microwave", Confidence: 0.6}},
	})
	require.NoError(t, err)
	assert.True(t, out.Scene.PersonPresent)
	assert.True(t, out.Scene.PackageBox)
	assert.Equal(t, models.IntentPackageDrop, out.Classification.Intent)
	assert.Equal(t, models.SourceVision, out.Classification.Source)

	require.NotNil(t, out.Motion)
	assert.Equal(t, models.EventTypeMotion, out.Motion.Type)
	assert.Equal(t, []string{models.ClassPerson, models.ClassPackage}, out.Motion.Actions["labels"])
	assert.Equal(t, "yolov8n", out.Motion.Actions["model"])
	assert.Equal(t, true, out.Motion.Actions["package_box"])

	events, err := fx.ms.ListEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventTypeRing, events[0].Type)
	assert.Equal(t, models.EventTypeMotion, events[1].Type)
}

func TestHandleRing_NoFrameNoMotion(t *testing.T) {
	fx := newFixture(t, midday, nil)

	out, err := fx.agent.HandleRing(context.Background(), doorbell.Ring{Transcript: "hi neighbor"})
	require.NoError(t, err)
	assert.Nil(t, out.Motion)

	events, err := fx.ms.ListEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTypeRing, events[0].Type)
}

func TestHandleRing_UniformIsUrgent(t *testing.T) {
	fx := newFixture(t, midday, nil)

	out, err := fx.agent.HandleRing(context.Background(), doorbell.Ring{Uniform: "police"})
	require.NoError(t, err)
	assert.Equal(t, models.IntentAuthorityUrgent, out.Classification.Intent)
	assert.Equal(t, "authority_uniform", out.Plan.Rule)
	assert.Equal(t, models.PriorityHigh, out.Plan.Notify)
	assert.Len(t, out.Targets, 2)
	assert.Equal(t, 90, out.Event.Urgency)
}

func TestHandleRing_ModeDrivesPolicy(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, midday, nil)
	require.NoError(t, fx.ms.SetActiveMode(ctx, "AWAY"))
	_, err := fx.hh.Reload(ctx)
	require.NoError(t, err)

	out, err := fx.agent.HandleRing(ctx, doorbell.Ring{Transcript: "technician here for the repair appointment"})
	require.NoError(t, err)
	assert.Equal(t, "technician_away", out.Plan.Rule)
	assert.Equal(t, "AWAY", out.Event.Mode)
}

func TestHandleRing_Unknown(t *testing.T) {
	fx := newFixture(t, midday, nil)

	out, err := fx.agent.HandleRing(context.Background(), doorbell.Ring{Transcript: ""})
	require.NoError(t, err)
	assert.Equal(t, models.IntentUnknown, out.Classification.Intent)
	assert.Equal(t, policy.FallbackRule, out.Plan.Rule)
	assert.Equal(t, "Sorry, could you repeat that?", out.Plan.Speak)
}

func TestHandleRing_RecorderFailure(t *testing.T) {
	boom := errors.New("disk full")
	fx := newFixture(t, midday, failingRecorder{err: boom})

	out, err := fx.agent.HandleRing(context.Background(), doorbell.Ring{Transcript: "fedex"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, out)
	assert.Equal(t, models.IntentPackageDrop, out.Classification.Intent)
}
