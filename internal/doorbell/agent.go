// Package doorbell runs the ring pipeline: map the camera frame, classify the
// visitor, pick a response and record what happened.
package doorbell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/echobell/echobell/internal/classifier"
	"github.com/echobell/echobell/internal/household"
	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/policy"
	"github.com/echobell/echobell/internal/store"
	"github.com/echobell/echobell/internal/vision"
	"github.com/echobell/echobell/pkg/textutil"
)

// NotifierKind is the notifier kind resolved for ring alerts.
const NotifierKind = "telegram"

// Ring is one press of the doorbell.
type Ring struct {
	Transcript   string             `json:"transcript"`
	Model        string             `json:"model,omitempty"`
	Detections   []models.Detection `json:"detections,omitempty"`
	Uniform      string             `json:"uniform,omitempty"`
	SnapshotPath string             `json:"snapshot_path,omitempty"`
}

// Outcome is everything decided for a ring. Motion is set when the ring
// carried a camera frame.
type Outcome struct {
	Event          models.Event          `json:"event"`
	Motion         *models.Event         `json:"motion,omitempty"`
	Plan           policy.Plan           `json:"plan"`
	Targets        []models.Notifier     `json:"targets"`
	Classification models.Classification `json:"classification"`
	Scene          models.Scene          `json:"scene"`
}

// HouseholdProvider hands out the current household snapshot.
type HouseholdProvider interface {
	Snapshot() *household.Snapshot
}

// Agent wires the pipeline stages together.
type Agent struct {
	mapper     *vision.Mapper
	classifier classifier.Classifier
	policy     *policy.Engine
	household  HouseholdProvider
	recorder   store.EventRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewAgent creates an agent.
func NewAgent(
	mapper *vision.Mapper,
	cls classifier.Classifier,
	engine *policy.Engine,
	hh HouseholdProvider,
	recorder store.EventRecorder,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		mapper:     mapper,
		classifier: cls,
		policy:     engine,
		household:  hh,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests and replay tooling.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// HandleRing processes one ring and records it as an event. A ring with
// detections or a snapshot is preceded by a motion event.
// Only a recorder failure is returned as an error; the outcome is still populated.
func (a *Agent) HandleRing(ctx context.Context, ring Ring) (*Outcome, error) {
	hh := a.household.Snapshot()
	now := a.now()

	model := ring.Model
	if model == "" {
		model = hh.Setting("vision_default_model", a.mapper.DefaultModel())
	}

	var scene models.Scene
	if hh.FeatureEnabled("vision") || len(ring.Detections) == 0 {
		scene = a.mapper.MapDetections(model, ring.Detections, ring.Uniform)
	} else {
		// Vision disabled: only the uniform hint from the caller is honored.
		scene = a.mapper.MapDetections(model, nil, ring.Uniform)
		a.logger.Debug("vision feature disabled, ignoring detections", "detections", len(ring.Detections))
	}

	transcript := textutil.Normalize(ring.Transcript)
	result := a.classifier.ClassifyScene(scene, transcript)

	mode := hh.ActiveMode()
	quiet := hh.InQuietHours(now)
	plan := a.policy.Choose(policy.Context{
		Intent:     result.Intent,
		Confidence: result.Confidence,
		Mode:       mode,
		Uniform:    scene.Uniform,
		QuietHours: quiet,
	})

	var targets []models.Notifier
	if hh.FeatureEnabled("notify_" + NotifierKind) {
		targets = hh.NotifierTargets(NotifierKind, plan.Notify)
	}

	ev := models.Event{
		ID:           uuid.New().String(),
		Type:         models.EventTypeRing,
		Intent:       result.Intent,
		Confidence:   result.Confidence,
		Urgency:      result.Urgency,
		Mode:         mode,
		SnapshotPath: ring.SnapshotPath,
		Transcript:   transcript,
		Actions: map[string]any{
			"speak":       plan.Speak,
			"notify":      plan.Notify,
			"rule":        plan.Rule,
			"targets":     len(targets),
			"quiet_hours": quiet,
			"source":      result.Source,
		},
		MatchedRuleIDs: result.MatchedRuleIDs,
		RulesetVersion: result.RulesetVersion,
		CreatedAt:      now.UTC(),
	}

	out := &Outcome{
		Event:          ev,
		Plan:           plan,
		Targets:        targets,
		Classification: result,
		Scene:          scene,
	}

	var errs []error
	if len(ring.Detections) > 0 || ring.SnapshotPath != "" {
		motion := motionEvent(model, mode, ring, scene, result.RulesetVersion, now)
		out.Motion = &motion
		if err := a.recorder.RecordEvent(ctx, motion); err != nil {
			a.logger.Error("recording motion event failed", "id", motion.ID, "error", err)
			errs = append(errs, fmt.Errorf("recording motion event: %w", err))
		}
	}
	if err := a.recorder.RecordEvent(ctx, ev); err != nil {
		a.logger.Error("recording ring event failed", "id", ev.ID, "error", err)
		errs = append(errs, fmt.Errorf("recording ring event: %w", err))
	}
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}

	a.logger.Info("ring handled",
		"id", ev.ID,
		"intent", result.Intent,
		"confidence", result.Confidence,
		"source", result.Source,
		"mode", mode,
		"rule", plan.Rule,
		"notify", plan.Notify,
		"targets", len(targets),
		"transcript", textutil.TruncateWords(transcript, 80),
	)
	return out, nil
}

func motionEvent(model, mode string, ring Ring, scene models.Scene, version uint64, now time.Time) models.Event {
	return models.Event{
		ID:           uuid.New().String(),
		Type:         models.EventTypeMotion,
		Mode:         mode,
		SnapshotPath: ring.SnapshotPath,
		Actions: map[string]any{
			"model":       model,
			"labels":      scene.Labels,
			"detections":  len(ring.Detections),
			"person":      scene.PersonPresent,
			"package_box": scene.PackageBox,
			"vehicle":     scene.VehiclePresent,
			"dog":         scene.DogPresent,
			"uniform":     scene.Uniform,
		},
		RulesetVersion: version,
		CreatedAt:      now.UTC(),
	}
}
