// Package vision translates raw detector labels into the semantic classes the
// classifier and policy engine understand.
package vision

import (
	"log/slog"
	"strings"

	"github.com/echobell/echobell/internal/classifier"
	"github.com/echobell/echobell/internal/metrics"
	"github.com/echobell/echobell/internal/models"
)

// Mapper looks labels up in the vision mappings of the active rule snapshot.
type Mapper struct {
	rules        classifier.SnapshotProvider
	defaultModel string
	logger       *slog.Logger
}

// NewMapper creates a mapper. defaultModel is used when callers pass an empty model name.
func NewMapper(provider classifier.SnapshotProvider, defaultModel string, logger *slog.Logger) *Mapper {
	return &Mapper{rules: provider, defaultModel: defaultModel, logger: logger}
}

// DefaultModel returns the model used for empty model names.
func (m *Mapper) DefaultModel() string {
	return m.defaultModel
}

// MapLabel returns the semantic class for raw under model, or raw unchanged when
// no enabled mapping exists.
func (m *Mapper) MapLabel(model, raw string) string {
	if strings.TrimSpace(model) == "" {
		model = m.defaultModel
	}
	sem, ok := m.rules.Snapshot().LookupVision(model, raw)
	if !ok {
		metrics.VisionLookupsTotal.WithLabelValues("miss").Inc()
		m.logger.Debug("vision label passthrough", "model", model, "raw", raw)
		return raw
	}
	metrics.VisionLookupsTotal.WithLabelValues("hit").Inc()
	return sem
}

// MapDetections maps one frame of detections and derives the scene flags.
// uniform is passed through from an upstream uniform detector, if any.
func (m *Mapper) MapDetections(model string, detections []models.Detection, uniform string) models.Scene {
	scene := models.Scene{
		Labels:  make([]string, 0, len(detections)),
		Uniform: strings.ToLower(strings.TrimSpace(uniform)),
	}
	for _, d := range detections {
		label := m.MapLabel(model, d.Class)
		scene.Labels = append(scene.Labels, label)
		switch strings.ToLower(label) {
		case models.ClassPerson:
			scene.PersonPresent = true
		case models.ClassPackage:
			scene.PackageBox = true
		case models.ClassVehicle:
			scene.VehiclePresent = true
		case models.ClassDog:
			scene.DogPresent = true
		}
	}
	return scene
}
