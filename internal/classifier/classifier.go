package classifier

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/echobell/echobell/internal/metrics"
	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/rules"
	"github.com/echobell/echobell/pkg/textutil"
)

// tieEpsilon is the score distance under which two intents count as tied.
const tieEpsilon = 1e-9

// sceneConfidence is reported for vision short-circuits.
const sceneConfidence = 0.9

// Uniforms recognized by the scene short-circuit.
const (
	UniformPolice = "police"
	UniformFire   = "fire"
)

// SnapshotProvider hands out the active rule snapshot.
type SnapshotProvider interface {
	Snapshot() *rules.Snapshot
}

// Classifier maps visitor text, and optionally a vision scene, to an intent.
type Classifier interface {
	Classify(text string) models.Classification
	ClassifyScene(scene models.Scene, text string) models.Classification
}

// Options tunes scoring.
type Options struct {
	// MinScore is the raw score below which the result is unknown.
	MinScore float64
	// ConfidenceScale divides the raw score before the exponential squash.
	ConfidenceScale float64
	// Priority breaks score ties, highest first.
	Priority []string
	// Urgency maps an intent to 0..100. Intents not listed get DefaultUrgency.
	Urgency map[string]int
}

// DefaultUrgency applies to intents missing from Options.Urgency.
const DefaultUrgency = 10

// DefaultOptions returns the stock scoring options.
func DefaultOptions() Options {
	return Options{
		MinScore:        0.5,
		ConfidenceScale: 1.0,
		Priority:        append([]string(nil), models.DefaultIntentPriority...),
		Urgency: map[string]int{
			models.IntentAuthorityUrgent: 90,
			models.IntentTechnicianVisit: 30,
			models.IntentNeighborHelp:    20,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ConfidenceScale <= 0 {
		o.ConfidenceScale = d.ConfidenceScale
	}
	if o.MinScore < 0 {
		o.MinScore = 0
	}
	if len(o.Priority) == 0 {
		o.Priority = d.Priority
	}
	if o.Urgency == nil {
		o.Urgency = d.Urgency
	}
	return o
}

// UrgencyOf returns the configured urgency of intent.
func (o Options) UrgencyOf(intent string) int {
	if u, ok := o.Urgency[intent]; ok {
		return u
	}
	return DefaultUrgency
}

// IntentClassifier scores text against the pattern rules of the active snapshot.
// It holds no per-call state and is safe for concurrent use.
type IntentClassifier struct {
	rules  SnapshotProvider
	opts   Options
	logger *slog.Logger
}

// New creates a classifier reading rules from provider.
func New(provider SnapshotProvider, opts Options, logger *slog.Logger) *IntentClassifier {
	return &IntentClassifier{rules: provider, opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (c *IntentClassifier) Options() Options {
	return c.opts
}

// Classify scores text against the current snapshot.
func (c *IntentClassifier) Classify(text string) models.Classification {
	snap := c.rules.Snapshot()
	result := Score(text, snap, c.opts)
	metrics.ClassificationsTotal.WithLabelValues(result.Intent, result.Source).Inc()
	c.logger.Debug("classified text",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"score", result.Score,
		"matched_rules", len(result.MatchedRuleIDs),
		"ruleset_version", result.RulesetVersion,
		"text_prefix", textutil.Truncate(text, 60),
	)
	return result
}

// ClassifyScene lets strong vision cues decide before falling back to text.
func (c *IntentClassifier) ClassifyScene(scene models.Scene, text string) models.Classification {
	intent := ""
	switch {
	case scene.Uniform == UniformPolice || scene.Uniform == UniformFire:
		intent = models.IntentAuthorityUrgent
	case scene.PackageBox:
		intent = models.IntentPackageDrop
	default:
		return c.Classify(text)
	}

	result := models.Classification{
		Intent:         intent,
		Confidence:     sceneConfidence,
		Urgency:        c.opts.UrgencyOf(intent),
		MatchedRuleIDs: []int64{},
		Source:         models.SourceVision,
		RulesetVersion: c.rules.Snapshot().Version,
	}
	metrics.ClassificationsTotal.WithLabelValues(result.Intent, result.Source).Inc()
	c.logger.Debug("classified scene", "intent", intent, "uniform", scene.Uniform, "package_box", scene.PackageBox)
	return result
}

// Score is the pure scoring function behind Classify. Whitespace in text is
// collapsed before matching.
func Score(text string, snap *rules.Snapshot, opts Options) models.Classification {
	opts = opts.withDefaults()
	result := models.Classification{
		Intent:         models.IntentUnknown,
		Urgency:        opts.UrgencyOf(models.IntentUnknown),
		MatchedRuleIDs: []int64{},
		Source:         models.SourceText,
	}
	if snap == nil {
		return result
	}
	result.RulesetVersion = snap.Version
	if textutil.IsBlank(text) {
		return result
	}
	text = textutil.Normalize(text)

	lower := strings.ToLower(text)
	scores := map[string]float64{}
	entities := map[string]struct{}{}
	for i := range snap.Rules {
		r := &snap.Rules[i]
		if !r.Matches(text, lower) {
			continue
		}
		result.MatchedRuleIDs = append(result.MatchedRuleIDs, r.ID)
		if r.Entity != "" {
			entities[r.Entity] = struct{}{}
		}
		if r.Target != "" {
			scores[r.Target] += r.Contribution
		}
	}
	sort.Slice(result.MatchedRuleIDs, func(i, j int) bool { return result.MatchedRuleIDs[i] < result.MatchedRuleIDs[j] })
	for e := range entities {
		result.MatchedEntities = append(result.MatchedEntities, e)
	}
	sort.Strings(result.MatchedEntities)
	if len(scores) > 0 {
		result.Scores = scores
	}

	best, raw := pickWinner(scores, opts.Priority)
	if best == "" || best == models.IntentUnknown || raw < opts.MinScore {
		return result
	}

	result.Intent = best
	result.Score = raw
	result.Confidence = Confidence(raw, opts.ConfidenceScale)
	result.Urgency = opts.UrgencyOf(best)
	return result
}

// Confidence squashes a raw score into [0,1). It is monotonic in raw.
func Confidence(raw, scale float64) float64 {
	if raw <= 0 {
		return 0
	}
	if scale <= 0 {
		scale = 1
	}
	return 1 - math.Exp(-raw/scale)
}

// pickWinner returns the highest-scoring intent, breaking near-ties by priority
// and then by name so the result never depends on map iteration order.
func pickWinner(scores map[string]float64, priority []string) (string, float64) {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		if _, seen := rank[name]; !seen {
			rank[name] = i
		}
	}
	rankOf := func(name string) int {
		if r, ok := rank[name]; ok {
			return r
		}
		return len(priority)
	}

	top := 0.0
	for _, score := range scores {
		top = max(top, score)
	}
	if top <= 0 {
		return "", 0
	}

	// Every intent within tieEpsilon of the top score is tied with it.
	best, bestScore := "", 0.0
	for name, score := range scores {
		if score <= 0 || top-score > tieEpsilon {
			continue
		}
		rn, rb := rankOf(name), rankOf(best)
		if best == "" || rn < rb || (rn == rb && name < best) {
			best, bestScore = name, score
		}
	}
	return best, bestScore
}
