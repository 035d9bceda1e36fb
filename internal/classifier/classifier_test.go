package classifier_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echobell/echobell/internal/classifier"
	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/rules"
	"github.com/echobell/echobell/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newDefaultClassifier(t *testing.T) (*classifier.IntentClassifier, *rules.Store) {
	t.Helper()
	rs := rules.New(store.NewMockStore(), testLogger())
	_, err := rs.Reload(context.Background())
	require.NoError(t, err)
	return classifier.New(rs, classifier.DefaultOptions(), testLogger()), rs
}

func snapshotOf(rs models.RuleSet) *rules.Snapshot {
	return rules.Compile(&rs, 1)
}

func TestClassify_DefaultRules(t *testing.T) {
	cls, _ := newDefaultClassifier(t)

	tests := []struct {
		name     string
		text     string
		expected string
		rule     int64
	}{
		{name: "carrier entity", text: "fedex", expected: models.IntentPackageDrop, rule: 20},
		{name: "carrier with delivery", text: "Hi, this is FedEx with a delivery", expected: models.IntentPackageDrop, rule: 26},
		{name: "police officer", text: "the police officer is at the door", expected: models.IntentAuthorityUrgent, rule: 1},
		{name: "solar sales", text: "free solar estimate today", expected: models.IntentSalesSolicit, rule: 61},
		{name: "utility technician", text: "Comcast technician for your appointment", expected: models.IntentTechnicianVisit, rule: 46},
		{name: "neighbor", text: "I'm your neighbor, I lost my dog", expected: models.IntentNeighborHelp, rule: 83},
		{name: "regex word boundary", text: "UPS here", expected: models.IntentPackageDrop, rule: 21},
		{name: "fire department regex", text: "Fire   Department, please open", expected: models.IntentAuthorityUrgent, rule: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cls.Classify(tt.text)
			assert.Equal(t, tt.expected, got.Intent)
			assert.Greater(t, got.Confidence, 0.0)
			assert.Less(t, got.Confidence, 1.0)
			assert.Contains(t, got.MatchedRuleIDs, tt.rule)
			assert.Equal(t, models.SourceText, got.Source)
			assert.Equal(t, uint64(1), got.RulesetVersion)
		})
	}
}

func TestClassify_Scores(t *testing.T) {
	cls, _ := newDefaultClassifier(t)

	got := cls.Classify("the police officer is at the door")
	assert.InDelta(t, 1.9, got.Score, 1e-9)
	assert.InDelta(t, classifier.Confidence(1.9, 1.0), got.Confidence, 1e-12)
	assert.Equal(t, 90, got.Urgency)
	assert.Equal(t, []int64{1, 2}, got.MatchedRuleIDs)

	got = cls.Classify("free solar estimate today")
	assert.InDelta(t, 2.5, got.Score, 1e-9)
	assert.Equal(t, 10, got.Urgency)

	got = cls.Classify("fedex")
	assert.InDelta(t, 0.9, got.Score, 1e-9)
	assert.Equal(t, []string{"fedex"}, got.MatchedEntities)
}

func TestClassify_Unknown(t *testing.T) {
	cls, _ := newDefaultClassifier(t)

	for _, text := range []string{"", "   ", "\n\t", "good afternoon", "services"} {
		got := cls.Classify(text)
		assert.Equal(t, models.IntentUnknown, got.Intent, "text %q", text)
		assert.Equal(t, 0.0, got.Confidence, "text %q", text)
		assert.NotNil(t, got.MatchedRuleIDs)
	}
}

func TestClassify_EntityOnlySignal(t *testing.T) {
	cls, _ := newDefaultClassifier(t)

	got := cls.Classify("ADT security here")
	assert.Equal(t, models.IntentUnknown, got.Intent)
	assert.Equal(t, []int64{69}, got.MatchedRuleIDs)
	assert.Equal(t, []string{"adt"}, got.MatchedEntities)
	assert.Empty(t, got.Scores)
}

func TestClassify_TieBrokenByPriority(t *testing.T) {
	snap := snapshotOf(store.DefaultRuleSet())

	opts := classifier.DefaultOptions()
	opts.MinScore = 0.1
	got := classifier.Score("services", snap, opts)
	assert.Equal(t, models.IntentTechnicianVisit, got.Intent)
	assert.InDelta(t, 0.4, got.Score, 1e-9)
	assert.Equal(t, []int64{45, 67}, got.MatchedRuleIDs)

	opts.Priority = []string{models.IntentSalesSolicit, models.IntentTechnicianVisit}
	got = classifier.Score("services", snap, opts)
	assert.Equal(t, models.IntentSalesSolicit, got.Intent)
}

func TestClassify_TieUnlistedIntentsByName(t *testing.T) {
	rs := models.RuleSet{
		Intents: []models.IntentDefinition{{Name: "zebra"}, {Name: "aardvark"}},
		Patterns: []models.PatternRule{
			{ID: 1, Pattern: "animal", Intent: "zebra", Weight: 1, Enabled: true},
			{ID: 2, Pattern: "animal", Intent: "aardvark", Weight: 1, Enabled: true},
		},
	}
	for i := 0; i < 20; i++ {
		got := classifier.Score("an animal", snapshotOf(rs), classifier.DefaultOptions())
		require.Equal(t, "aardvark", got.Intent)
	}
}

func TestClassify_NearTiesResolvedAgainstTopScore(t *testing.T) {
	// a and c are further apart than the tie band; b is within it of both.
	rs := models.RuleSet{
		Intents: []models.IntentDefinition{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		Patterns: []models.PatternRule{
			{ID: 1, Pattern: "knock", Intent: "a", Weight: 0.5, Enabled: true},
			{ID: 2, Pattern: "knock", Intent: "b", Weight: 0.5 + 0.8e-9, Enabled: true},
			{ID: 3, Pattern: "knock", Intent: "c", Weight: 0.5 + 1.6e-9, Enabled: true},
		},
	}
	snap := snapshotOf(rs)
	for i := 0; i < 200; i++ {
		got := classifier.Score("knock knock", snap, classifier.DefaultOptions())
		require.Equal(t, "b", got.Intent)
	}
}

func TestClassify_CollapsesWhitespace(t *testing.T) {
	cls, _ := newDefaultClassifier(t)

	got := cls.Classify("someone from next\ndoor   is here")
	assert.Equal(t, models.IntentNeighborHelp, got.Intent)
	assert.Contains(t, got.MatchedRuleIDs, int64(81))

	got = cls.ClassifyScene(models.Scene{}, "next \t door")
	assert.Contains(t, got.MatchedRuleIDs, int64(81))

	assert.Equal(t, models.IntentUnknown, cls.Classify(" \n\t ").Intent)
}

func TestClassify_DirectIntentOverridesEntityHint(t *testing.T) {
	rs := models.RuleSet{
		Intents: []models.IntentDefinition{{Name: models.IntentPackageDrop}, {Name: models.IntentSalesSolicit}},
		Entities: []models.EntityDefinition{
			{Name: "amazon", IntentHint: models.IntentPackageDrop, Weight: 0.5, Enabled: true},
		},
		Patterns: []models.PatternRule{
			{ID: 1, Pattern: "amazon prime", Entity: "amazon", Intent: models.IntentSalesSolicit, Weight: 0.8, Enabled: true},
		},
	}
	got := classifier.Score("want some amazon prime?", snapshotOf(rs), classifier.DefaultOptions())
	assert.Equal(t, models.IntentSalesSolicit, got.Intent)
	assert.InDelta(t, 0.8, got.Score, 1e-9)
	assert.Equal(t, []string{"amazon"}, got.MatchedEntities)
	assert.NotContains(t, got.Scores, models.IntentPackageDrop)
}

func TestClassify_InvalidRegexIsolated(t *testing.T) {
	rs := store.DefaultRuleSet()
	rs.Patterns = append(rs.Patterns, models.PatternRule{
		ID: 500, Pattern: "(unclosed", IsRegex: true, Intent: models.IntentPackageDrop, Weight: 5, Enabled: true,
	})
	snap := snapshotOf(rs)
	require.Len(t, snap.Invalid, 1)

	got := classifier.Score("fedex", snap, classifier.DefaultOptions())
	assert.Equal(t, models.IntentPackageDrop, got.Intent)
	assert.NotContains(t, got.MatchedRuleIDs, int64(500))
}

func TestClassify_UnknownWinnerYieldsZero(t *testing.T) {
	rs := models.RuleSet{
		Intents:  []models.IntentDefinition{{Name: models.IntentUnknown}},
		Patterns: []models.PatternRule{{ID: 1, Pattern: "hello", Intent: models.IntentUnknown, Weight: 2, Enabled: true}},
	}
	got := classifier.Score("hello", snapshotOf(rs), classifier.DefaultOptions())
	assert.Equal(t, models.IntentUnknown, got.Intent)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Equal(t, []int64{1}, got.MatchedRuleIDs)
}

func TestClassify_NilSnapshot(t *testing.T) {
	got := classifier.Score("fedex", nil, classifier.DefaultOptions())
	assert.Equal(t, models.IntentUnknown, got.Intent)
}

func TestClassify_ReloadIsDeterministic(t *testing.T) {
	cls, rs := newDefaultClassifier(t)
	corpus := []string{
		"fedex", "", "the police officer is at the door", "free solar estimate today",
		"services", "ADT security here", "Comcast technician", "can I borrow a ladder",
	}

	first := make([]models.Classification, len(corpus))
	for i, text := range corpus {
		first[i] = cls.Classify(text)
	}

	_, err := rs.Reload(context.Background())
	require.NoError(t, err)

	for i, text := range corpus {
		again := cls.Classify(text)
		assert.Equal(t, uint64(2), again.RulesetVersion)
		again.RulesetVersion = first[i].RulesetVersion
		assert.Equal(t, first[i], again, "text %q", text)
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, classifier.Confidence(0, 1))
	assert.Equal(t, 0.0, classifier.Confidence(-1, 1))

	prev := 0.0
	for _, raw := range []float64{0.1, 0.5, 1, 2, 5, 10} {
		c := classifier.Confidence(raw, 1)
		assert.Greater(t, c, prev)
		assert.Less(t, c, 1.0)
		prev = c
	}
	assert.Greater(t, classifier.Confidence(1, 0.5), classifier.Confidence(1, 2), "smaller scale saturates faster")
	assert.Equal(t, classifier.Confidence(1, 1), classifier.Confidence(1, 0), "non-positive scale falls back to 1")
}

func TestClassifyScene(t *testing.T) {
	cls, _ := newDefaultClassifier(t)

	got := cls.ClassifyScene(models.Scene{Uniform: classifier.UniformPolice}, "free solar estimate")
	assert.Equal(t, models.IntentAuthorityUrgent, got.Intent)
	assert.InDelta(t, 0.9, got.Confidence, 1e-12)
	assert.Equal(t, models.SourceVision, got.Source)
	assert.Equal(t, 90, got.Urgency)

	got = cls.ClassifyScene(models.Scene{Uniform: classifier.UniformFire}, "")
	assert.Equal(t, models.IntentAuthorityUrgent, got.Intent)

	got = cls.ClassifyScene(models.Scene{PackageBox: true, PersonPresent: true}, "")
	assert.Equal(t, models.IntentPackageDrop, got.Intent)
	assert.Equal(t, models.SourceVision, got.Source)

	got = cls.ClassifyScene(models.Scene{PersonPresent: true}, "free solar estimate")
	assert.Equal(t, models.IntentSalesSolicit, got.Intent)
	assert.Equal(t, models.SourceText, got.Source)
}

func TestClassify_Concurrent(t *testing.T) {
	cls, rs := newDefaultClassifier(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got := cls.Classify("the police officer is at the door")
				assert.Equal(t, models.IntentAuthorityUrgent, got.Intent)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			_, _ = rs.Reload(context.Background())
		}
	}()
	wg.Wait()
}
