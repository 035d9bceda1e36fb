// Package rules compiles the classification rule tables into immutable snapshots
// and swaps them in atomically on reload.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/echobell/echobell/internal/models"
)

// CompiledRule is a validated, ready-to-match pattern rule.
type CompiledRule struct {
	models.PatternRule

	// Target is the intent credited on match. Empty for entity-only signals.
	Target string
	// Contribution is the score added to Target on match.
	Contribution float64

	needle string
	re     *regexp.Regexp
}

// Matches reports whether the rule fires on text. lower must be strings.ToLower(text).
func (r *CompiledRule) Matches(text, lower string) bool {
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(lower, r.needle)
}

// Snapshot is an immutable compiled view of one rule set.
// Never mutate a Snapshot after it has been published.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time

	Intents  []models.IntentDefinition
	Entities map[string]models.EntityDefinition
	Rules    []CompiledRule
	Invalid  []RuleError

	// Mappings holds every vision row, disabled ones included, for listing.
	Mappings []models.VisionClassMapping

	intents map[string]struct{}
	vision  map[string]map[string]string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Entities: map[string]models.EntityDefinition{},
		intents:  map[string]struct{}{},
		vision:   map[string]map[string]string{},
	}
}

// HasIntent reports whether name is a defined intent.
func (s *Snapshot) HasIntent(name string) bool {
	_, ok := s.intents[name]
	return ok
}

// LookupVision returns the semantic class of an enabled (model, raw) mapping.
func (s *Snapshot) LookupVision(model, raw string) (string, bool) {
	byRaw, ok := s.vision[normalizeKey(model)]
	if !ok {
		return "", false
	}
	sem, ok := byRaw[normalizeKey(raw)]
	return sem, ok
}

// Models lists the vision models with at least one enabled mapping.
func (s *Snapshot) Models() []string {
	out := make([]string, 0, len(s.vision))
	for m := range s.vision {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Compile validates rs and builds a snapshot. Invalid rows are excluded and reported
// in Snapshot.Invalid; Compile itself never fails.
func Compile(rs *models.RuleSet, version uint64) *Snapshot {
	snap := emptySnapshot()
	snap.Version = version
	snap.LoadedAt = time.Now().UTC()
	if rs == nil {
		return snap
	}

	for _, in := range rs.Intents {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		if _, dup := snap.intents[name]; dup {
			continue
		}
		snap.intents[name] = struct{}{}
		snap.Intents = append(snap.Intents, in)
	}

	// Entities that failed validation are remembered so that rules referencing
	// them are reported with a precise reason.
	badEntities := map[string]struct{}{}
	for _, e := range rs.Entities {
		if rerr := snap.validateEntity(e); rerr != nil {
			snap.Invalid = append(snap.Invalid, *rerr)
			badEntities[e.Name] = struct{}{}
			continue
		}
		snap.Entities[e.Name] = e
	}

	for _, p := range rs.Patterns {
		if !p.Enabled {
			continue
		}
		cr, rerr := snap.compileRule(p, badEntities)
		if rerr != nil {
			snap.Invalid = append(snap.Invalid, *rerr)
			continue
		}
		if cr != nil {
			snap.Rules = append(snap.Rules, *cr)
		}
	}

	// The first enabled row for a normalized (model, raw) key wins; later
	// enabled rows for the same key are reported.
	for _, m := range rs.VisionMappings {
		snap.Mappings = append(snap.Mappings, m)
		model, raw, sem := normalizeKey(m.ModelName), normalizeKey(m.RawClass), strings.TrimSpace(m.SemanticClass)
		ref := m.ModelName + "/" + m.RawClass
		if model == "" || raw == "" || sem == "" {
			snap.Invalid = append(snap.Invalid, RuleError{
				Kind:   KindVisionMapping,
				Ref:    ref,
				Reason: "model, raw class and semantic class are required",
			})
			continue
		}
		if !m.Enabled {
			continue
		}
		byRaw, ok := snap.vision[model]
		if !ok {
			byRaw = map[string]string{}
			snap.vision[model] = byRaw
		}
		if prev, dup := byRaw[raw]; dup {
			snap.Invalid = append(snap.Invalid, RuleError{
				Kind:   KindVisionMapping,
				Ref:    ref,
				Reason: fmt.Sprintf("duplicates an earlier enabled mapping for %s/%s (%s)", model, raw, prev),
			})
			continue
		}
		byRaw[raw] = sem
	}

	return snap
}

func (s *Snapshot) validateEntity(e models.EntityDefinition) *RuleError {
	ref := e.Name
	switch {
	case strings.TrimSpace(e.Name) == "":
		return &RuleError{Kind: KindEntity, Ref: ref, Reason: "empty name"}
	case e.Weight < 0 || e.Weight > 1:
		return &RuleError{Kind: KindEntity, Ref: ref, Reason: fmt.Sprintf("weight %g outside [0,1]", e.Weight)}
	case e.HasHint() && !s.HasIntent(e.IntentHint):
		return &RuleError{Kind: KindEntity, Ref: ref, Reason: fmt.Sprintf("intent hint %q is not a defined intent", e.IntentHint)}
	}
	return nil
}

// compileRule returns (nil, nil) for a valid rule that is inactive because its entity is disabled.
func (s *Snapshot) compileRule(p models.PatternRule, badEntities map[string]struct{}) (*CompiledRule, *RuleError) {
	ref := strconv.FormatInt(p.ID, 10)
	invalid := func(reason string, err error) (*CompiledRule, *RuleError) {
		return nil, &RuleError{Kind: KindPattern, Ref: ref, Reason: reason, Err: err}
	}

	if strings.TrimSpace(p.Pattern) == "" {
		return invalid("empty pattern", nil)
	}
	if p.Weight <= 0 {
		return invalid(fmt.Sprintf("weight %g must be positive", p.Weight), nil)
	}
	if p.Intent == "" && p.Entity == "" {
		return invalid("references neither an intent nor an entity", nil)
	}
	if p.Intent != "" && !s.HasIntent(p.Intent) {
		return invalid(fmt.Sprintf("intent %q is not defined", p.Intent), nil)
	}

	var ent models.EntityDefinition
	if p.Entity != "" {
		if _, bad := badEntities[p.Entity]; bad {
			return invalid(fmt.Sprintf("entity %q is invalid", p.Entity), nil)
		}
		var ok bool
		if ent, ok = s.Entities[p.Entity]; !ok {
			return invalid(fmt.Sprintf("entity %q is not defined", p.Entity), nil)
		}
	}

	cr := &CompiledRule{PatternRule: p}
	if p.IsRegex {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return invalid("bad regular expression", err)
		}
		cr.re = re
	} else {
		cr.needle = strings.ToLower(p.Pattern)
	}

	switch {
	case p.Intent != "":
		// A direct intent reference wins over the entity hint.
		cr.Target = p.Intent
		cr.Contribution = p.Weight
	case !ent.Enabled:
		return nil, nil
	case ent.HasHint():
		cr.Target = ent.IntentHint
		cr.Contribution = p.Weight * ent.Weight
	}
	return cr, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
