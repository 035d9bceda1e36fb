// Package policy decides what the doorbell says and how loudly it notifies,
// based on the classified intent and household state.
package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/echobell/echobell/internal/models"
)

//go:embed default.yaml
var defaultDocument []byte

// FallbackRule names the plan used when no rule matches.
const FallbackRule = "fallback"

var defaultFallback = Plan{Speak: "Sorry, could you repeat that?", Notify: models.PriorityNormal}

// Condition lists the requirements of a rule. Absent fields always hold;
// list fields hold when any element matches.
type Condition struct {
	Intent        []string `yaml:"intent,omitempty" json:"intent,omitempty"`
	Mode          []string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Uniform       []string `yaml:"uniform,omitempty" json:"uniform,omitempty"`
	MinConfidence *float64 `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty"`
	QuietHours    *bool    `yaml:"quiet_hours,omitempty" json:"quiet_hours,omitempty"`
}

// Plan is the chosen response.
type Plan struct {
	Speak  string `yaml:"speak" json:"speak"`
	Notify string `yaml:"notify" json:"notify"`
	// Rule is the name of the rule that produced the plan.
	Rule string `yaml:"-" json:"rule"`
}

// Rule pairs a condition with a plan.
type Rule struct {
	Name string    `yaml:"name" json:"name"`
	When Condition `yaml:"when" json:"when"`
	Then Plan      `yaml:"then" json:"then"`
}

// Document is the on-disk policy format.
type Document struct {
	Rules    []Rule `yaml:"rules"`
	Fallback *Plan  `yaml:"fallback,omitempty"`
}

// Context is what a decision is based on.
type Context struct {
	Intent     string
	Confidence float64
	Mode       string
	Uniform    string
	QuietHours bool
}

// Engine evaluates a parsed policy document. It is immutable and safe for concurrent use.
type Engine struct {
	rules    []Rule
	fallback Plan
}

// Default returns the engine for the built-in policy document.
func Default() *Engine {
	e, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("built-in policy document is invalid: %v", err))
	}
	return e
}

// Load reads a policy file. An empty path selects the built-in document.
func Load(path string) (*Engine, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	e, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return e, nil
}

// Parse decodes and validates a YAML policy document. Unknown keys are rejected.
func Parse(data []byte) (*Engine, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding policy: %w", err)
	}

	e := &Engine{fallback: defaultFallback}
	seen := map[string]struct{}{}
	for i, r := range doc.Rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule_%d", i+1)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = struct{}{}
		plan, err := normalizePlan(r.Then)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if mc := r.When.MinConfidence; mc != nil && (*mc < 0 || *mc > 1) {
			return nil, fmt.Errorf("rule %q: min_confidence %g outside [0,1]", r.Name, *mc)
		}
		plan.Rule = r.Name
		r.Then = plan
		e.rules = append(e.rules, r)
	}
	if doc.Fallback != nil {
		plan, err := normalizePlan(*doc.Fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		e.fallback = plan
	}
	e.fallback.Rule = FallbackRule
	return e, nil
}

func normalizePlan(p Plan) (Plan, error) {
	p.Notify = strings.ToLower(strings.TrimSpace(p.Notify))
	if p.Notify == "" {
		p.Notify = models.PriorityNormal
	}
	if !models.IsValidPriority(p.Notify) {
		return p, fmt.Errorf("notify %q must be one of %s", p.Notify, strings.Join(models.ValidPriorities, ", "))
	}
	return p, nil
}

// Choose returns the plan of the first matching rule, or the fallback.
func (e *Engine) Choose(ctx Context) Plan {
	for _, r := range e.rules {
		if r.When.Matches(ctx) {
			return r.Then
		}
	}
	return e.fallback
}

// Rules returns the parsed rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Fallback returns the plan used when nothing matches.
func (e *Engine) Fallback() Plan {
	return e.fallback
}

// Matches reports whether every present condition holds for ctx.
func (c Condition) Matches(ctx Context) bool {
	if len(c.Intent) > 0 && !anyEqual(c.Intent, ctx.Intent) {
		return false
	}
	if len(c.Mode) > 0 && !anyEqual(c.Mode, ctx.Mode) {
		return false
	}
	if len(c.Uniform) > 0 && (ctx.Uniform == "" || !anyEqual(c.Uniform, ctx.Uniform)) {
		return false
	}
	if c.MinConfidence != nil && ctx.Confidence < *c.MinConfidence {
		return false
	}
	if c.QuietHours != nil && *c.QuietHours != ctx.QuietHours {
		return false
	}
	return true
}

func anyEqual(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
