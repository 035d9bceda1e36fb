package models

// EntityDefinition is a known actor or organization whose mention hints at an intent.
type EntityDefinition struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
	// IntentHint is empty for entity-only signals.
	IntentHint string  `json:"intent_hint,omitempty"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
}

// HasHint reports whether matches on this entity contribute to an intent score.
func (e EntityDefinition) HasHint() bool {
	return e.IntentHint != ""
}

// PatternRule is a substring or regex rule contributing weighted evidence
// toward an entity and/or an intent.
type PatternRule struct {
	ID      int64   `json:"id"`
	Pattern string  `json:"pattern"`
	IsRegex bool    `json:"is_regex"`
	Entity  string  `json:"entity,omitempty"`
	Intent  string  `json:"intent,omitempty"`
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}
