package models

// Canonical intent names.
const (
	IntentAuthorityUrgent = "authority_urgent"
	IntentPackageDrop     = "package_drop"
	IntentTechnicianVisit = "technician_visit"
	IntentSalesSolicit    = "sales_solicit"
	IntentNeighborHelp    = "neighbor_help"
	IntentUnknown         = "unknown"
)

// DefaultIntentPriority breaks score ties, highest priority first.
var DefaultIntentPriority = []string{
	IntentAuthorityUrgent,
	IntentPackageDrop,
	IntentTechnicianVisit,
	IntentSalesSolicit,
	IntentNeighborHelp,
	IntentUnknown,
}

// IntentDefinition is a canonical intent category.
type IntentDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Classification sources.
const (
	SourceText   = "text"
	SourceVision = "vision"
)

// Classification is the outcome of classifying one input.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Urgency    int     `json:"urgency"`
	// Score is the raw accumulated weight of the winning intent.
	Score           float64            `json:"score"`
	MatchedRuleIDs  []int64            `json:"matched_rule_ids"`
	MatchedEntities []string           `json:"matched_entities,omitempty"`
	Scores          map[string]float64 `json:"scores,omitempty"`
	Source          string             `json:"source"`
	RulesetVersion  uint64             `json:"ruleset_version"`
}

// RuleSet is a raw, uncompiled read of the rule tables.
type RuleSet struct {
	Intents        []IntentDefinition   `json:"intents"`
	Entities       []EntityDefinition   `json:"entities"`
	Patterns       []PatternRule        `json:"patterns"`
	VisionMappings []VisionClassMapping `json:"vision_mappings"`
}
