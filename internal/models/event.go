package models

import "time"

// Event types.
const (
	EventTypeRing     = "ring"
	EventTypeMotion   = "motion"
	EventTypeClassify = "classify"
)

// Event is a structured record of something that happened at the door.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Intent         string         `json:"intent,omitempty"`
	Confidence     float64        `json:"confidence"`
	Urgency        int            `json:"urgency"`
	Mode           string         `json:"mode,omitempty"`
	SnapshotPath   string         `json:"snapshot_path,omitempty"`
	Transcript     string         `json:"transcript,omitempty"`
	Actions        map[string]any `json:"actions,omitempty"`
	MatchedRuleIDs []int64        `json:"matched_rule_ids,omitempty"`
	RulesetVersion uint64         `json:"ruleset_version"`
	CreatedAt      time.Time      `json:"created_at"`
}
