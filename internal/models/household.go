package models

import "time"

// Notifier priorities.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// ValidPriorities is the set of recognized notifier priorities.
var ValidPriorities = []string{PriorityHigh, PriorityNormal, PriorityLow}

// IsValidPriority returns true if p is a recognized notifier priority.
func IsValidPriority(p string) bool {
	for _, v := range ValidPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Mode is a presence mode such as HOME or AWAY.
type Mode struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// QuietHours is a daily window, possibly wrapping midnight.
type QuietHours struct {
	ID    int64  `json:"id"`
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
	// Days is a comma list of mon..sun, or "*" for every day.
	Days    string `json:"days"`
	Enabled bool   `json:"enabled"`
}

// Notifier is a delivery endpoint. Delivery itself happens elsewhere.
type Notifier struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	Priority string `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// Visitor is an entry in the visitor registry.
type Visitor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Relation  string    `json:"relation,omitempty"`
	Trusted   bool      `json:"trusted"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Household is a raw read of the household configuration tables.
type Household struct {
	Settings   map[string]string `json:"settings"`
	Features   map[string]bool   `json:"features"`
	Modes      []Mode            `json:"modes"`
	QuietHours []QuietHours      `json:"quiet_hours"`
	Notifiers  []Notifier        `json:"notifiers"`
	Visitors   []Visitor         `json:"visitors"`
}
