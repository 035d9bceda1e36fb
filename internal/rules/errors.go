package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRule marks a rule row that was excluded from a snapshot.
	ErrInvalidRule = errors.New("invalid rule definition")

	// ErrStoreUnavailable wraps a rule source failure. The previous snapshot stays active.
	ErrStoreUnavailable = errors.New("rule store unavailable")
)

// Kinds of rows a RuleError can refer to.
const (
	KindPattern       = "pattern"
	KindEntity        = "entity"
	KindVisionMapping = "vision_mapping"
)

// RuleError describes one row excluded at compile time.
type RuleError struct {
	Kind   string `json:"kind"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *RuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Ref, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Ref, e.Reason)
}

// Is reports true for ErrInvalidRule.
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
