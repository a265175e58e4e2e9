package validator

import (
	"time"

	"github.com/clearline-ai/warden/internal/risk"
	"github.com/clearline-ai/warden/internal/value"
)

// Status is the terminal outcome of a single validation.
type Status int

const (
	StatusApproved Status = iota
	StatusRequiresConfirmation
	StatusBlocked
	StatusSanitized
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusRequiresConfirmation:
		return "requires_confirmation"
	case StatusBlocked:
		return "blocked"
	case StatusSanitized:
		return "sanitized"
	default:
		return "approved"
	}
}

// Result is the full outcome of one validation.
//
// Invariants: Status == StatusBlocked exactly when BlockedReason is non-empty,
// and Status == StatusRequiresConfirmation exactly when ConfirmationMessage
// is non-empty.
type Result struct {
	Status              Status
	Risk                risk.Score
	SanitizedParameters map[string]value.Value
	Warnings            []string
	BlockedReason       string
	ConfirmationMessage string
	Timestamp           time.Time
}

// Call is one step of a batch validation.
type Call struct {
	Tool       string
	Parameters map[string]value.Value
}

// Stats summarizes a user's stored history.
type Stats struct {
	Total       int
	ByStatus    map[string]int
	AverageRisk float64
	LastMinute  int
}
