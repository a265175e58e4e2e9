package storage

import "time"

// EventWriter is the interface for writing validation events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ValidationEvent)
	Close()
}

// ValidationEvent represents a single validation outcome to be persisted.
type ValidationEvent struct {
	RequestID        string
	TenantID         string
	UserID           string
	Timestamp        time.Time
	Tool             string
	ParameterPreview string // first 500 chars of the rendered parameters
	ParameterHash    string // SHA256 of the full rendered parameters
	ParameterCount   uint32
	Status           string
	RiskLevel        string
	RiskScore        float64
	RiskReasoning    string
	Warnings         []string
	BlockedReason    string
	LatencyMs        float32
	Source           string // "api" or "batch"
}

// ParameterPreviewLength is the max chars stored in parameter_preview.
const ParameterPreviewLength = 500

// TruncatePreview returns the first N characters (runes) of a rendered
// parameter map for preview storage. It never splits a multi-byte UTF-8
// character.
func TruncatePreview(preview string, maxLen int) string {
	runes := []rune(preview)
	if len(runes) <= maxLen {
		return preview
	}
	return string(runes[:maxLen])
}
