package api

import (
	"time"

	"github.com/clearline-ai/warden/internal/value"
)

// --- POST /v1/validate request/response ---

// ValidateRequest is the JSON body for POST /v1/validate.
type ValidateRequest struct {
	UserID     string                 `json:"user_id"`
	Tool       string                 `json:"tool"`
	Parameters map[string]value.Value `json:"parameters"`
	Context    map[string]value.Value `json:"context,omitempty"`
}

// BatchCall is one step of a batch validation request.
type BatchCall struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]value.Value `json:"parameters"`
}

// BatchRequest is the JSON body for POST /v1/validate/batch.
type BatchRequest struct {
	UserID string      `json:"user_id"`
	Calls  []BatchCall `json:"calls"`
}

// RiskResp mirrors a computed risk score.
type RiskResp struct {
	Level     string             `json:"level"`
	Score     float64            `json:"score"`
	Factors   map[string]float64 `json:"factors"`
	Reasoning string             `json:"reasoning"`
}

// ValidateResponse is the JSON rendering of one validation result.
type ValidateResponse struct {
	RequestID           string                 `json:"request_id"`
	Status              string                 `json:"status"`
	Risk                RiskResp               `json:"risk"`
	SanitizedParameters map[string]value.Value `json:"sanitized_parameters,omitempty"`
	Warnings            []string               `json:"warnings,omitempty"`
	BlockedReason       *string                `json:"blocked_reason"`
	ConfirmationMessage *string                `json:"confirmation_message"`
	Timestamp           time.Time              `json:"timestamp"`
	LatencyMs           float64                `json:"latency_ms"`
}

// BatchResponse is the JSON body for a batch result.
type BatchResponse struct {
	Results []ValidateResponse `json:"results"`
}

// StatsResponse mirrors a user's derived history statistics.
type StatsResponse struct {
	UserID      string         `json:"user_id"`
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	AverageRisk float64        `json:"average_risk"`
	LastMinute  int            `json:"last_minute"`
}

// --- Tenant CRUD ---

// CreateTenantReq is the JSON body for POST /api/warden/tenants.
type CreateTenantReq struct {
	Name string `json:"name"`
}

// CreateTenantResp includes the plaintext API key (shown once).
type CreateTenantResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
}

// TenantResp mirrors a tenant row (no plaintext key).
type TenantResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// --- Validation events ---

// EventResp mirrors a stored validation event.
type EventResp struct {
	RequestID        string    `json:"request_id"`
	TenantID         string    `json:"tenant_id"`
	UserID           string    `json:"user_id"`
	Tool             string    `json:"tool"`
	ParameterPreview string    `json:"parameter_preview"`
	Status           string    `json:"status"`
	RiskLevel        string    `json:"risk_level"`
	RiskScore        float64   `json:"risk_score"`
	RiskReasoning    string    `json:"risk_reasoning"`
	Warnings         []string  `json:"warnings,omitempty"`
	BlockedReason    *string   `json:"blocked_reason"`
	LatencyMs        float32   `json:"latency_ms"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
}

// EventListResp is a page of stored events.
type EventListResp struct {
	Events   []EventResp `json:"events"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// --- Analytics ---

// ToolCountResp pairs a tool with its validation count.
type ToolCountResp struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// AnalyticsResp holds aggregate counts over the requested window.
type AnalyticsResp struct {
	Total          int             `json:"total"`
	ByStatus       map[string]int  `json:"by_status"`
	AverageRisk    float64         `json:"average_risk"`
	AverageLatency float64         `json:"average_latency_ms"`
	TopTools       []ToolCountResp `json:"top_tools"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
