package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clearline-ai/warden/internal/storage"
	"github.com/clearline-ai/warden/internal/validator"
	"github.com/clearline-ai/warden/internal/value"
)

func (d Dependencies) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	if req.UserID == "" || req.Tool == "" {
		writeError(w, http.StatusBadRequest, "user_id and tool are required")
		return
	}

	start := time.Now()
	res := d.Validator.Validate(req.UserID, req.Tool, req.Parameters, req.Context)
	latency := time.Since(start)

	resp := toValidateResponse(uuid.NewString(), res, latency)
	d.emitEvent(r, "api", resp.RequestID, req.UserID, req.Tool, req.Parameters, res, latency)
	writeJSON(w, http.StatusOK, resp)
}

func (d Dependencies) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.Calls) == 0 {
		writeError(w, http.StatusBadRequest, "calls must not be empty")
		return
	}

	calls := make([]validator.Call, len(req.Calls))
	for i, c := range req.Calls {
		if c.Tool == "" {
			writeError(w, http.StatusBadRequest, "calls[%d]: tool is required", i)
			return
		}
		calls[i] = validator.Call{Tool: c.Tool, Parameters: c.Parameters}
	}

	start := time.Now()
	results := d.Validator.ValidateBatch(req.UserID, calls)
	latency := time.Since(start)

	// Latency is attributed per call so stored events stay comparable
	// with single validations.
	per := latency / time.Duration(len(results))
	out := BatchResponse{Results: make([]ValidateResponse, len(results))}
	for i, res := range results {
		resp := toValidateResponse(uuid.NewString(), res, per)
		d.emitEvent(r, "batch", resp.RequestID, req.UserID, calls[i].Tool, calls[i].Parameters, res, per)
		out.Results[i] = resp
	}
	writeJSON(w, http.StatusOK, out)
}

func (d Dependencies) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	stats := d.Validator.UserStats(userID)
	writeJSON(w, http.StatusOK, StatsResponse{
		UserID:      userID,
		Total:       stats.Total,
		ByStatus:    stats.ByStatus,
		AverageRisk: stats.AverageRisk,
		LastMinute:  stats.LastMinute,
	})
}

func toValidateResponse(requestID string, res *validator.Result, latency time.Duration) ValidateResponse {
	resp := ValidateResponse{
		RequestID: requestID,
		Status:    res.Status.String(),
		Risk: RiskResp{
			Level:     res.Risk.Level.String(),
			Score:     res.Risk.Value,
			Factors:   res.Risk.Factors,
			Reasoning: res.Risk.Reasoning,
		},
		SanitizedParameters: res.SanitizedParameters,
		Warnings:            res.Warnings,
		Timestamp:           res.Timestamp,
		LatencyMs:           float64(latency.Microseconds()) / 1000.0,
	}
	if res.BlockedReason != "" {
		reason := res.BlockedReason
		resp.BlockedReason = &reason
	}
	if res.ConfirmationMessage != "" {
		msg := res.ConfirmationMessage
		resp.ConfirmationMessage = &msg
	}
	return resp
}

func (d Dependencies) emitEvent(r *http.Request, source, requestID, userID, tool string, params map[string]value.Value, res *validator.Result, latency time.Duration) {
	if d.Writer == nil {
		return
	}
	tenantID := "unknown"
	if tc, ok := TenantFromContext(r.Context()); ok {
		tenantID = tc.TenantID
	}
	preview := value.Map(params).Preview()
	sum := sha256.Sum256([]byte(preview))
	d.Writer.Write(&storage.ValidationEvent{
		RequestID:        requestID,
		TenantID:         tenantID,
		UserID:           userID,
		Timestamp:        res.Timestamp,
		Tool:             tool,
		ParameterPreview: storage.TruncatePreview(preview, storage.ParameterPreviewLength),
		ParameterHash:    hex.EncodeToString(sum[:]),
		ParameterCount:   uint32(len(params)),
		Status:           res.Status.String(),
		RiskLevel:        res.Risk.Level.String(),
		RiskScore:        res.Risk.Value,
		RiskReasoning:    res.Risk.Reasoning,
		Warnings:         res.Warnings,
		BlockedReason:    res.BlockedReason,
		LatencyMs:        float32(latency.Microseconds()) / 1000.0,
		Source:           source,
	})
}
