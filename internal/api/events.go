package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/clearline-ai/warden/internal/chread"
)

func (d Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeError(w, http.StatusServiceUnavailable, "event storage is not configured")
		return
	}

	q := r.URL.Query()
	filter := chread.EventFilter{
		TenantID: q.Get("tenant_id"),
		UserID:   q.Get("user_id"),
		Status:   q.Get("status"),
		Tool:     q.Get("tool"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filter.PageSize = size
	}

	events, total, err := d.Reader.ListEvents(r.Context(), filter)
	if err != nil {
		d.Logger.Error("event query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event query failed")
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	resp := EventListResp{
		Events:   make([]EventResp, 0, len(events)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResp(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d Dependencies) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeError(w, http.StatusServiceUnavailable, "event storage is not configured")
		return
	}

	q := r.URL.Query()
	hours := 24
	if h, err := strconv.Atoi(q.Get("hours")); err == nil && h > 0 {
		hours = h
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	summary, err := d.Reader.Summarize(r.Context(), q.Get("tenant_id"), since)
	if err != nil {
		d.Logger.Error("analytics query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analytics query failed")
		return
	}

	resp := AnalyticsResp{
		Total:          summary.Total,
		ByStatus:       summary.ByStatus,
		AverageRisk:    summary.AverageRisk,
		AverageLatency: summary.AverageLatency,
		TopTools:       make([]ToolCountResp, 0, len(summary.TopTools)),
	}
	for _, tc := range summary.TopTools {
		resp.TopTools = append(resp.TopTools, ToolCountResp{Tool: tc.Tool, Count: tc.Count})
	}
	writeJSON(w, http.StatusOK, resp)
}

func toEventResp(e chread.EventRow) EventResp {
	resp := EventResp{
		RequestID:        e.RequestID,
		TenantID:         e.TenantID,
		UserID:           e.UserID,
		Tool:             e.Tool,
		ParameterPreview: e.ParameterPreview,
		Status:           e.Status,
		RiskLevel:        e.RiskLevel,
		RiskScore:        e.RiskScore,
		RiskReasoning:    e.RiskReasoning,
		Warnings:         e.Warnings,
		LatencyMs:        e.LatencyMs,
		Source:           e.Source,
		Timestamp:        e.Timestamp,
	}
	if e.BlockedReason != "" {
		reason := e.BlockedReason
		resp.BlockedReason = &reason
	}
	return resp
}
