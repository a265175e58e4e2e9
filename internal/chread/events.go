// Package chread provides read access to the validation_events table for the
// events and analytics endpoints. It is separate from the write path so the
// async writer never contends with dashboard queries.
package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse validation_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow represents a single row from the validation_events table.
type EventRow struct {
	RequestID        string
	TenantID         string
	UserID           string
	Timestamp        time.Time
	Tool             string
	ParameterPreview string
	Status           string
	RiskLevel        string
	RiskScore        float64
	RiskReasoning    string
	Warnings         []string
	BlockedReason    string
	LatencyMs        float32
	Source           string
}

// EventFilter narrows a ListEvents query. Zero values mean "no filter".
type EventFilter struct {
	TenantID string
	UserID   string
	Status   string
	Tool     string
	Page     int
	PageSize int
}

const defaultPageSize = 50

// ListEvents returns a page of events, newest first, plus the total count
// matching the filter.
func (r *Reader) ListEvents(ctx context.Context, f EventFilter) ([]EventRow, int, error) {
	where, args := buildFilter(f)

	var total uint64
	countQuery := "SELECT count() FROM validation_events" + where
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	query := `
		SELECT request_id, tenant_id, user_id, timestamp, tool,
		       parameter_preview, status, risk_level, risk_score, risk_reasoning,
		       warnings, blocked_reason, latency_ms, source
		FROM validation_events` + where + `
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents: %w", err)
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.RequestID, &e.TenantID, &e.UserID, &e.Timestamp, &e.Tool,
			&e.ParameterPreview, &e.Status, &e.RiskLevel, &e.RiskScore, &e.RiskReasoning,
			&e.Warnings, &e.BlockedReason, &e.LatencyMs, &e.Source,
		); err != nil {
			return nil, 0, fmt.Errorf("ListEvents: %w", err)
		}
		events = append(events, e)
	}
	return events, int(total), rows.Err()
}

// Summary holds aggregate counts for the analytics endpoint.
type Summary struct {
	Total          int
	ByStatus       map[string]int
	AverageRisk    float64
	AverageLatency float64
	TopTools       []ToolCount
}

// ToolCount pairs a tool name with its validation count.
type ToolCount struct {
	Tool  string
	Count int
}

// Summarize aggregates events since the given cutoff.
func (r *Reader) Summarize(ctx context.Context, tenantID string, since time.Time) (*Summary, error) {
	s := &Summary{ByStatus: map[string]int{}}

	where := " WHERE timestamp >= ?"
	args := []any{since}
	if tenantID != "" {
		where += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT status, count(), avg(risk_score), avg(latency_ms)
		FROM validation_events`+where+`
		GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}
	defer rows.Close()

	var riskSum, latencySum float64
	for rows.Next() {
		var status string
		var count uint64
		var avgRisk, avgLatency float64
		if err := rows.Scan(&status, &count, &avgRisk, &avgLatency); err != nil {
			return nil, fmt.Errorf("Summarize: %w", err)
		}
		s.ByStatus[status] = int(count)
		s.Total += int(count)
		riskSum += avgRisk * float64(count)
		latencySum += avgLatency * float64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}
	if s.Total > 0 {
		s.AverageRisk = riskSum / float64(s.Total)
		s.AverageLatency = latencySum / float64(s.Total)
	}

	toolRows, err := r.conn.Query(ctx, `
		SELECT tool, count() AS c
		FROM validation_events`+where+`
		GROUP BY tool
		ORDER BY c DESC
		LIMIT 10`, args...)
	if err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}
	defer toolRows.Close()

	for toolRows.Next() {
		var tc ToolCount
		var count uint64
		if err := toolRows.Scan(&tc.Tool, &count); err != nil {
			return nil, fmt.Errorf("Summarize: %w", err)
		}
		tc.Count = int(count)
		s.TopTools = append(s.TopTools, tc)
	}
	return s, toolRows.Err()
}

func buildFilter(f EventFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Tool != "" {
		clauses = append(clauses, "tool = ?")
		args = append(args, f.Tool)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
