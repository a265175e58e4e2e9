package validator

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/clearline-ai/warden/internal/policy"
	"github.com/clearline-ai/warden/internal/risk"
	"github.com/clearline-ai/warden/internal/value"
)

const validatorPolicy = `
strict_mode: false
allowed_tools:
  - GET_WEATHER
  - SEND_EMAIL
  - SEND_MESSAGE
  - DATABASE_QUERY
  - READ_FILE
  - OPEN_APPLICATION
  - HTTP_REQUEST
blocked_tools:
  - SYSTEM_SHUTDOWN
risk_levels:
  low:
    - GET_WEATHER
  medium:
    - SEND_EMAIL
    - SEND_MESSAGE
    - READ_FILE
    - OPEN_APPLICATION
    - HTTP_REQUEST
  high:
    - DATABASE_QUERY
parameter_rules:
  database_queries:
    max_length: 5000
    blocked_patterns:
      - DROP TABLE
      - UNION SELECT
  file_paths:
    blocked_prefixes:
      - /etc
  urls:
    allowed_schemes:
      - http
      - https
    blocked_domains:
      - localhost
      - 127.0.0.1
      - "::1"
      - "10."
      - "192.168."
      - "172.16."
  applications:
    allowed:
      - calculator
pii_patterns:
  email:
    pattern: '[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}'
    mask: '[EMAIL]'
rate_limits:
  actions_per_minute:
    low_risk: 60
    medium_risk: 3
    high_risk: 10
    critical_risk: 5
tool_schemas:
  SEND_EMAIL:
    type: object
    required: [to, subject]
`

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T, doc string) *SafetyValidator {
	t.Helper()
	ps, err := policy.Parse([]byte(doc), zap.NewNop())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := New(ps, zap.NewNop())
	v.now = func() time.Time { return noon }
	return v
}

func TestValidateApproved(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "GET_WEATHER", map[string]value.Value{
		"location": value.String("San Francisco"),
	}, nil)

	if res.Status != StatusApproved {
		t.Fatalf("Status = %v, want approved (warnings: %v)", res.Status, res.Warnings)
	}
	if res.Risk.Level != risk.LevelLow {
		t.Errorf("Level = %v, want low", res.Risk.Level)
	}
	if res.BlockedReason != "" || res.ConfirmationMessage != "" {
		t.Errorf("approved result carries reasons: %+v", res)
	}
	loc, _ := res.SanitizedParameters["location"].Str()
	if loc != "San Francisco" {
		t.Errorf("parameter was rewritten: %q", loc)
	}
}

func TestValidateBlockedTool(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "SYSTEM_SHUTDOWN", nil, nil)

	if res.Status != StatusBlocked {
		t.Fatalf("Status = %v, want blocked", res.Status)
	}
	if res.Risk.Level != risk.LevelCritical || res.Risk.Value != 1.0 {
		t.Errorf("Risk = %+v, want forced critical 1.0", res.Risk)
	}
	if !strings.Contains(res.BlockedReason, "blocked list") {
		t.Errorf("BlockedReason = %q", res.BlockedReason)
	}
}

func TestValidateInjectionBlocked(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "DATABASE_QUERY", map[string]value.Value{
		"query": value.String("SELECT * FROM users; DROP TABLE users"),
	}, nil)

	if res.Status != StatusBlocked {
		t.Fatalf("Status = %v, want blocked", res.Status)
	}
	if res.Risk.Level != risk.LevelCritical {
		t.Errorf("Level = %v, want critical", res.Risk.Level)
	}
	if !strings.Contains(res.BlockedReason, "unsafe parameter") ||
		!strings.Contains(res.BlockedReason, "DROP TABLE") {
		t.Errorf("BlockedReason = %q", res.BlockedReason)
	}
}

func TestValidatePrivateURLBlocked(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	for _, raw := range []string{
		"http://192.168.1.10/admin",
		"http://10.0.0.5/",
		"http://172.16.3.2/",
		"http://[::1]/metrics",
	} {
		t.Run(raw, func(t *testing.T) {
			res := v.Validate("alice", "HTTP_REQUEST", map[string]value.Value{
				"url": value.String(raw),
			}, nil)
			if res.Status != StatusBlocked {
				t.Fatalf("Status = %v, want blocked for %q", res.Status, raw)
			}
			if !strings.Contains(res.BlockedReason, "blocked domain") {
				t.Errorf("BlockedReason = %q", res.BlockedReason)
			}
		})
	}
}

func TestValidateXSSStripped(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "SEND_MESSAGE", map[string]value.Value{
		"message": value.String("<script>alert(1)</script>hi"),
	}, nil)

	if res.Status != StatusSanitized {
		t.Fatalf("Status = %v, want sanitized (warnings: %v)", res.Status, res.Warnings)
	}
	msg, _ := res.SanitizedParameters["message"].Str()
	if strings.Contains(strings.ToLower(msg), "<script") {
		t.Errorf("script tag survived: %q", msg)
	}
	if msg != "hi" {
		t.Errorf("sanitized message = %q, want %q", msg, "hi")
	}
}

func TestValidateHighRiskConfirmation(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "DATABASE_QUERY", map[string]value.Value{
		"query": value.String("SELECT id FROM orders WHERE total > 100"),
	}, nil)

	if res.Status != StatusRequiresConfirmation {
		t.Fatalf("Status = %v, want requires_confirmation", res.Status)
	}
	if res.Risk.Level != risk.LevelHigh {
		t.Errorf("Level = %v, want high", res.Risk.Level)
	}
	if !strings.Contains(res.ConfirmationMessage, "DATABASE_QUERY") {
		t.Errorf("ConfirmationMessage = %q", res.ConfirmationMessage)
	}
}

func TestValidatePIIWarning(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "SEND_EMAIL", map[string]value.Value{
		"to":      value.String("bob@example.com"),
		"subject": value.String("Lunch"),
	}, nil)

	if res.Status == StatusBlocked {
		t.Fatalf("PII alone must not block: %+v", res)
	}
	if res.Status != StatusSanitized {
		t.Fatalf("Status = %v, want sanitized", res.Status)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "email") {
			found = true
		}
	}
	if !found {
		t.Errorf("no email PII warning in %v", res.Warnings)
	}
}

func TestValidateSchemaWarning(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "SEND_EMAIL", map[string]value.Value{
		"to": value.String("team"),
	}, nil)

	if res.Status != StatusSanitized {
		t.Fatalf("Status = %v, want sanitized (warnings: %v)", res.Status, res.Warnings)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "schema") {
			found = true
		}
	}
	if !found {
		t.Errorf("no schema warning in %v", res.Warnings)
	}
}

func TestValidateApplicationWarning(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "OPEN_APPLICATION", map[string]value.Value{
		"application": value.String("terminal"),
	}, nil)

	if res.Status != StatusSanitized {
		t.Fatalf("Status = %v, want sanitized (warnings: %v)", res.Status, res.Warnings)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "not allowed") {
			found = true
		}
	}
	if !found {
		t.Errorf("no application warning in %v", res.Warnings)
	}
}

func TestValidateUnknownTool(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	res := v.Validate("alice", "NEVER_CONFIGURED", nil, nil)

	if res.Status == StatusBlocked {
		t.Fatalf("unknown tool must not block outside strict mode: %+v", res)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "allow list") {
			found = true
		}
	}
	if !found {
		t.Errorf("no allow-list warning in %v", res.Warnings)
	}
}

func TestValidateStrictMode(t *testing.T) {
	v := newTestValidator(t, "strict_mode: true\nallowed_tools:\n  - GET_WEATHER\n")

	res := v.Validate("alice", "NEVER_CONFIGURED", nil, nil)
	if res.Status != StatusBlocked {
		t.Fatalf("Status = %v, want blocked in strict mode", res.Status)
	}
	if res.Risk.Level != risk.LevelHigh {
		t.Errorf("Level = %v, want high", res.Risk.Level)
	}
}

func TestValidateRateLimit(t *testing.T) {
	ps, err := policy.Parse([]byte(validatorPolicy), zap.NewNop())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := New(ps, zap.NewNop())
	v.now = func() time.Time { return noon }

	limit := ps.RateLimits["medium_risk"]
	if limit < 1 {
		t.Fatalf("test policy must configure a medium_risk limit, got %d", limit)
	}

	params := map[string]value.Value{
		"to":      value.String("team"),
		"subject": value.String("update"),
	}

	// The fixed clock keeps every call inside one window.
	for i := 0; i < limit; i++ {
		res := v.Validate("alice", "SEND_EMAIL", params, nil)
		if res.Status == StatusBlocked {
			t.Fatalf("call %d blocked early: %q", i+1, res.BlockedReason)
		}
	}

	res := v.Validate("alice", "SEND_EMAIL", params, nil)
	if res.Status != StatusBlocked {
		t.Fatalf("call %d Status = %v, want blocked", limit+1, res.Status)
	}
	if !strings.Contains(res.BlockedReason, "rate limit exceeded") {
		t.Errorf("BlockedReason = %q", res.BlockedReason)
	}

	// Other users keep their own budget.
	if res := v.Validate("bob", "SEND_EMAIL", params, nil); res.Status == StatusBlocked {
		t.Errorf("bob inherited alice's rate limit: %q", res.BlockedReason)
	}
}

func TestValidateBatchShortCircuit(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	calls := []Call{
		{Tool: "GET_WEATHER", Parameters: map[string]value.Value{"location": value.String("Oslo")}},
		{Tool: "SYSTEM_SHUTDOWN"},
		{Tool: "GET_WEATHER", Parameters: map[string]value.Value{"location": value.String("Lima")}},
	}

	results := v.ValidateBatch("alice", calls)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (stop after critical block)", len(results))
	}
	if results[0].Status != StatusApproved {
		t.Errorf("results[0].Status = %v, want approved", results[0].Status)
	}
	if results[1].Status != StatusBlocked {
		t.Errorf("results[1].Status = %v, want blocked", results[1].Status)
	}
}

func TestValidateBatchHighRiskContinues(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	calls := []Call{
		{Tool: "DATABASE_QUERY", Parameters: map[string]value.Value{"query": value.String("SELECT 1")}},
		{Tool: "GET_WEATHER", Parameters: map[string]value.Value{"location": value.String("Oslo")}},
	}

	results := v.ValidateBatch("alice", calls)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (confirmation does not abort the batch)", len(results))
	}
}

func TestContextualEscalation(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	// Six blocked outcomes in the recent history push the contextual factor
	// above zero on the next call.
	for i := 0; i < 6; i++ {
		v.Validate("alice", "SYSTEM_SHUTDOWN", nil, nil)
	}

	res := v.Validate("alice", "GET_WEATHER", map[string]value.Value{
		"location": value.String("Oslo"),
	}, nil)
	if res.Risk.Factors["contextual_risk"] <= 0 {
		t.Errorf("contextual_risk = %v, want > 0 after repeated blocks", res.Risk.Factors["contextual_risk"])
	}

	fresh := newTestValidator(t, validatorPolicy)
	base := fresh.Validate("bob", "GET_WEATHER", map[string]value.Value{
		"location": value.String("Oslo"),
	}, nil)
	if res.Risk.Value <= base.Risk.Value {
		t.Errorf("escalated score %v not above clean score %v", res.Risk.Value, base.Risk.Value)
	}
}

func TestUserStats(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	v.Validate("alice", "GET_WEATHER", map[string]value.Value{"location": value.String("Oslo")}, nil)
	v.Validate("alice", "SYSTEM_SHUTDOWN", nil, nil)
	v.Validate("alice", "DATABASE_QUERY", map[string]value.Value{"query": value.String("SELECT 1")}, nil)

	stats := v.UserStats("alice")
	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	if stats.ByStatus["approved"] != 1 || stats.ByStatus["blocked"] != 1 || stats.ByStatus["requires_confirmation"] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
	if stats.LastMinute != 3 {
		t.Errorf("LastMinute = %d, want 3", stats.LastMinute)
	}
	if stats.AverageRisk <= 0 {
		t.Errorf("AverageRisk = %v, want > 0", stats.AverageRisk)
	}

	empty := v.UserStats("nobody")
	if empty.Total != 0 || empty.AverageRisk != 0 {
		t.Errorf("stats for unseen user = %+v", empty)
	}
}

func TestReloadPolicyKeepsHistory(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	v.Validate("alice", "GET_WEATHER", map[string]value.Value{"location": value.String("Oslo")}, nil)

	// The new policy blocks GET_WEATHER outright.
	ps, err := policy.Parse([]byte("blocked_tools:\n  - GET_WEATHER\n"), zap.NewNop())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v.ReloadPolicy(ps)

	res := v.Validate("alice", "GET_WEATHER", nil, nil)
	if res.Status != StatusBlocked {
		t.Errorf("Status after reload = %v, want blocked", res.Status)
	}

	if got := v.UserStats("alice").Total; got != 2 {
		t.Errorf("history size after reload = %d, want 2", got)
	}
}

func TestValidateNeverReturnsNil(t *testing.T) {
	v := newTestValidator(t, validatorPolicy)

	cases := []struct {
		name   string
		tool   string
		params map[string]value.Value
	}{
		{"nil params", "GET_WEATHER", nil},
		{"empty tool", "", nil},
		{"null value", "GET_WEATHER", map[string]value.Value{"x": value.Null()}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate("alice", tt.tool, tt.params, nil)
			if res == nil {
				t.Fatal("Validate returned nil")
			}
			if res.Timestamp.IsZero() {
				t.Error("Timestamp not set")
			}
		})
	}
}
