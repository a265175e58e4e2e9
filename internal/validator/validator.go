// Package validator orchestrates the safety decision for a requested tool
// call: allow-list gate, sanitization, parameter checks, risk scoring, PII
// scan, rate limiting, and the final status, with a bounded per-user history
// feeding the contextual and rate-limit checks.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clearline-ai/warden/internal/history"
	"github.com/clearline-ai/warden/internal/policy"
	"github.com/clearline-ai/warden/internal/risk"
	"github.com/clearline-ai/warden/internal/sanitize"
	"github.com/clearline-ai/warden/internal/value"
	"go.uber.org/zap"
)

const (
	historyCapacity = 100
	rateWindow      = time.Minute
	// defaultRateLimit applies when the policy has no entry for a risk tier.
	defaultRateLimit = 30

	recentBlockedWindow  = 10
	recentHighRiskWindow = 20
)

// components is one immutable snapshot of the policy-derived machinery.
// Reloads build a fresh snapshot; in-flight calls keep the one they loaded.
type components struct {
	policies  *policy.PolicySet
	allow     *policy.AllowList
	sanitizer *sanitize.Sanitizer
	scorer    *risk.Scorer
}

// SafetyValidator decides whether a requested tool call may proceed. Validate
// and ValidateBatch never return errors: every failure mode resolves to an
// inspectable Result.
type SafetyValidator struct {
	snap    atomic.Pointer[components]
	history *history.Store
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a SafetyValidator over a loaded PolicySet.
func New(ps *policy.PolicySet, logger *zap.Logger) *SafetyValidator {
	v := &SafetyValidator{
		history: history.NewStore(historyCapacity),
		logger:  logger,
		now:     time.Now,
	}
	v.ReloadPolicy(ps)
	return v
}

// ReloadPolicy swaps in a new policy snapshot. History survives the swap.
func (v *SafetyValidator) ReloadPolicy(ps *policy.PolicySet) {
	v.snap.Store(&components{
		policies:  ps,
		allow:     policy.NewAllowList(ps),
		sanitizer: sanitize.New(ps),
		scorer:    risk.NewScorer(ps),
	})
}

// Validate runs the full decision sequence for one tool call.
func (v *SafetyValidator) Validate(userID, tool string, params, context map[string]value.Value) *Result {
	c := v.snap.Load()
	now := v.now()
	var warnings []string

	// 1. Allow-list gate. The block list wins over everything.
	if c.allow.IsToolBlocked(tool) {
		reason := fmt.Sprintf("tool %q is on the blocked list", tool)
		return v.record(userID, &Result{
			Status:        StatusBlocked,
			Risk:          risk.Forced(risk.LevelCritical, 1.0, reason),
			BlockedReason: reason,
			Timestamp:     now,
		})
	}
	if !c.allow.IsToolAllowed(tool) {
		if c.policies.StrictMode {
			reason := fmt.Sprintf("tool %q is not on the allow list", tool)
			return v.record(userID, &Result{
				Status:        StatusBlocked,
				Risk:          risk.Forced(risk.LevelHigh, 0.8, reason),
				BlockedReason: reason,
				Timestamp:     now,
			})
		}
		warnings = append(warnings, fmt.Sprintf("tool %q is not on the allow list", tool))
	}

	// 2. Sanitize. The sanitizer's fatal error is the only hard stop here.
	sanitized, sanWarnings, err := c.sanitizer.SanitizeParameters(params)
	if err != nil {
		v.logger.Warn("parameters rejected by sanitizer",
			zap.String("user_id", userID),
			zap.String("tool", tool),
			zap.Error(err),
		)
		return v.record(userID, &Result{
			Status:        StatusBlocked,
			Risk:          risk.Forced(risk.LevelCritical, 1.0, err.Error()),
			BlockedReason: err.Error(),
			Timestamp:     now,
		})
	}
	warnings = append(warnings, sanWarnings...)

	// 3. Parameter-type checks, non-fatal.
	warnings = append(warnings, v.checkParameterTypes(c, tool, sanitized)...)

	// 4 + 5. Context enrichment and risk scoring.
	enriched := v.enrichContext(userID, context)
	score := c.scorer.Calculate(tool, sanitized, enriched, now)

	// 6. PII scan, non-fatal.
	warnings = append(warnings, v.scanPII(c, sanitized)...)

	// 7. Rate limit keyed by the computed risk tier.
	limitKey := score.Level.String() + "_risk"
	limit, ok := c.policies.RateLimits[limitKey]
	if !ok {
		limit = defaultRateLimit
	}
	if recent := v.history.CountSince(userID, now.Add(-rateWindow)); recent >= limit {
		reason := fmt.Sprintf("rate limit exceeded: %d actions in the last minute (max %d for %s risk)",
			recent, limit, score.Level)
		return v.record(userID, &Result{
			Status:              StatusBlocked,
			Risk:                score,
			SanitizedParameters: sanitized,
			Warnings:            warnings,
			BlockedReason:       reason,
			Timestamp:           now,
		})
	}

	// 8. Status decision.
	result := &Result{
		Risk:                score,
		SanitizedParameters: sanitized,
		Warnings:            warnings,
		Timestamp:           now,
	}
	switch {
	case score.ShouldBlock():
		result.Status = StatusBlocked
		result.BlockedReason = fmt.Sprintf("critical risk: %s", score.Reasoning)
	case score.RequiresConfirmation():
		result.Status = StatusRequiresConfirmation
		result.ConfirmationMessage = fmt.Sprintf("%s is rated %s risk (%s). Confirm to proceed.",
			tool, score.Level, score.Reasoning)
	case len(warnings) > 0:
		result.Status = StatusSanitized
	default:
		result.Status = StatusApproved
	}
	return v.record(userID, result)
}

// ValidateBatch validates calls in order, stopping after the first result
// that is blocked at critical risk: one critical step aborts the rest of a
// multi-step plan.
func (v *SafetyValidator) ValidateBatch(userID string, calls []Call) []*Result {
	results := make([]*Result, 0, len(calls))
	for _, call := range calls {
		r := v.Validate(userID, call.Tool, call.Parameters, nil)
		results = append(results, r)
		if r.Status == StatusBlocked && r.Risk.Level == risk.LevelCritical {
			break
		}
	}
	return results
}

// UserStats derives per-status counts, average risk, and the last-minute
// count purely from the stored history.
func (v *SafetyValidator) UserStats(userID string) Stats {
	entries := v.history.Snapshot(userID)
	stats := Stats{ByStatus: map[string]int{}}
	if len(entries) == 0 {
		return stats
	}

	cutoff := v.now().Add(-rateWindow)
	sum := 0.0
	for _, e := range entries {
		stats.Total++
		stats.ByStatus[e.Status]++
		sum += e.Score
		if !e.At.Before(cutoff) {
			stats.LastMinute++
		}
	}
	stats.AverageRisk = sum / float64(len(entries))
	return stats
}

// record appends the outcome to the user's history and returns it.
func (v *SafetyValidator) record(userID string, r *Result) *Result {
	v.history.Append(userID, history.Entry{
		At:     r.Timestamp,
		Status: r.Status.String(),
		Level:  r.Risk.Level.String(),
		Score:  r.Risk.Value,
	})
	return r
}

// enrichContext merges rolling history statistics into a copy of the
// caller's context.
func (v *SafetyValidator) enrichContext(userID string, context map[string]value.Value) map[string]value.Value {
	enriched := make(map[string]value.Value, len(context)+2)
	for k, val := range context {
		enriched[k] = val
	}

	blocked := v.history.CountRecent(userID, recentBlockedWindow, func(e history.Entry) bool {
		return e.Status == StatusBlocked.String()
	})
	highRisk := v.history.CountRecent(userID, recentHighRiskWindow, func(e history.Entry) bool {
		return e.Level == risk.LevelHigh.String() || e.Level == risk.LevelCritical.String()
	})

	enriched[risk.CtxRecentBlocked] = value.Number(float64(blocked))
	enriched[risk.CtxRecentHighRisk] = value.Number(float64(highRisk))
	return enriched
}

// checkParameterTypes re-checks url, path, and application parameters against
// the allow-list rules and, when the policy carries a schema for the tool,
// validates the parameter shape. All findings are warnings.
func (v *SafetyValidator) checkParameterTypes(c *components, tool string, params map[string]value.Value) []string {
	var warnings []string

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		str, ok := params[key].Str()
		if !ok {
			continue
		}
		switch {
		case sanitize.ClassifyRole(key) == sanitize.RoleURL:
			if !c.allow.ValidateURL(str) {
				warnings = append(warnings, fmt.Sprintf("parameter %q: URL fails policy rules", key))
			}
		case sanitize.ClassifyRole(key) == sanitize.RolePath:
			if !c.allow.ValidateFilePath(str) {
				warnings = append(warnings, fmt.Sprintf("parameter %q: path fails policy rules", key))
			}
		case strings.Contains(strings.ToLower(key), "app"):
			if !c.allow.IsApplicationAllowed(str) {
				warnings = append(warnings, fmt.Sprintf("parameter %q: application %q is not allowed", key, str))
			}
		}
	}

	if sch, ok := c.policies.ToolSchemas[tool]; ok {
		doc := make(map[string]any, len(params))
		for k, val := range params {
			doc[k] = val.Interface()
		}
		if err := sch.Validate(doc); err != nil {
			warnings = append(warnings, fmt.Sprintf("parameters do not match the %s schema: %v", tool, err))
		}
	}
	return warnings
}

// scanPII walks every string in the sanitized parameters and reports the PII
// types found.
func (v *SafetyValidator) scanPII(c *components, params map[string]value.Value) []string {
	var warnings []string

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		walkStrings(key, params[key], func(field, str string) {
			seen := map[string]bool{}
			for _, m := range c.sanitizer.DetectPII(str) {
				if seen[m.Type] {
					continue
				}
				seen[m.Type] = true
				warnings = append(warnings, fmt.Sprintf("parameter %q may contain %s", field, m.Type))
			}
		})
	}
	return warnings
}

func walkStrings(field string, v value.Value, fn func(field, str string)) {
	switch v.Kind() {
	case value.KindString:
		str, _ := v.Str()
		fn(field, str)
	case value.KindMap:
		m, _ := v.MapValue()
		for k, child := range m {
			walkStrings(field+"."+k, child, fn)
		}
	case value.KindList:
		l, _ := v.ListValue()
		for i, child := range l {
			walkStrings(fmt.Sprintf("%s[%d]", field, i), child, fn)
		}
	}
}
