// Package risk computes a deterministic, explainable risk score for a
// requested tool call. The score is a weighted blend of the tool's policy
// bucket, danger signals found in the parameters, and the caller's recent
// history, mapped onto a four-level scale.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/clearline-ai/warden/internal/policy"
	"github.com/clearline-ai/warden/internal/sanitize"
	"github.com/clearline-ai/warden/internal/value"
)

// Level is the discrete risk classification.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "low"
	}
}

// Level thresholds, evaluated top-down.
const (
	criticalThreshold = 0.70
	highThreshold     = 0.45
	mediumThreshold   = 0.15
)

// LevelFromScore maps a score in [0,1] onto a Level. Exactly one level
// applies to every score.
func LevelFromScore(score float64) Level {
	switch {
	case score >= criticalThreshold:
		return LevelCritical
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Component weights.
const (
	baseWeight       = 0.7
	parameterWeight  = 0.2
	contextualWeight = 0.1
)

// Base risk per policy bucket; tools absent from every bucket score
// moderately rather than free.
var bucketBaseRisk = map[string]float64{
	policy.BucketLow:      0.1,
	policy.BucketMedium:   0.4,
	policy.BucketHigh:     0.7,
	policy.BucketCritical: 1.0,
}

const unknownToolBaseRisk = 0.5

// Parameter danger signal values. Signals combine by maximum, not summation.
const (
	signalSensitivePath   = 0.5
	signalShellMetachar   = 0.6
	signalPrivateURL      = 0.4
	signalDestructiveSQL  = 0.7
	signalLargeNumber     = 0.3
	signalOversizedString = 0.3
)

const (
	largeNumberLimit    = 1_000_000
	oversizedStringSize = 5000
)

// Contextual signal values, summed then clamped to 1.
const (
	signalRecentBlocked  = 0.3
	signalRecentHighRisk = 0.2
	signalOffHours       = 0.1
	signalUnusualAction  = 0.2
)

// Context keys consumed from the (enriched) call context.
const (
	CtxRecentBlocked  = "recent_blocked"
	CtxRecentHighRisk = "recent_high_risk"
	CtxUnusualAction  = "is_unusual_action"
)

var destructiveSQLKeywords = []string{
	"drop", "delete", "truncate", "alter", "grant", "revoke",
}

var privateURLMarkers = []string{
	"localhost", "127.0.0.1", "0.0.0.0", "::1",
	"10.", "192.168.", "172.16.", "169.254.",
	"file://",
}

// reasoningCutoff is the share of the total below which a factor is left out
// of the reasoning string.
const reasoningCutoff = 0.10

// Score is the outcome of a risk calculation.
type Score struct {
	Level     Level
	Value     float64
	Factors   map[string]float64
	Reasoning string
}

// RequiresConfirmation reports whether the call needs explicit human
// acknowledgment before it may proceed.
func (s Score) RequiresConfirmation() bool {
	return s.Level == LevelHigh || s.Level == LevelCritical
}

// ShouldBlock reports whether the call must not proceed at all. High risk
// alone never blocks here; only the critical level does.
func (s Score) ShouldBlock() bool {
	return s.Level == LevelCritical
}

// Forced builds a Score pinned by policy rather than computed, used when the
// orchestrator overrides scoring (block list, strict mode, sanitizer reject).
func Forced(level Level, score float64, reason string) Score {
	return Score{
		Level:     level,
		Value:     score,
		Factors:   map[string]float64{"policy": score},
		Reasoning: reason,
	}
}

// Scorer computes scores against a loaded PolicySet.
type Scorer struct {
	ps *policy.PolicySet
}

// NewScorer creates a Scorer over a loaded PolicySet.
func NewScorer(ps *policy.PolicySet) *Scorer {
	return &Scorer{ps: ps}
}

// Calculate scores a tool call. It is a pure function of its arguments and
// the PolicySet; the clock is passed in so repeated calls with identical
// inputs return identical output.
func (s *Scorer) Calculate(tool string, params, context map[string]value.Value, at time.Time) Score {
	base := s.baseRisk(tool)
	param := parameterRisk(params)
	contextual := contextualRisk(context, at)

	total := baseWeight*base + parameterWeight*param + contextualWeight*contextual

	factors := map[string]float64{
		"tool_base_risk":  baseWeight * base,
		"parameter_risk":  parameterWeight * param,
		"contextual_risk": contextualWeight * contextual,
	}

	return Score{
		Level:     LevelFromScore(total),
		Value:     total,
		Factors:   factors,
		Reasoning: buildReasoning(factors, total),
	}
}

func (s *Scorer) baseRisk(tool string) float64 {
	bucket, ok := s.ps.ToolBucket(tool)
	if !ok {
		return unknownToolBaseRisk
	}
	return bucketBaseRisk[bucket]
}

// parameterRisk scans parameters for role-specific danger signals and
// returns the maximum triggered value.
func parameterRisk(params map[string]value.Value) float64 {
	best := 0.0
	for key, v := range params {
		scanParameter(key, v, &best)
	}
	return best
}

func scanParameter(key string, v value.Value, best *float64) {
	switch v.Kind() {
	case value.KindString:
		str, _ := v.Str()
		scanString(sanitize.ClassifyRole(key), str, best)
	case value.KindNumber:
		n, _ := v.Num()
		if math.Abs(n) > largeNumberLimit {
			raise(best, signalLargeNumber)
		}
	case value.KindMap:
		m, _ := v.MapValue()
		for childKey, child := range m {
			scanParameter(childKey, child, best)
		}
	case value.KindList:
		l, _ := v.ListValue()
		for _, child := range l {
			scanParameter(key, child, best)
		}
	}
}

func scanString(role sanitize.Role, str string, best *float64) {
	if len(str) > oversizedStringSize {
		raise(best, signalOversizedString)
	}
	lower := strings.ToLower(str)

	switch role {
	case sanitize.RolePath:
		if strings.Contains(str, "..") || strings.HasPrefix(str, "~") || hasSensitivePrefix(lower) {
			raise(best, signalSensitivePath)
		}
	case sanitize.RoleCommand:
		if strings.ContainsAny(str, ";&|`$(){}") {
			raise(best, signalShellMetachar)
		}
	case sanitize.RoleURL:
		for _, marker := range privateURLMarkers {
			if strings.Contains(lower, marker) {
				raise(best, signalPrivateURL)
				break
			}
		}
	case sanitize.RoleSQL:
		for _, kw := range destructiveSQLKeywords {
			if strings.Contains(lower, kw) {
				raise(best, signalDestructiveSQL)
				break
			}
		}
	}
}

var sensitivePathPrefixes = []string{"/etc", "/root", "/sys", "/proc", `c:\windows`}

func hasSensitivePrefix(lowerPath string) bool {
	for _, p := range sensitivePathPrefixes {
		if strings.Contains(lowerPath, p) {
			return true
		}
	}
	return false
}

func raise(best *float64, v float64) {
	if v > *best {
		*best = v
	}
}

// contextualRisk sums history- and time-derived signals, clamped to 1.
func contextualRisk(context map[string]value.Value, at time.Time) float64 {
	total := 0.0

	if n, ok := ctxNumber(context, CtxRecentBlocked); ok && n > 5 {
		total += signalRecentBlocked
	}
	if n, ok := ctxNumber(context, CtxRecentHighRisk); ok && n > 3 {
		total += signalRecentHighRisk
	}

	hour := at.Hour()
	if hour < 6 || hour > 23 {
		total += signalOffHours
	}

	if b, ok := ctxBool(context, CtxUnusualAction); ok && b {
		total += signalUnusualAction
	}

	return math.Min(total, 1.0)
}

func ctxNumber(context map[string]value.Value, key string) (float64, bool) {
	if context == nil {
		return 0, false
	}
	v, ok := context[key]
	if !ok {
		return 0, false
	}
	return v.Num()
}

func ctxBool(context map[string]value.Value, key string) (bool, bool) {
	if context == nil {
		return false, false
	}
	v, ok := context[key]
	if !ok {
		return false, false
	}
	return v.Boolean()
}

// buildReasoning ranks the named factors and renders those contributing more
// than the cutoff share of the total.
func buildReasoning(factors map[string]float64, total float64) string {
	if total <= 0 {
		return "no risk factors triggered"
	}

	type contribution struct {
		name  string
		share float64
	}
	ranked := make([]contribution, 0, len(factors))
	for name, v := range factors {
		share := v / total
		if share > reasoningCutoff {
			ranked = append(ranked, contribution{name: name, share: share})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].share != ranked[j].share {
			return ranked[i].share > ranked[j].share
		}
		return ranked[i].name < ranked[j].name
	})

	parts := make([]string, len(ranked))
	for i, c := range ranked {
		parts[i] = fmt.Sprintf("%s (%.0f%%)", c.name, c.share*100)
	}
	return "dominant factors: " + strings.Join(parts, ", ")
}
