// Package policy loads and serves the safety policy document: tool allow and
// block lists, risk buckets, parameter rules, PII patterns, rate limits, and
// optional per-tool parameter schemas. A loaded PolicySet is immutable;
// reloads build a new set and swap it in at the orchestrator.
package policy

import (
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Risk bucket names, in ascending order of severity.
const (
	BucketLow      = "low"
	BucketMedium   = "medium"
	BucketHigh     = "high"
	BucketCritical = "critical"
)

var bucketNames = []string{BucketLow, BucketMedium, BucketHigh, BucketCritical}

// PolicySet is the immutable, process-wide safety policy. The zero policy
// (see Empty) permits nothing: fail closed.
type PolicySet struct {
	StrictMode bool

	AllowedTools map[string]struct{}
	BlockedTools map[string]struct{}

	// toolBuckets maps a tool name to its risk bucket name.
	toolBuckets map[string]string

	Rules ParameterRules

	PIIPatterns []PIIPattern

	// RateLimits maps "<level>_risk" to max actions per minute.
	RateLimits map[string]int

	// ToolSchemas holds compiled JSON schemas for per-tool parameter
	// validation. Tools without a schema are validated by role inference only.
	ToolSchemas map[string]*jsonschema.Schema

	// raw is the decoded policy document, kept for dotted-key lookups.
	raw map[string]any
}

// ParameterRules holds the per-role sanitization rule sets.
type ParameterRules struct {
	DatabaseQueries QueryRules
	SystemCommands  CommandRules
	FilePaths       PathRules
	URLs            URLRules
	Applications    AppRules
}

// QueryRules constrains SQL-role parameters.
type QueryRules struct {
	MaxLength       int // <= 0 means no length limit configured
	BlockedPatterns []string
}

// CommandRules constrains command-role parameters. The fixed shell
// metacharacter set is enforced by the sanitizer regardless of these rules.
type CommandRules struct {
	MaxLength       int
	BlockedPatterns []string
}

// PathRules constrains path-role parameters.
type PathRules struct {
	MaxLength         int
	BlockedPrefixes   []string
	AllowedExtensions []string // empty = any extension
}

// URLRules constrains url-role parameters.
type URLRules struct {
	MaxLength      int
	AllowedSchemes []string
	BlockedDomains []string
}

// AppRules lists launchable applications.
type AppRules struct {
	Allowed []string
}

// PIIPattern is a compiled PII matcher with its mask token.
type PIIPattern struct {
	Name    string
	Pattern *regexp.Regexp
	Mask    string
}

// Empty returns the fail-closed policy: no tools allowed, no schemes allowed,
// no rate limits configured.
func Empty() *PolicySet {
	return &PolicySet{
		AllowedTools: map[string]struct{}{},
		BlockedTools: map[string]struct{}{},
		toolBuckets:  map[string]string{},
		RateLimits:   map[string]int{},
		ToolSchemas:  map[string]*jsonschema.Schema{},
		raw:          map[string]any{},
	}
}

// ToolBucket returns the risk bucket name for a tool and whether the tool
// appears in any bucket.
func (ps *PolicySet) ToolBucket(tool string) (string, bool) {
	b, ok := ps.toolBuckets[tool]
	return b, ok
}

// Lookup resolves a dotted key (e.g. "rate_limits.actions_per_minute.high_risk")
// against the raw policy document, returning def when any segment is missing.
func (ps *PolicySet) Lookup(dottedKey string, def any) any {
	var cur any = ps.raw
	start := 0
	for i := 0; i <= len(dottedKey); i++ {
		if i < len(dottedKey) && dottedKey[i] != '.' {
			continue
		}
		seg := dottedKey[start:i]
		start = i + 1
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		cur, ok = m[seg]
		if !ok {
			return def
		}
	}
	return cur
}
