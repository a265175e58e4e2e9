// Package sanitize neutralizes known injection classes in tool parameters
// before they reach risk scoring or execution. A parameter's handling is
// chosen by its inferred role; string values of every role additionally pass
// through the XSS strip. The only fatal signal is *Error — everything else
// is a warning beside the possibly rewritten value.
package sanitize

import (
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/clearline-ai/warden/internal/policy"
	"github.com/clearline-ai/warden/internal/value"
)

// shellMetachars is the fixed set of characters rejected in command-role
// values regardless of policy configuration.
const shellMetachars = ";&|`$(){}"

// maxNumericMagnitude bounds accepted numeric parameters.
const maxNumericMagnitude = 1e15

// Error signals a value that is unsafe and cannot be rewritten to a safe
// form. The orchestrator converts it into a BLOCKED result.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unsafe parameter %q: %s", e.Field, e.Reason)
}

// Sanitizer applies the loaded parameter rules.
type Sanitizer struct {
	ps *policy.PolicySet
}

// New creates a Sanitizer over a loaded PolicySet.
func New(ps *policy.PolicySet) *Sanitizer {
	return &Sanitizer{ps: ps}
}

// SanitizeParameters returns a rewritten copy of params plus any non-fatal
// warnings. The first unsafe value aborts with *Error; the input map is
// never modified.
func (s *Sanitizer) SanitizeParameters(params map[string]value.Value) (map[string]value.Value, []string, error) {
	out := make(map[string]value.Value, len(params))
	var warnings []string
	for key, v := range params {
		clean, err := s.sanitizeValue(key, key, ClassifyRole(key), v, &warnings)
		if err != nil {
			return nil, nil, err
		}
		out[key] = clean
	}
	return out, warnings, nil
}

// sanitizeValue handles one value. Nested map keys are reclassified by their
// own names; list elements inherit the parent key's role.
func (s *Sanitizer) sanitizeValue(field, key string, role Role, v value.Value, warnings *[]string) (value.Value, error) {
	switch v.Kind() {
	case value.KindString:
		str, _ := v.Str()
		clean, err := s.sanitizeString(field, role, str, warnings)
		if err != nil {
			return value.Null(), err
		}
		return value.String(clean), nil

	case value.KindNumber:
		n, _ := v.Num()
		if err := checkNumber(field, n); err != nil {
			return value.Null(), err
		}
		return v, nil

	case value.KindMap:
		m, _ := v.MapValue()
		out := make(map[string]value.Value, len(m))
		for childKey, child := range m {
			childField := field + "." + childKey
			clean, err := s.sanitizeValue(childField, childKey, ClassifyRole(childKey), child, warnings)
			if err != nil {
				return value.Null(), err
			}
			out[childKey] = clean
		}
		return value.Map(out), nil

	case value.KindList:
		l, _ := v.ListValue()
		out := make([]value.Value, len(l))
		for i, child := range l {
			childField := fmt.Sprintf("%s[%d]", field, i)
			clean, err := s.sanitizeValue(childField, key, role, child, warnings)
			if err != nil {
				return value.Null(), err
			}
			out[i] = clean
		}
		return value.List(out), nil

	default:
		return v, nil
	}
}

func (s *Sanitizer) sanitizeString(field string, role Role, str string, warnings *[]string) (string, error) {
	var out string
	var err error

	switch role {
	case RoleSQL:
		out, err = s.sanitizeSQL(field, str, warnings)
	case RoleCommand:
		out, err = s.sanitizeCommand(field, str)
	case RolePath:
		out, err = s.sanitizePath(field, str)
	case RoleURL:
		out, err = s.sanitizeURL(field, str)
	default:
		out = str
	}
	if err != nil {
		return "", err
	}

	stripped, changed := StripXSS(out)
	if changed {
		*warnings = append(*warnings, fmt.Sprintf("parameter %q: removed script content", field))
	}
	return stripped, nil
}

func (s *Sanitizer) sanitizeSQL(field, str string, warnings *[]string) (string, error) {
	rules := s.ps.Rules.DatabaseQueries
	if rules.MaxLength > 0 && len(str) > rules.MaxLength {
		return "", &Error{Field: field, Reason: fmt.Sprintf("SQL value exceeds max length %d", rules.MaxLength)}
	}

	lower := strings.ToLower(str)
	for _, p := range rules.BlockedPatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return "", &Error{Field: field, Reason: fmt.Sprintf("blocked SQL pattern %q", p)}
		}
	}
	if strings.HasSuffix(strings.TrimSpace(str), "--") {
		return "", &Error{Field: field, Reason: "blocked SQL pattern: trailing -- comment"}
	}

	escaped := strings.ReplaceAll(str, "'", "''")
	if escaped != str {
		*warnings = append(*warnings, fmt.Sprintf("parameter %q: escaped embedded quotes", field))
	}
	return escaped, nil
}

func (s *Sanitizer) sanitizeCommand(field, str string) (string, error) {
	rules := s.ps.Rules.SystemCommands
	if rules.MaxLength > 0 && len(str) > rules.MaxLength {
		return "", &Error{Field: field, Reason: fmt.Sprintf("command exceeds max length %d", rules.MaxLength)}
	}
	if i := strings.IndexAny(str, shellMetachars); i >= 0 {
		return "", &Error{Field: field, Reason: fmt.Sprintf("shell metacharacter %q in command", str[i])}
	}
	lower := strings.ToLower(str)
	for _, p := range rules.BlockedPatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return "", &Error{Field: field, Reason: fmt.Sprintf("blocked command pattern %q", p)}
		}
	}
	return str, nil
}

func (s *Sanitizer) sanitizePath(field, str string) (string, error) {
	rules := s.ps.Rules.FilePaths
	if rules.MaxLength > 0 && len(str) > rules.MaxLength {
		return "", &Error{Field: field, Reason: fmt.Sprintf("path exceeds max length %d", rules.MaxLength)}
	}
	if strings.Contains(str, "..") {
		return "", &Error{Field: field, Reason: "path traversal sequence in path"}
	}
	if strings.HasPrefix(str, "~") {
		return "", &Error{Field: field, Reason: "home-relative path not permitted"}
	}
	if p := blockedPrefix(str, rules.BlockedPrefixes); p != "" {
		return "", &Error{Field: field, Reason: fmt.Sprintf("path matches blocked prefix %q", p)}
	}

	// A traversal can resolve into a blocked prefix even when the raw string
	// did not obviously contain one, so the canonical form is re-checked.
	canonical := filepath.Clean(str)
	if p := blockedPrefix(canonical, rules.BlockedPrefixes); p != "" {
		return "", &Error{Field: field, Reason: fmt.Sprintf("canonical path matches blocked prefix %q", p)}
	}
	return canonical, nil
}

func blockedPrefix(path string, prefixes []string) string {
	lower := strings.ToLower(path)
	for _, p := range prefixes {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

func (s *Sanitizer) sanitizeURL(field, str string) (string, error) {
	rules := s.ps.Rules.URLs
	if rules.MaxLength > 0 && len(str) > rules.MaxLength {
		return "", &Error{Field: field, Reason: fmt.Sprintf("URL exceeds max length %d", rules.MaxLength)}
	}

	u, err := url.Parse(str)
	if err != nil {
		return "", &Error{Field: field, Reason: "URL does not parse"}
	}
	scheme := strings.ToLower(u.Scheme)
	schemeOK := false
	for _, allowed := range rules.AllowedSchemes {
		if strings.ToLower(allowed) == scheme {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return "", &Error{Field: field, Reason: fmt.Sprintf("URL scheme %q not allowed", scheme)}
	}

	lower := strings.ToLower(str)
	for _, blocked := range rules.BlockedDomains {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return "", &Error{Field: field, Reason: fmt.Sprintf("URL contains blocked domain %q", blocked)}
		}
	}
	return str, nil
}

func checkNumber(field string, n float64) error {
	if math.IsNaN(n) {
		return &Error{Field: field, Reason: "numeric value is NaN"}
	}
	if math.IsInf(n, 0) {
		return &Error{Field: field, Reason: "numeric value is infinite"}
	}
	if math.Abs(n) > maxNumericMagnitude {
		return &Error{Field: field, Reason: "numeric value magnitude too large"}
	}
	return nil
}
