package policy

import (
	"net/url"
	"strings"
)

// Application suffixes stripped before allow-list comparison.
var appSuffixes = []string{".exe", ".app", ".dmg"}

// AllowList answers membership and validity queries against a PolicySet.
type AllowList struct {
	ps *PolicySet
}

// NewAllowList wraps a loaded PolicySet.
func NewAllowList(ps *PolicySet) *AllowList {
	return &AllowList{ps: ps}
}

// IsToolAllowed reports whether the tool appears on the allow list.
func (a *AllowList) IsToolAllowed(tool string) bool {
	_, ok := a.ps.AllowedTools[tool]
	return ok
}

// IsToolBlocked reports whether the tool appears on the block list.
// The block list is checked independently and takes precedence upstream.
func (a *AllowList) IsToolBlocked(tool string) bool {
	_, ok := a.ps.BlockedTools[tool]
	return ok
}

// IsApplicationAllowed reports whether an application may be launched.
// Comparison is case-insensitive with platform suffixes stripped.
func (a *AllowList) IsApplicationAllowed(appName string) bool {
	name := strings.ToLower(strings.TrimSpace(appName))
	for _, suffix := range appSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	for _, allowed := range a.ps.Rules.Applications.Allowed {
		if strings.ToLower(allowed) == name {
			return true
		}
	}
	return false
}

// ValidateURL reports whether a URL passes the configured length, scheme,
// and blocked-domain rules. An empty allowed-scheme set rejects every URL.
func (a *AllowList) ValidateURL(rawURL string) bool {
	rules := a.ps.Rules.URLs
	if rules.MaxLength > 0 && len(rawURL) > rules.MaxLength {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
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
		return false
	}

	lower := strings.ToLower(rawURL)
	for _, blocked := range rules.BlockedDomains {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return false
		}
	}
	return true
}

// ValidateFilePath reports whether a filesystem path passes the configured
// length, blocked-prefix, and extension rules.
func (a *AllowList) ValidateFilePath(path string) bool {
	rules := a.ps.Rules.FilePaths
	if rules.MaxLength > 0 && len(path) > rules.MaxLength {
		return false
	}

	lower := strings.ToLower(path)
	for _, blocked := range rules.BlockedPrefixes {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return false
		}
	}

	if len(rules.AllowedExtensions) > 0 {
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			return false
		}
		ext := strings.ToLower(path[idx:])
		for _, allowed := range rules.AllowedExtensions {
			candidate := strings.ToLower(allowed)
			if !strings.HasPrefix(candidate, ".") {
				candidate = "." + candidate
			}
			if candidate == ext {
				return true
			}
		}
		return false
	}
	return true
}
