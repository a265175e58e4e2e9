package sanitize

import "strings"

// Role is the inferred handling class for a parameter.
type Role int

const (
	RoleGeneric Role = iota
	RoleSQL
	RoleCommand
	RolePath
	RoleURL
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleSQL:
		return "sql"
	case RoleCommand:
		return "command"
	case RolePath:
		return "path"
	case RoleURL:
		return "url"
	default:
		return "generic"
	}
}

// roleMarkers maps key-name substrings to roles. Longer, more specific
// markers are checked first so "file_path" resolves to path, not generic.
var roleMarkers = []struct {
	marker string
	role   Role
}{
	{"file_path", RolePath},
	{"filename", RolePath},
	{"directory", RolePath},
	{"path", RolePath},
	{"statement", RoleSQL},
	{"query", RoleSQL},
	{"sql", RoleSQL},
	{"command", RoleCommand},
	{"script", RoleCommand},
	{"shell", RoleCommand},
	{"cmd", RoleCommand},
	{"website", RoleURL},
	{"link", RoleURL},
	{"url", RoleURL},
	{"uri", RoleURL},
}

// ClassifyRole infers a parameter's role from its key name. The substring
// heuristic lives here alone so it can be swapped for an explicit per-tool
// schema without touching the sanitization logic.
func ClassifyRole(key string) Role {
	k := strings.ToLower(key)
	for _, m := range roleMarkers {
		if strings.Contains(k, m.marker) {
			return m.role
		}
	}
	return RoleGeneric
}
