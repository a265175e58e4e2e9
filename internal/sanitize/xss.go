package sanitize

import "regexp"

var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	scriptTagRe    = regexp.MustCompile(`(?i)</?script\b[^>]*>`)
	jsSchemeRe     = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// maxStripRounds bounds the strip loop; each round only removes text, so the
// loop terminates long before this in practice.
const maxStripRounds = 10

// StripXSS removes script blocks, javascript: schemes, and inline event
// handler attributes. Stripping repeats until the value is stable, so
// removals cannot splice a new payload together and the pass is idempotent.
func StripXSS(s string) (string, bool) {
	out := s
	for range maxStripRounds {
		next := scriptBlockRe.ReplaceAllString(out, "")
		next = scriptTagRe.ReplaceAllString(next, "")
		next = jsSchemeRe.ReplaceAllString(next, "")
		next = eventHandlerRe.ReplaceAllString(next, "")
		if next == out {
			break
		}
		out = next
	}
	return out, out != s
}
