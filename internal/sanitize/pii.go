package sanitize

// Match is a single PII hit: the configured pattern name and the matched text.
type Match struct {
	Type  string
	Value string
}

// DetectPII scans text against the configured PII pattern table and returns
// every match, grouped by pattern in table order.
func (s *Sanitizer) DetectPII(text string) []Match {
	var matches []Match
	for _, p := range s.ps.PIIPatterns {
		for _, m := range p.Pattern.FindAllString(text, -1) {
			matches = append(matches, Match{Type: p.Name, Value: m})
		}
	}
	return matches
}

// MaskPII substitutes each PII match with its configured mask token.
func (s *Sanitizer) MaskPII(text string) string {
	out := text
	for _, p := range s.ps.PIIPatterns {
		out = p.Pattern.ReplaceAllString(out, p.Mask)
	}
	return out
}
