package review

import (
	"regexp"
	"strings"
)

// markerRe matches an explicit verdict marker. Case-insensitive, tolerant
// of whitespace inside the tag. Streamed output can repeat the marker, so
// callers take the last match.
var markerRe = regexp.MustCompile(`(?i)<\s*verdict\s*>\s*([A-Z_]+)\s*<\s*/\s*verdict\s*>`)

// issueRe matches one issue line: an optional list bullet, a severity
// keyword, a colon, and the description.
var issueRe = regexp.MustCompile(`(?i)^\s*(?:[-*]\s*)?(high|medium|low)\s*:\s*(\S.*)$`)

// bareIssueRe matches lines that look like findings but carry no severity
// keyword. They are dropped, not fatal, and counted for the warning.
var bareIssueRe = regexp.MustCompile(`(?i)^\s*[-*]\s*(?:issue|problem|finding)\s*:\s*\S`)

// locationRe matches a trailing "(at <location>)" suffix on a description.
var locationRe = regexp.MustCompile(`(?i)^(.*\S)\s+\(at\s+([^)]+)\)\s*$`)

// Parse extracts zero-or-one terminal verdict marker and the ordered issue
// list from raw text. If multiple markers appear the last one wins. A text
// with no marker at all yields VerdictUnknown; deciding whether that is a
// warning or a hard error is the caller's policy, not the parser's.
func Parse(text string) Review {
	r := Review{Verdict: VerdictUnknown, Raw: text}

	matches := markerRe.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		r.Verdict = ParseVerdict(matches[len(matches)-1][1])
	}

	for _, line := range strings.Split(text, "\n") {
		if m := issueRe.FindStringSubmatch(line); m != nil {
			sev, ok := ParseSeverity(m[1])
			if !ok {
				r.Dropped++
				continue
			}
			issue := Issue{Severity: sev, Description: strings.TrimSpace(m[2])}
			if lm := locationRe.FindStringSubmatch(issue.Description); lm != nil {
				issue.Description = strings.TrimSpace(lm[1])
				issue.Location = strings.TrimSpace(lm[2])
			}
			r.Issues = append(r.Issues, issue)
			continue
		}
		if bareIssueRe.MatchString(line) {
			r.Dropped++
		}
	}

	return r
}
