// Package review extracts structured verdicts and issue lists from the
// semi-structured review blocks an external agent appends to generated
// documents. Parsing happens exactly once at this boundary; everything
// downstream works with typed values, never raw text.
package review

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the terminal classification of a review pass.
type Verdict string

const (
	VerdictApproved      Verdict = "approved"
	VerdictNeedsRevision Verdict = "needs_revision"
	VerdictRejected      Verdict = "rejected"
	VerdictUnknown       Verdict = "unknown"
)

// markerKeywords maps the canonical marker keyword to its verdict.
var markerKeywords = map[string]Verdict{
	"APPROVED":       VerdictApproved,
	"NEEDS_REVISION": VerdictNeedsRevision,
	"REJECTED":       VerdictRejected,
	"UNKNOWN":        VerdictUnknown,
}

// String returns the lowercase verdict name.
func (v Verdict) String() string { return string(v) }

// Terminal reports whether the verdict ends a critique loop.
func (v Verdict) Terminal() bool {
	return v == VerdictApproved || v == VerdictRejected
}

// ParseVerdict maps a keyword (any case, surrounding whitespace tolerated)
// to a Verdict. Unrecognized keywords map to VerdictUnknown.
func ParseVerdict(s string) Verdict {
	key := strings.ToUpper(strings.TrimSpace(s))
	if v, ok := markerKeywords[key]; ok {
		return v
	}
	return VerdictUnknown
}

// Render emits the canonical machine-readable marker for a verdict.
// Parse(Render(v)) round-trips for every verdict.
func Render(v Verdict) string {
	keyword := "UNKNOWN"
	for k, mapped := range markerKeywords {
		if mapped == v {
			keyword = k
			break
		}
	}
	return fmt.Sprintf("<verdict>%s</verdict>", keyword)
}

// Severity classifies an issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities for sorting: high > medium > low.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps a severity keyword to a Severity. The second return
// is false for anything that is not high/medium/low.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, true
	case "medium":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	}
	return "", false
}

// Issue is a single severity-classified finding from a review pass.
type Issue struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
}

// Review is the structured result of one critique pass over an artifact.
// Reviews are append-only: a new Review is recorded per pass and the latest
// one is always the most recently appended for a given artifact.
type Review struct {
	Verdict Verdict `json:"verdict"`
	Issues  []Issue `json:"issues,omitempty"`

	// Dropped counts issue-looking lines that lacked a recognizable
	// severity and were discarded with a warning.
	Dropped int `json:"dropped_issues,omitempty"`

	// Raw preserves the original block for audit.
	Raw string `json:"raw,omitempty"`

	// RecordedAt is set when the review is appended to history.
	RecordedAt time.Time `json:"recorded_at,omitempty"`
}

// Consistent reports whether the verdict and issue list agree. A
// needs-revision or rejected verdict with zero issues is an inconsistency
// the caller must surface, never silently proceed past.
func (r Review) Consistent() bool {
	if r.Verdict == VerdictNeedsRevision || r.Verdict == VerdictRejected {
		return len(r.Issues) > 0
	}
	return true
}
