package driver

import (
	"fmt"

	"github.com/boshu2/changeops/internal/change"
)

// OutcomeKind classifies how a planning cycle ended.
type OutcomeKind string

const (
	// OutcomeApproved: the critique approved the change; phase advanced
	// to challenged.
	OutcomeApproved OutcomeKind = "approved"

	// OutcomeRejected: the critique rejected the change; phase is the
	// rejected terminal state.
	OutcomeRejected OutcomeKind = "rejected"

	// OutcomeExhausted: the iteration budget ran out with a
	// needs-revision verdict still outstanding. Not an error, but not
	// success either; callers must branch on it explicitly.
	OutcomeExhausted OutcomeKind = "exhausted"

	// OutcomeUpToDate: every required artifact already existed, local
	// validation passed, and no external call was made.
	OutcomeUpToDate OutcomeKind = "up-to-date"

	// OutcomeError: the cycle aborted; Err carries the failing step and
	// cause.
	OutcomeError OutcomeKind = "error"
)

// Outcome is the result of one RunCycle invocation.
type Outcome struct {
	Kind OutcomeKind

	// Phase is the change's phase when the cycle ended.
	Phase change.Phase

	// IssueCount is the last review's issue count, set for exhausted
	// outcomes.
	IssueCount int

	// Err is set for error outcomes.
	Err *CycleError
}

// String renders a one-line human-readable summary.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeExhausted:
		return fmt.Sprintf("%s (%d issues outstanding, phase %s)", o.Kind, o.IssueCount, o.Phase)
	case OutcomeError:
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	default:
		return fmt.Sprintf("%s (phase %s)", o.Kind, o.Phase)
	}
}

func errorOutcome(phase change.Phase, err *CycleError) Outcome {
	return Outcome{Kind: OutcomeError, Phase: phase, Err: err}
}
