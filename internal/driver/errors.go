package driver

import "fmt"

// ErrorKind classifies cycle failures so callers can decide between
// "retry", "wait and resume", and "manual intervention".
type ErrorKind string

const (
	// KindTransient: an external call failed even after retries.
	KindTransient ErrorKind = "transient"

	// KindParse: a required verdict could not be parsed. Always fatal on
	// the critique path; the self-review path downgrades it to a warning
	// instead of producing this error.
	KindParse ErrorKind = "parse"

	// KindSession: session listing or resolution failed. Never falls
	// back to "most recent".
	KindSession ErrorKind = "session"

	// KindConsistency: a needs-revision or rejected verdict arrived with
	// zero recorded issues.
	KindConsistency ErrorKind = "consistency"

	// KindValidation: local structural validation failed on the
	// zero-call fast path.
	KindValidation ErrorKind = "validation"

	// KindState: the change is in a phase the cycle cannot operate on,
	// or a local state write (artifact, review, session, usage) failed.
	KindState ErrorKind = "state"
)

// CycleError is the error payload of an error outcome. It always names
// the step that failed.
type CycleError struct {
	Kind ErrorKind
	Step string
	Err  error
}

func (e *CycleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error at step %q: %v", e.Kind, e.Step, e.Err)
	}
	return fmt.Sprintf("%s error at step %q", e.Kind, e.Step)
}

func (e *CycleError) Unwrap() error { return e.Err }

func cycleErr(kind ErrorKind, step string, err error) *CycleError {
	return &CycleError{Kind: kind, Step: step, Err: err}
}
