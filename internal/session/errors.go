package session

import (
	"errors"
	"fmt"
)

// ErrUnparsableOutput is returned when the session listing does not look
// like a listing at all (header or entry markers absent).
var ErrUnparsableOutput = errors.New("session listing output unparsable")

// CommandError reports that the session-list command itself failed.
// It carries the exit detail needed to decide between retry and manual
// intervention.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("session list command %q failed (exit %d): %v", e.Command, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// NotFoundError reports that a well-formed listing did not contain the
// target identifier. There is deliberately no fallback to "most recent":
// resuming the wrong session corrupts its context.
type NotFoundError struct {
	SessionID string
	Entries   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %q not found in listing (%d entries)", e.SessionID, e.Entries)
}
