// Package agent abstracts the external language-model runtime behind a
// narrow invoker contract. The core never inspects agent output beyond
// usage metrics, the session identifier, and the returned text; everything
// else about the runtime is opaque.
package agent

import (
	"context"
	"fmt"
	"time"
)

// ResumeKind selects how a call relates to prior sessions.
type ResumeKind int

const (
	// ResumeNone starts a fresh session.
	ResumeNone ResumeKind = iota
	// ResumeLatest resumes the most recent session. Present for API
	// completeness; the workflow driver never uses it because "latest"
	// can silently attach to an unrelated session.
	ResumeLatest
	// ResumeByIndex resumes the session at a specific 1-based listing
	// index, as resolved by the session resolver.
	ResumeByIndex
)

// ResumeMode describes the resume behavior for one call.
type ResumeMode struct {
	Kind  ResumeKind
	Index int
}

// None starts a fresh session.
func None() ResumeMode { return ResumeMode{Kind: ResumeNone} }

// Latest resumes the most recent session.
func Latest() ResumeMode { return ResumeMode{Kind: ResumeLatest} }

// ByIndex resumes the session at a 1-based listing index.
func ByIndex(i int) ResumeMode { return ResumeMode{Kind: ResumeByIndex, Index: i} }

// Request is one external-agent call.
type Request struct {
	// Prompt is the instruction text.
	Prompt string

	// Env holds extra environment variables for the spawned process.
	Env map[string]string

	// Resume selects session behavior.
	Resume ResumeMode
}

// Result is the successful outcome of one call.
type Result struct {
	// Output is the agent's final text output.
	Output string

	// SessionID is the session identifier the runtime reported, empty
	// when the runtime did not emit one.
	SessionID string

	// Model is the model identifier the runtime reported.
	Model string

	TokensIn  int
	TokensOut int

	// Duration is the wall-clock call duration.
	Duration time.Duration
}

// Invoker is the collaborator contract the driver consumes.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// InvokeError carries enough detail for retry decisions: exit status and
// captured stderr.
type InvokeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvokeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("agent invocation failed (exit %d): %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("agent invocation failed (exit %d): %v", e.ExitCode, e.Err)
}

func (e *InvokeError) Unwrap() error { return e.Err }
