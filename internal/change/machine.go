package change

import (
	"fmt"

	"github.com/boshu2/changeops/internal/review"
)

// Machine is the single authoritative writer for one change's state.
// There is exactly one Machine per change per process; concurrent writers
// for the same change are the caller's responsibility to prevent.
type Machine struct {
	root  string
	state *State
}

// NewMachine loads the state for a change and returns its machine.
func NewMachine(root, id string) (*Machine, error) {
	st, err := Load(root, id)
	if err != nil {
		return nil, err
	}
	return &Machine{root: root, state: st}, nil
}

// Current returns the current phase. Pure read, no side effects.
func (m *Machine) Current() Phase { return m.state.Phase }

// State returns the underlying state for read-only inspection.
func (m *Machine) State() State { return *m.state }

// ApplyVerdict persists the phase transition a verdict causes and returns
// the resulting phase. It must be called exactly once per verdict; the
// driver's idempotency checks guard against double application, not the
// machine. Unknown verdicts never transition and always error.
func (m *Machine) ApplyVerdict(v review.Verdict) (Phase, error) {
	next, err := PhaseForVerdict(v)
	if err != nil {
		return m.state.Phase, err
	}
	// NeedsRevision keeps the change in Proposed but still counts an
	// iteration of the review/fix cycle.
	if v == review.VerdictNeedsRevision {
		m.state.Iteration++
	}
	if next != m.state.Phase && !CanTransition(m.state.Phase, next) {
		return m.state.Phase, &TransitionError{From: m.state.Phase, To: next}
	}
	m.state.Phase = next
	if err := save(m.root, m.state); err != nil {
		return m.state.Phase, err
	}
	return next, nil
}

// StartImplementation moves a challenged change into implementing.
func (m *Machine) StartImplementation() error {
	return m.transition(PhaseImplementing, "implement")
}

// MarkComplete records that implementation finished.
func (m *Machine) MarkComplete() error {
	return m.transition(PhaseComplete, "complete")
}

// Archive moves a complete change to the archived terminal phase.
func (m *Machine) Archive() error {
	return m.transition(PhaseArchived, "archive")
}

// Reopen is the explicit manual re-entry from rejected back to proposed.
// The iteration counter resets for the fresh cycle.
func (m *Machine) Reopen() error {
	if m.state.Phase != PhaseRejected {
		return &TransitionError{From: m.state.Phase, To: PhaseProposed}
	}
	m.state.Iteration = 0
	m.state.SessionID = ""
	return m.transition(PhaseProposed, "reopen")
}

// SetSession stores the reviewer session identifier.
func (m *Machine) SetSession(sessionID string) error {
	m.state.SessionID = sessionID
	return save(m.root, m.state)
}

// SetLastAction records the last executed workflow step for diagnostics.
func (m *Machine) SetLastAction(step string) error {
	m.state.LastAction = step
	return save(m.root, m.state)
}

func (m *Machine) transition(to Phase, action string) error {
	if !CanTransition(m.state.Phase, to) {
		return &TransitionError{From: m.state.Phase, To: to}
	}
	m.state.Phase = to
	m.state.LastAction = action
	if err := save(m.root, m.state); err != nil {
		return fmt.Errorf("persist %s transition: %w", action, err)
	}
	return nil
}
