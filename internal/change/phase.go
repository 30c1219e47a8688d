// Package change owns the authoritative per-change state: current phase,
// iteration counter, stored session identifier, and the transition rules
// between lifecycle phases. State is mutated only through explicit
// transition operations and persisted atomically on every mutation.
package change

import (
	"fmt"

	"github.com/boshu2/changeops/internal/review"
)

// Phase is a change's lifecycle phase.
type Phase string

const (
	PhaseProposed     Phase = "proposed"
	PhaseChallenged   Phase = "challenged"
	PhaseImplementing Phase = "implementing"
	PhaseComplete     Phase = "complete"
	PhaseRejected     Phase = "rejected"
	PhaseArchived     Phase = "archived"
)

// String returns the phase name.
func (p Phase) String() string { return string(p) }

// Terminal reports whether the phase ends the lifecycle. Rejected permits
// a fresh cycle only via explicit manual re-entry, never automatically.
func (p Phase) Terminal() bool {
	return p == PhaseRejected || p == PhaseArchived
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseProposed, PhaseChallenged, PhaseImplementing, PhaseComplete, PhaseRejected, PhaseArchived:
		return true
	}
	return false
}

// ParsePhase maps a stored phase name to a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// transitions is the allowed explicit-transition table. Verdict-caused
// transitions are handled separately by PhaseForVerdict.
var transitions = map[Phase][]Phase{
	PhaseProposed:     {PhaseChallenged, PhaseRejected},
	PhaseChallenged:   {PhaseImplementing},
	PhaseImplementing: {PhaseImplementing, PhaseComplete},
	PhaseComplete:     {PhaseArchived},
	PhaseRejected:     {PhaseProposed}, // manual re-entry only
	PhaseArchived:     {},
}

// CanTransition reports whether from → to is an allowed transition.
func CanTransition(from, to Phase) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PhaseForVerdict returns the phase a verdict moves a proposed change to.
// NeedsRevision keeps the change in Proposed (it triggers another driver
// cycle); Unknown never causes a transition and is an error.
func PhaseForVerdict(v review.Verdict) (Phase, error) {
	switch v {
	case review.VerdictApproved:
		return PhaseChallenged, nil
	case review.VerdictNeedsRevision:
		return PhaseProposed, nil
	case review.VerdictRejected:
		return PhaseRejected, nil
	}
	return "", fmt.Errorf("no transition for verdict %q", v)
}
