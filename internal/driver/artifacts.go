package driver

import (
	"fmt"

	"github.com/boshu2/changeops/internal/change"
)

// Canonical artifact names.
const (
	ProposalArtifact = "proposal.md"
	TasksArtifact    = "tasks.yaml"
)

// artifactSpec describes one required artifact: its storage name and the
// workflow-step label used for prompts and usage records.
type artifactSpec struct {
	Name string
	// Step is the ledger label for the generation call, e.g.
	// "proposal-gen", "spec-gen:api", "tasks-gen".
	Step string
	// Kind selects the generation prompt.
	Kind artifactKind
	// Spec is the specification name for spec artifacts.
	Spec string
}

type artifactKind int

const (
	kindProposal artifactKind = iota
	kindSpec
	kindTasks
)

// SpecArtifactName maps a declared specification name to its artifact.
func SpecArtifactName(spec string) string {
	return fmt.Sprintf("specs/%s.md", spec)
}

// ArtifactNames returns the names of every artifact the change requires,
// in generation order.
func ArtifactNames(st change.State) []string {
	var names []string
	for _, a := range requiredArtifacts(st) {
		names = append(names, a.Name)
	}
	return names
}

// requiredArtifacts returns the change's artifacts in declared order:
// the proposal, then each declared dependent specification, then the task
// breakdown. The driver walks this list for both generation and
// validation, so the order is load-bearing.
func requiredArtifacts(st change.State) []artifactSpec {
	arts := []artifactSpec{
		{Name: ProposalArtifact, Step: "proposal-gen", Kind: kindProposal},
	}
	for _, spec := range st.Specs {
		arts = append(arts, artifactSpec{
			Name: SpecArtifactName(spec),
			Step: "spec-gen:" + spec,
			Kind: kindSpec,
			Spec: spec,
		})
	}
	arts = append(arts, artifactSpec{Name: TasksArtifact, Step: "tasks-gen", Kind: kindTasks})
	return arts
}
