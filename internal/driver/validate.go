package driver

import (
	"fmt"
	"strings"

	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/storage"
	"github.com/boshu2/changeops/internal/taskgraph"
)

// Validate checks the structural integrity of a fully generated change
// without any external calls. It is the entire cost of re-running a cycle
// on an up-to-date change.
func Validate(store storage.Store, st change.State) error {
	proposal, err := store.Read(ProposalArtifact)
	if err != nil {
		return fmt.Errorf("read %s: %w", ProposalArtifact, err)
	}
	if err := validateProposal(proposal); err != nil {
		return fmt.Errorf("%s: %w", ProposalArtifact, err)
	}

	for _, spec := range st.Specs {
		name := SpecArtifactName(spec)
		content, err := store.Read(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := validateSpec(content); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	tasks, err := store.Read(TasksArtifact)
	if err != nil {
		return fmt.Errorf("read %s: %w", TasksArtifact, err)
	}
	graph, err := taskgraph.Parse([]byte(tasks))
	if err != nil {
		return fmt.Errorf("%s: %w", TasksArtifact, err)
	}
	if err := graph.Validate(); err != nil {
		return fmt.Errorf("%s: %w", TasksArtifact, err)
	}
	return nil
}

func validateProposal(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty proposal")
	}
	for _, section := range []string{"## Why", "## What Changes"} {
		if !containsHeading(content, section) {
			return fmt.Errorf("missing %q section", section)
		}
	}
	return nil
}

func validateSpec(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty specification")
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			return fmt.Errorf("first content line must be a heading")
		}
		return nil
	}
	return fmt.Errorf("empty specification")
}

func containsHeading(content, heading string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == heading {
			return true
		}
	}
	return false
}
