package driver

import (
	"fmt"
	"strings"

	"github.com/boshu2/changeops/internal/review"
)

// reviewInstructions is appended to every prompt whose output must carry
// a machine-readable review block.
const reviewInstructions = `End your output with a review block:
- one line per issue, formatted "- HIGH|MEDIUM|LOW: <description> (at <location>)"
- a final verdict marker: <verdict>APPROVED</verdict>, <verdict>NEEDS_REVISION</verdict>, or <verdict>REJECTED</verdict>`

func (d *Driver) generationPrompt(a artifactSpec) string {
	var b strings.Builder
	switch a.Kind {
	case kindProposal:
		fmt.Fprintf(&b, "Write the change proposal for %q as markdown with '## Why' and '## What Changes' sections.\n", d.ChangeID)
	case kindSpec:
		fmt.Fprintf(&b, "Write the %q specification delta for change %q as markdown, starting with a heading.\n", a.Spec, d.ChangeID)
	case kindTasks:
		fmt.Fprintf(&b, "Write the task breakdown for change %q as tasks.yaml: ordered layers of tasks with ids and depends_on referencing only earlier layers.\n", d.ChangeID)
		b.WriteString("Put the review block inside YAML comments so the file stays parseable.\n")
	}
	b.WriteString("Before finishing, self-review the document and fix what you find.\n")
	b.WriteString(reviewInstructions)
	return b.String()
}

func (d *Driver) selfRevisePrompt(a artifactSpec, issues []review.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your self-review of %s for change %q found issues. Produce the corrected document in full:\n", a.Name, d.ChangeID)
	writeIssueList(&b, issues)
	return b.String()
}

func (d *Driver) critiquePrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Critique the planning artifacts of change %q (proposal, specifications, task breakdown) for completeness, consistency, and feasibility.\n", d.ChangeID)
	b.WriteString(reviewInstructions)
	return b.String()
}

func (d *Driver) revisionPrompt(issues []review.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revise the artifacts of change %q in place to address every issue below, highest severity first:\n", d.ChangeID)
	writeIssueList(&b, issues)
	return b.String()
}

func writeIssueList(b *strings.Builder, issues []review.Issue) {
	for _, issue := range issues {
		if issue.Location != "" {
			fmt.Fprintf(b, "- %s: %s (at %s)\n", strings.ToUpper(string(issue.Severity)), issue.Description, issue.Location)
		} else {
			fmt.Fprintf(b, "- %s: %s\n", strings.ToUpper(string(issue.Severity)), issue.Description)
		}
	}
}
