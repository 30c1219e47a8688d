package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
)

var newSpecs []string

var newCmd = &cobra.Command{
	Use:   "new <change-id>",
	Short: "Create a change",
	Long: `Create a change in the proposed phase.

Declared specs become required spec-delta artifacts; the first planning
cycle generates one document per spec alongside the proposal and the
task breakdown.

Examples:
  co new add-retry-policy
  co new add-retry-policy --spec api --spec storage`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringArrayVar(&newSpecs, "spec", nil, "Dependent specification name (repeatable)")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	id := args[0]

	if dryRun {
		fmt.Printf("Would create change %q at %s with %d spec(s)\n", id, change.Dir(root, id), len(newSpecs))
		return nil
	}

	st, err := change.Create(root, id, newSpecs)
	if err != nil {
		return fmt.Errorf("create change: %w", err)
	}
	fmt.Printf("Created change %s (phase %s)\n", st.ID, st.Phase)
	for _, s := range st.Specs {
		VerbosePrintf("  spec: %s\n", s)
	}
	return nil
}
