package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
)

var reopenCmd = &cobra.Command{
	Use:   "reopen <change-id>",
	Short: "Reopen a rejected change",
	Long: `Move a rejected change back to the proposed phase.

This is the only path out of rejection, and it is always a deliberate
human action; no cycle ever reopens a change on its own. Reopening
resets the iteration count and drops the stored critique session, so
the next cycle starts a fresh review.`,
	Args: cobra.ExactArgs(1),
	RunE: runReopen,
}

func init() {
	rootCmd.AddCommand(reopenCmd)
}

func runReopen(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	machine, err := change.NewMachine(root, args[0])
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("Would move %s from %s to %s\n", args[0], machine.Current(), change.PhaseProposed)
		return nil
	}
	if err := machine.Reopen(); err != nil {
		return err
	}
	fmt.Printf("Change %s is now %s\n", args[0], machine.Current())
	return nil
}
