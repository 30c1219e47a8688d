package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
)

var implementCmd = &cobra.Command{
	Use:   "implement <change-id>",
	Short: "Mark an approved change as in implementation",
	Long: `Move a challenged change into the implementing phase.

Requires an approving critique first; co never starts implementation on
an unchallenged change.`,
	Args: cobra.ExactArgs(1),
	RunE: runImplement,
}

func init() {
	rootCmd.AddCommand(implementCmd)
}

func runImplement(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	machine, err := change.NewMachine(root, args[0])
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("Would move %s from %s to %s\n", args[0], machine.Current(), change.PhaseImplementing)
		return nil
	}
	if err := machine.StartImplementation(); err != nil {
		return err
	}
	fmt.Printf("Change %s is now %s\n", args[0], machine.Current())
	return nil
}
