package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <change-id>",
	Short: "Archive a complete change",
	Long:  `Move a complete change to the archived terminal phase.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	machine, err := change.NewMachine(root, args[0])
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("Would move %s from %s to %s\n", args[0], machine.Current(), change.PhaseArchived)
		return nil
	}
	if err := machine.Archive(); err != nil {
		return err
	}
	fmt.Printf("Change %s is now %s\n", args[0], machine.Current())
	return nil
}
