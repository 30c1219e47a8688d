package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/driver"
	"github.com/boshu2/changeops/internal/storage"
	"github.com/boshu2/changeops/internal/taskgraph"
)

var doneForce bool

var doneCmd = &cobra.Command{
	Use:   "done <change-id>",
	Short: "Mark an implemented change complete",
	Long: `Move an implementing change to the complete phase.

Refuses while the task breakdown still has unfinished tasks, unless
--force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

func init() {
	doneCmd.Flags().BoolVar(&doneForce, "force", false, "Complete even with unfinished tasks")
	rootCmd.AddCommand(doneCmd)
}

func runDone(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	id := args[0]
	machine, err := change.NewMachine(root, id)
	if err != nil {
		return err
	}

	if !doneForce {
		store := storage.NewFileStore(change.Dir(root, id))
		tasks, err := store.Read(driver.TasksArtifact)
		if err != nil {
			return fmt.Errorf("read %s: %w", driver.TasksArtifact, err)
		}
		graph, err := taskgraph.Parse([]byte(tasks))
		if err != nil {
			return fmt.Errorf("%s: %w", driver.TasksArtifact, err)
		}
		if !graph.AllDone() {
			return fmt.Errorf("change %s has unfinished tasks (use --force to override)", id)
		}
	}

	if dryRun {
		fmt.Printf("Would move %s from %s to %s\n", id, machine.Current(), change.PhaseComplete)
		return nil
	}
	if err := machine.MarkComplete(); err != nil {
		return err
	}
	fmt.Printf("Change %s is now %s\n", id, machine.Current())
	return nil
}
