package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/session"
)

var resolveSessionCmd = &cobra.Command{
	Use:   "resolve-session <session-id>",
	Short: "Resolve a session id to its resume index",
	Long: `Run the configured session-list command and resolve the given
session identifier to the 1-based index the runtime's resume flag
expects. Diagnostic command for debugging resume failures; the same
resolution runs inside every critique cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolveSession,
}

func init() {
	rootCmd.AddCommand(resolveSessionCmd)
}

func runResolveSession(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolver := &session.Resolver{
		Lister: &session.CommandLister{
			Command: cfg.RuntimeCommand,
			Args:    cfg.SessionListArgs,
			Dir:     root,
		},
	}
	idx, err := resolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", idx)
	return nil
}
