package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/config"
)

var (
	// Global flags
	dryRun   bool
	verbose  bool
	cfgFile  string
	rootFlag string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "co",
	Short: "ChangeOps change lifecycle CLI",
	Long: `co drives proposed changes through their planning lifecycle.

A change moves through phases: proposed -> challenged -> implementing ->
complete -> archived. Planning artifacts (proposal, spec deltas, task
breakdown) are generated and critiqued by an external agent runtime;
co decides what runs next and records every call in a usage ledger.

Core Commands:
  new          Create a change
  run          Run one planning cycle (idempotent)
  status       Show all changes and their phases
  usage        Show usage records and cost totals
  implement    Mark an approved change as in implementation
  done         Mark an implemented change complete
  archive      Archive a complete change
  reopen       Reopen a rejected change`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Show what would happen without executing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <root>/changeops.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Project root (default: current directory)")
}

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}

// projectRoot returns the directory holding changes/ and the config file.
func projectRoot() (string, error) {
	if rootFlag != "" {
		return rootFlag, nil
	}
	return os.Getwd()
}

// loadConfig resolves the project root and loads configuration with the
// standard precedence (explicit flag, env var, project file, defaults).
func loadConfig() (string, *config.Config, error) {
	root, err := projectRoot()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root, cfgFile)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}
