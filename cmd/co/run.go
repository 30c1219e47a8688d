package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/boshu2/changeops/internal/agent"
	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/config"
	"github.com/boshu2/changeops/internal/driver"
	"github.com/boshu2/changeops/internal/session"
	"github.com/boshu2/changeops/internal/storage"
	"github.com/boshu2/changeops/internal/usage"
)

var (
	runAll      bool
	runParallel int
)

// Exit codes for run outcomes. Scripts branch on these.
const (
	exitOK        = 0
	exitError     = 1
	exitRejected  = 2
	exitExhausted = 3
)

var runCmd = &cobra.Command{
	Use:   "run [change-id]",
	Short: "Run one planning cycle (idempotent)",
	Long: `Run one complete planning cycle for a change.

Artifacts that already exist are never regenerated. On a fully generated
change the cycle validates structure locally and makes zero external
calls, so re-running after an interruption resumes exactly where the
previous run stopped.

Exit codes:
  0  approved or already up to date
  1  cycle error (transient, parse, session, consistency, validation, state)
  2  change was rejected
  3  iteration budget exhausted with issues outstanding

Examples:
  co run add-retry-policy
  co run --all --parallel 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "Run a cycle for every non-terminal change")
	runCmd.Flags().IntVar(&runParallel, "parallel", 2, "Max concurrent changes with --all")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var ids []string
	switch {
	case runAll && len(args) > 0:
		return fmt.Errorf("pass a change id or --all, not both")
	case runAll:
		ids, err = change.List(root)
		if err != nil {
			return err
		}
	case len(args) == 1:
		ids = args
	default:
		return fmt.Errorf("change id required (or --all)")
	}

	if dryRun {
		for _, id := range ids {
			if err := printPlan(root, id); err != nil {
				return err
			}
		}
		return nil
	}

	if len(ids) == 1 {
		out, err := runOne(cmd, root, cfg, ids[0])
		if err != nil {
			return err
		}
		os.Exit(exitCode(out))
	}

	outcomes := make([]driver.Outcome, len(ids))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runParallel)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			d, skip, err := buildDriver(root, cfg, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			if skip {
				outcomes[i] = driver.Outcome{Kind: driver.OutcomeUpToDate}
				return nil
			}
			outcomes[i] = d.RunCycle(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	worst := exitOK
	for i, id := range ids {
		fmt.Printf("%s: %s\n", id, outcomes[i])
		if c := exitCode(outcomes[i]); c > worst {
			worst = c
		}
	}
	os.Exit(worst)
	return nil
}

func runOne(cmd *cobra.Command, root string, cfg *config.Config, id string) (driver.Outcome, error) {
	d, skip, err := buildDriver(root, cfg, id)
	if err != nil {
		return driver.Outcome{}, err
	}
	if skip {
		out := driver.Outcome{Kind: driver.OutcomeUpToDate}
		fmt.Printf("%s: %s\n", id, out)
		return out, nil
	}
	out := d.RunCycle(cmd.Context())
	fmt.Printf("%s: %s\n", id, out)
	return out, nil
}

// buildDriver wires a driver for one change. Terminal-phase changes are
// skipped under --all rather than reported as errors.
func buildDriver(root string, cfg *config.Config, id string) (*driver.Driver, bool, error) {
	machine, err := change.NewMachine(root, id)
	if err != nil {
		return nil, false, err
	}
	if runAll && machine.Current().Terminal() {
		VerbosePrintf("skip %s (phase %s)\n", id, machine.Current())
		return nil, true, nil
	}

	changeDir := change.Dir(root, id)
	d := &driver.Driver{
		ChangeID: id,
		Machine:  machine,
		Store:    storage.NewFileStore(changeDir),
		Invoker: &agent.CLIInvoker{
			Command: cfg.RuntimeCommand,
			Dir:     root,
			Timeout: cfg.InvokeTimeout.Std(),
		},
		Sessions: &session.Resolver{
			Lister: &session.CommandLister{
				Command: cfg.RuntimeCommand,
				Args:    cfg.SessionListArgs,
				Dir:     root,
			},
		},
		Ledger:        usage.NewLedger(changeDir, pricingTable(cfg)),
		MaxIterations: cfg.MaxIterations,
		Retries:       cfg.Retries,
		RetryDelay:    cfg.RetryDelay.Std(),
		Logf:          VerbosePrintf,
	}
	return d, false, nil
}

func pricingTable(cfg *config.Config) usage.Pricing {
	p := make(usage.Pricing, len(cfg.Pricing))
	for model, price := range cfg.Pricing {
		p[model] = usage.Price{Input: price.Input, Output: price.Output}
	}
	return p
}

// printPlan shows what a cycle would do without executing anything.
func printPlan(root, id string) error {
	st, err := change.Load(root, id)
	if err != nil {
		return err
	}
	if st.Phase != change.PhaseProposed {
		fmt.Printf("%s: phase %s, nothing to plan\n", id, st.Phase)
		return nil
	}
	store := storage.NewFileStore(change.Dir(root, id))
	missing := 0
	for _, name := range driver.ArtifactNames(*st) {
		if store.Exists(name) {
			continue
		}
		missing++
		fmt.Printf("%s: would generate %s\n", id, name)
	}
	if missing == 0 {
		fmt.Printf("%s: would validate existing artifacts, no external calls\n", id)
	} else {
		fmt.Printf("%s: would then run the critique loop\n", id)
	}
	return nil
}

func exitCode(out driver.Outcome) int {
	switch out.Kind {
	case driver.OutcomeApproved, driver.OutcomeUpToDate:
		return exitOK
	case driver.OutcomeRejected:
		return exitRejected
	case driver.OutcomeExhausted:
		return exitExhausted
	default:
		return exitError
	}
}
