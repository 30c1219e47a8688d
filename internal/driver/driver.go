// Package driver executes one complete planning cycle for a change:
// generate missing artifacts, self-review each one, run the external
// critique loop, and apply the resulting phase transitions. The driver is
// the only component that decides which unit of work runs next; every
// collaborator (agent runtime, storage, session resolver, usage ledger)
// is injected through a narrow interface.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/boshu2/changeops/internal/agent"
	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/review"
	"github.com/boshu2/changeops/internal/storage"
	"github.com/boshu2/changeops/internal/usage"
)

// SessionResolver resolves a stored session identifier to the 1-based
// resume index the agent runtime expects.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (int, error)
}

// UsageRecorder appends one usage record per external call.
type UsageRecorder interface {
	Record(step, model string, tokensIn, tokensOut int, d time.Duration) (usage.Record, error)
}

// Driver runs planning cycles for one change. One driver per change per
// process; the caller guarantees no concurrent cycles for the same change.
type Driver struct {
	ChangeID string
	Machine  *change.Machine
	Store    storage.Store
	Invoker  agent.Invoker
	Sessions SessionResolver
	Ledger   UsageRecorder

	// MaxIterations bounds critique passes per cycle. Zero means the
	// default of 3.
	MaxIterations int

	// Retries is the automatic retry count per external call.
	Retries int

	// RetryDelay is the fixed delay between retries.
	RetryDelay time.Duration

	// Logf receives progress output. Defaults to a no-op.
	Logf func(format string, args ...any)

	// Sleep is the retry delay function, injectable for tests.
	Sleep func(time.Duration)
}

func (d *Driver) init() {
	if d.MaxIterations <= 0 {
		d.MaxIterations = 3
	}
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
}

// RunCycle executes one complete planning cycle. Re-running it on a fully
// generated change makes zero external calls and leaves phase, session,
// and usage totals untouched.
func (d *Driver) RunCycle(ctx context.Context) Outcome {
	d.init()

	phase := d.Machine.Current()
	if phase.Terminal() {
		return errorOutcome(phase, cycleErr(KindState, "start",
			fmt.Errorf("change %s is in terminal phase %s", d.ChangeID, phase)))
	}
	if phase != change.PhaseProposed {
		// Planning is done; implementation progress is driven by
		// explicit transitions, not by cycles.
		d.Logf("change %s is %s; nothing to plan\n", d.ChangeID, phase)
		return Outcome{Kind: OutcomeUpToDate, Phase: phase}
	}

	st := d.Machine.State()
	generated := 0
	for _, a := range requiredArtifacts(st) {
		if d.Store.Exists(a.Name) {
			d.Logf("skip %s (already exists)\n", a.Name)
			continue
		}
		generated++
		if cerr := d.generateArtifact(ctx, a); cerr != nil {
			return errorOutcome(d.Machine.Current(), cerr)
		}
	}

	if generated == 0 {
		// Validation-only fast path: no external calls at all.
		if err := Validate(d.Store, st); err != nil {
			return errorOutcome(phase, cycleErr(KindValidation, "validate", err))
		}
		d.Logf("change %s: all artifacts present and valid\n", d.ChangeID)
		return Outcome{Kind: OutcomeUpToDate, Phase: phase}
	}

	return d.critiqueLoop(ctx)
}

// generateArtifact invokes the agent to produce one artifact, then applies
// the bounded self-critique sub-step: the generation prompt asks the agent
// to embed a self-review block, and a needs-revision self-review triggers
// at most one revision call.
func (d *Driver) generateArtifact(ctx context.Context, a artifactSpec) *CycleError {
	d.setLastAction(a.Step)
	d.Logf("generating %s\n", a.Name)

	res, cerr := d.invokeWithRetry(ctx, a.Step, agent.Request{
		Prompt: d.generationPrompt(a),
		Resume: agent.None(),
	})
	if cerr != nil {
		return cerr
	}
	if err := d.Store.Write(a.Name, res.Output); err != nil {
		return cycleErr(KindState, a.Step, err)
	}

	rev := review.Parse(res.Output)
	if err := d.Store.AppendReview(a.Name, rev); err != nil {
		return cycleErr(KindState, a.Step, err)
	}

	// Self-review policy: a missing or inconsistent self-review block is
	// a warning and a default pass, never fatal. Only the external
	// critique path treats these as hard errors.
	switch {
	case rev.Verdict == review.VerdictUnknown:
		d.Logf("warning: %s has no self-review block, proceeding\n", a.Name)
		return nil
	case rev.Verdict == review.VerdictApproved:
		return nil
	case len(rev.Issues) == 0:
		d.Logf("warning: %s self-review verdict %s with no issues, proceeding\n", a.Name, rev.Verdict)
		return nil
	}

	step := "self-revise:" + a.Name
	d.setLastAction(step)
	d.Logf("self-review of %s found %d issue(s), revising once\n", a.Name, len(rev.Issues))

	revised, cerr := d.invokeWithRetry(ctx, step, agent.Request{
		Prompt: d.selfRevisePrompt(a, rev.Issues),
		Resume: agent.None(),
	})
	if cerr != nil {
		return cerr
	}
	if err := d.Store.Write(a.Name, revised.Output); err != nil {
		return cycleErr(KindState, step, err)
	}
	if err := d.Store.AppendReview(a.Name, review.Parse(revised.Output)); err != nil {
		return cycleErr(KindState, step, err)
	}
	return nil
}

// critiqueLoop runs external critiques until a terminal verdict or the
// iteration budget is exhausted. The first critique opens a fresh session
// and stores its identifier; later critiques and every revision resume
// that exact session by resolved index.
func (d *Driver) critiqueLoop(ctx context.Context) Outcome {
	for iter := 1; iter <= d.MaxIterations; iter++ {
		resume := agent.None()
		if sessionID := d.Machine.State().SessionID; sessionID != "" {
			idx, err := d.Sessions.Resolve(ctx, sessionID)
			if err != nil {
				return errorOutcome(d.Machine.Current(), cycleErr(KindSession, "challenge", err))
			}
			resume = agent.ByIndex(idx)
		}

		d.setLastAction("challenge")
		d.Logf("critique pass %d/%d\n", iter, d.MaxIterations)
		res, cerr := d.invokeWithRetry(ctx, "challenge", agent.Request{
			Prompt: d.critiquePrompt(),
			Resume: resume,
		})
		if cerr != nil {
			return errorOutcome(d.Machine.Current(), cerr)
		}
		if res.SessionID != "" && res.SessionID != d.Machine.State().SessionID {
			if err := d.Machine.SetSession(res.SessionID); err != nil {
				return errorOutcome(d.Machine.Current(), cycleErr(KindState, "challenge", err))
			}
		}

		rev := review.Parse(res.Output)
		if err := d.Store.AppendReview(ProposalArtifact, rev); err != nil {
			return errorOutcome(d.Machine.Current(), cycleErr(KindState, "challenge", err))
		}

		// An unparsable verdict on the critique path never advances the
		// phase and never defaults to approval.
		if rev.Verdict == review.VerdictUnknown {
			return errorOutcome(d.Machine.Current(), cycleErr(KindParse, "challenge",
				fmt.Errorf("critique output contains no verdict marker")))
		}
		if !rev.Consistent() {
			return errorOutcome(d.Machine.Current(), cycleErr(KindConsistency, "challenge",
				fmt.Errorf("verdict %s with zero issues recorded", rev.Verdict)))
		}

		phase, err := d.Machine.ApplyVerdict(rev.Verdict)
		if err != nil {
			return errorOutcome(d.Machine.Current(), cycleErr(KindState, "challenge", err))
		}

		switch rev.Verdict {
		case review.VerdictApproved:
			d.Logf("change %s approved\n", d.ChangeID)
			return Outcome{Kind: OutcomeApproved, Phase: phase}
		case review.VerdictRejected:
			d.Logf("change %s rejected\n", d.ChangeID)
			return Outcome{Kind: OutcomeRejected, Phase: phase}
		}

		// NeedsRevision: stop here if the budget is spent, otherwise
		// revise in the reviewer's session and go around again.
		if iter == d.MaxIterations {
			d.Logf("iteration budget exhausted with %d issue(s) outstanding\n", len(rev.Issues))
			return Outcome{Kind: OutcomeExhausted, Phase: phase, IssueCount: len(rev.Issues)}
		}
		if cerr := d.revise(ctx, rev.Issues); cerr != nil {
			return errorOutcome(d.Machine.Current(), cerr)
		}
	}

	// Unreachable: the loop always returns from inside.
	return errorOutcome(d.Machine.Current(), cycleErr(KindState, "challenge",
		fmt.Errorf("critique loop ended without outcome")))
}

func (d *Driver) revise(ctx context.Context, issues []review.Issue) *CycleError {
	sessionID := d.Machine.State().SessionID
	if sessionID == "" {
		return cycleErr(KindSession, "revise", fmt.Errorf("no session id stored for change %s", d.ChangeID))
	}
	idx, err := d.Sessions.Resolve(ctx, sessionID)
	if err != nil {
		return cycleErr(KindSession, "revise", err)
	}

	d.setLastAction("revise")
	d.Logf("revising with %d issue(s), resume index %d\n", len(issues), idx)
	_, cerr := d.invokeWithRetry(ctx, "revise", agent.Request{
		Prompt: d.revisionPrompt(issues),
		Resume: agent.ByIndex(idx),
	})
	return cerr
}

// invokeWithRetry runs one external call with bounded fixed-delay retries.
// Every successful call is recorded in the usage ledger exactly once;
// failed attempts have no usage data to record. Exhausting retries aborts
// the cycle with a transient error and never advances the phase.
func (d *Driver) invokeWithRetry(ctx context.Context, step string, req agent.Request) (agent.Result, *CycleError) {
	attempts := d.Retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return agent.Result{}, cycleErr(KindTransient, step, err)
		}

		res, err := d.Invoker.Invoke(ctx, req)
		if err == nil {
			if _, lerr := d.Ledger.Record(step, res.Model, res.TokensIn, res.TokensOut, res.Duration); lerr != nil {
				return agent.Result{}, cycleErr(KindState, step, fmt.Errorf("record usage: %w", lerr))
			}
			return res, nil
		}

		lastErr = err
		d.Logf("step %s attempt %d/%d failed: %v\n", step, attempt, attempts, err)
		if attempt < attempts && d.RetryDelay > 0 {
			d.Sleep(d.RetryDelay)
		}
	}
	return agent.Result{}, cycleErr(KindTransient, step,
		fmt.Errorf("exhausted %d attempt(s): %w", attempts, lastErr))
}

// setLastAction records the step for diagnostics. Failure to persist the
// label is a warning, not a cycle abort.
func (d *Driver) setLastAction(step string) {
	if err := d.Machine.SetLastAction(step); err != nil {
		d.Logf("warning: could not persist last action %q: %v\n", step, err)
	}
}
