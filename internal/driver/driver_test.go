package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boshu2/changeops/internal/agent"
	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/storage"
	"github.com/boshu2/changeops/internal/usage"
)

type scriptedInvoker struct {
	results []agent.Result
	errs    []error
	calls   []agent.Request
}

func (s *scriptedInvoker) Invoke(_ context.Context, req agent.Request) (agent.Result, error) {
	i := len(s.calls)
	s.calls = append(s.calls, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return agent.Result{}, s.errs[i]
	}
	if i >= len(s.results) {
		return agent.Result{}, fmt.Errorf("unexpected call %d", i)
	}
	return s.results[i], nil
}

type fakeResolver struct {
	index map[string]int
	err   error
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, sessionID string) (int, error) {
	f.calls = append(f.calls, sessionID)
	if f.err != nil {
		return 0, f.err
	}
	idx, ok := f.index[sessionID]
	if !ok {
		return 0, fmt.Errorf("session %s not in fake", sessionID)
	}
	return idx, nil
}

type memLedger struct {
	records []usage.Record
}

func (l *memLedger) Record(step, model string, tokensIn, tokensOut int, _ time.Duration) (usage.Record, error) {
	r := usage.Record{Step: step, Model: model, TokensIn: tokensIn, TokensOut: tokensOut}
	l.records = append(l.records, r)
	return r, nil
}

func (l *memLedger) steps() []string {
	var out []string
	for _, r := range l.records {
		out = append(out, r.Step)
	}
	return out
}

const approvedTail = "\n<verdict>APPROVED</verdict>\n"

func proposalDoc() string {
	return "## Why\nThe old flow loses work.\n\n## What Changes\nA resumable flow.\n" + approvedTail
}

func specDoc(name string) string {
	return "# " + name + "\nDetails.\n" + approvedTail
}

func tasksDoc() string {
	return `layers:
  - name: core
    tasks:
      - id: t1
        description: build the core
  - name: surface
    tasks:
      - id: t2
        description: wire the surface
        depends_on: [t1]
# <verdict>APPROVED</verdict>
`
}

func approvedCritique(session string) agent.Result {
	return agent.Result{
		Output:    "Looks solid." + approvedTail,
		SessionID: session,
		Model:     "sonnet",
		TokensIn:  100,
		TokensOut: 50,
	}
}

func needsRevisionCritique(session string, issues ...string) agent.Result {
	out := "Problems found.\n"
	for _, issue := range issues {
		out += "- HIGH: " + issue + "\n"
	}
	out += "<verdict>NEEDS_REVISION</verdict>\n"
	return agent.Result{Output: out, SessionID: session, Model: "sonnet", TokensIn: 80, TokensOut: 40}
}

type fixture struct {
	root     string
	driver   *Driver
	invoker  *scriptedInvoker
	resolver *fakeResolver
	ledger   *memLedger
	store    *storage.FileStore
}

func newFixture(t *testing.T, specs []string) *fixture {
	t.Helper()
	root := t.TempDir()
	_, err := change.Create(root, "add-retry", specs)
	require.NoError(t, err)
	machine, err := change.NewMachine(root, "add-retry")
	require.NoError(t, err)

	inv := &scriptedInvoker{}
	res := &fakeResolver{index: map[string]int{}}
	led := &memLedger{}
	store := storage.NewFileStore(change.Dir(root, "add-retry"))

	return &fixture{
		root:     root,
		invoker:  inv,
		resolver: res,
		ledger:   led,
		store:    store,
		driver: &Driver{
			ChangeID: "add-retry",
			Machine:  machine,
			Store:    store,
			Invoker:  inv,
			Sessions: res,
			Ledger:   led,
			Sleep:    func(time.Duration) {},
		},
	}
}

func (f *fixture) writeAllArtifacts(t *testing.T, specs []string) {
	t.Helper()
	require.NoError(t, f.store.Write(ProposalArtifact, proposalDoc()))
	for _, s := range specs {
		require.NoError(t, f.store.Write(SpecArtifactName(s), specDoc(s)))
	}
	require.NoError(t, f.store.Write(TasksArtifact, tasksDoc()))
}

func TestRunCycleGeneratesAndApproves(t *testing.T) {
	f := newFixture(t, []string{"api"})
	f.invoker.results = []agent.Result{
		{Output: proposalDoc(), Model: "sonnet", TokensIn: 10, TokensOut: 20},
		{Output: specDoc("api"), Model: "sonnet", TokensIn: 10, TokensOut: 20},
		{Output: tasksDoc(), Model: "sonnet", TokensIn: 10, TokensOut: 20},
		approvedCritique("sess-1"),
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeApproved, out.Kind)
	require.Equal(t, change.PhaseChallenged, out.Phase)
	require.Len(t, f.invoker.calls, 4)
	require.Equal(t, agent.ResumeNone, f.invoker.calls[3].Resume.Kind)
	require.Empty(t, f.resolver.calls)
	require.Equal(t, []string{"proposal-gen", "spec-gen:api", "tasks-gen", "challenge"}, f.ledger.steps())

	st := f.driver.Machine.State()
	require.Equal(t, "sess-1", st.SessionID)
	require.Equal(t, 0, st.Iteration)
	require.True(t, f.store.Exists(TasksArtifact))
}

func TestRunCycleAfterApprovalMakesNoCalls(t *testing.T) {
	f := newFixture(t, nil)
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		approvedCritique("sess-1"),
	}
	require.Equal(t, OutcomeApproved, f.driver.RunCycle(context.Background()).Kind)

	calls := len(f.invoker.calls)
	out := f.driver.RunCycle(context.Background())
	require.Equal(t, OutcomeUpToDate, out.Kind)
	require.Equal(t, change.PhaseChallenged, out.Phase)
	require.Len(t, f.invoker.calls, calls)
	require.Len(t, f.ledger.records, 3)
}

func TestRunCycleValidationOnlyFastPath(t *testing.T) {
	specs := []string{"api", "storage"}
	f := newFixture(t, specs)
	f.writeAllArtifacts(t, specs)

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeUpToDate, out.Kind)
	require.Equal(t, change.PhaseProposed, out.Phase)
	require.Empty(t, f.invoker.calls)
	require.Empty(t, f.ledger.records)
	require.Empty(t, f.resolver.calls)
}

func TestRunCycleValidationFailure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Write(ProposalArtifact, "missing the sections"))
	require.NoError(t, f.store.Write(TasksArtifact, tasksDoc()))

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeError, out.Kind)
	require.Equal(t, KindValidation, out.Err.Kind)
	require.Empty(t, f.invoker.calls)
	require.Equal(t, change.PhaseProposed, f.driver.Machine.Current())
}

func TestRunCycleRevisionLoopThenApproval(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.index["sess-1"] = 2
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		needsRevisionCritique("sess-1", "proposal omits rollback plan (at proposal.md)"),
		{Output: "Revised in place.", SessionID: "sess-1"},
		approvedCritique("sess-1"),
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeApproved, out.Kind)
	require.Equal(t, change.PhaseChallenged, out.Phase)
	require.Len(t, f.invoker.calls, 5)

	// Revision and the second critique both resume the stored session.
	require.Equal(t, agent.ResumeByIndex, f.invoker.calls[3].Resume.Kind)
	require.Equal(t, 2, f.invoker.calls[3].Resume.Index)
	require.Equal(t, agent.ResumeByIndex, f.invoker.calls[4].Resume.Kind)
	require.Equal(t, []string{"sess-1", "sess-1"}, f.resolver.calls)

	require.Equal(t, 1, f.driver.Machine.State().Iteration)

	history, err := f.store.Reviews(ProposalArtifact)
	require.NoError(t, err)
	// Generation self-review plus two critiques, latest last.
	require.Len(t, history, 3)
	require.Equal(t, "approved", string(history[2].Verdict))
}

func TestRunCycleApprovalOnFinalIteration(t *testing.T) {
	f := newFixture(t, nil)
	f.driver.MaxIterations = 3
	f.resolver.index["sess-1"] = 2
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		needsRevisionCritique("sess-1", "no rollback plan"),
		{Output: "Revised.", SessionID: "sess-1"},
		needsRevisionCritique("sess-1", "rollback plan too vague"),
		{Output: "Revised again.", SessionID: "sess-1"},
		approvedCritique("sess-1"),
	}

	out := f.driver.RunCycle(context.Background())

	// Approval on the last budgeted pass is approval, never exhaustion.
	require.Equal(t, OutcomeApproved, out.Kind)
	require.Equal(t, change.PhaseChallenged, out.Phase)
	require.Equal(t, 0, out.IssueCount)
	require.Equal(t,
		[]string{"proposal-gen", "tasks-gen", "challenge", "revise", "challenge", "revise", "challenge"},
		f.ledger.steps())
	require.Equal(t, 2, f.driver.Machine.State().Iteration)
}

func TestRunCycleExhaustsIterationBudget(t *testing.T) {
	f := newFixture(t, nil)
	f.driver.MaxIterations = 2
	f.resolver.index["sess-1"] = 1
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		needsRevisionCritique("sess-1", "no rollback plan"),
		{Output: "Revised.", SessionID: "sess-1"},
		needsRevisionCritique("sess-1", "still no rollback plan", "tasks too coarse"),
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeExhausted, out.Kind)
	require.Equal(t, 2, out.IssueCount)
	require.Equal(t, change.PhaseProposed, out.Phase)
	require.Len(t, f.invoker.calls, 5)
	require.Equal(t, 2, f.driver.Machine.State().Iteration)
}

func TestRunCycleRejection(t *testing.T) {
	f := newFixture(t, nil)
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		{Output: "- HIGH: fundamentally unsound (at proposal.md)\n<verdict>REJECTED</verdict>", SessionID: "sess-1"},
	}

	out := f.driver.RunCycle(context.Background())
	require.Equal(t, OutcomeRejected, out.Kind)
	require.Equal(t, change.PhaseRejected, out.Phase)

	// A rejected change never cycles again without an explicit reopen.
	again := f.driver.RunCycle(context.Background())
	require.Equal(t, OutcomeError, again.Kind)
	require.Equal(t, KindState, again.Err.Kind)
	require.Len(t, f.invoker.calls, 3)
}

func TestRunCycleUnknownCritiqueVerdictIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		{Output: "I have some thoughts but forgot the marker.", SessionID: "sess-1"},
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeError, out.Kind)
	require.Equal(t, KindParse, out.Err.Kind)
	require.Equal(t, change.PhaseProposed, f.driver.Machine.Current())
	require.Equal(t, 0, f.driver.Machine.State().Iteration)
}

func TestRunCycleInconsistentCritiqueIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		{Output: "Needs work.\n<verdict>NEEDS_REVISION</verdict>", SessionID: "sess-1"},
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeError, out.Kind)
	require.Equal(t, KindConsistency, out.Err.Kind)
	require.Equal(t, change.PhaseProposed, f.driver.Machine.Current())
	require.Equal(t, 0, f.driver.Machine.State().Iteration)
}

func TestRunCycleSessionResolutionFailureIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.err = errors.New("sessions list: exit status 1")
	f.invoker.results = []agent.Result{
		{Output: proposalDoc()},
		{Output: tasksDoc()},
		needsRevisionCritique("sess-1", "no rollback plan"),
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeError, out.Kind)
	require.Equal(t, KindSession, out.Err.Kind)
	require.Equal(t, "revise", out.Err.Step)
	// No revision call was attempted, and the iteration was still counted.
	require.Len(t, f.invoker.calls, 3)
	require.Equal(t, 1, f.driver.Machine.State().Iteration)
}

func TestRunCycleSelfReviseOnce(t *testing.T) {
	f := newFixture(t, nil)
	selfCritical := proposalDoc() +
		"- MEDIUM: motivation is thin (at proposal.md)\n<verdict>NEEDS_REVISION</verdict>\n"
	f.invoker.results = []agent.Result{
		{Output: selfCritical},
		{Output: proposalDoc() + "Better now."},
		{Output: tasksDoc()},
		approvedCritique("sess-1"),
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeApproved, out.Kind)
	require.Len(t, f.invoker.calls, 4)
	require.Equal(t, []string{"proposal-gen", "self-revise:proposal.md", "tasks-gen", "challenge"}, f.ledger.steps())

	content, err := f.store.Read(ProposalArtifact)
	require.NoError(t, err)
	require.Contains(t, content, "Better now.")
}

func TestRunCycleMissingSelfReviewIsWarning(t *testing.T) {
	f := newFixture(t, nil)
	f.invoker.results = []agent.Result{
		{Output: "## Why\nbecause\n\n## What Changes\nthings\n"},
		{Output: tasksDoc()},
		approvedCritique("sess-1"),
	}

	out := f.driver.RunCycle(context.Background())

	require.Equal(t, OutcomeApproved, out.Kind)
	require.Len(t, f.invoker.calls, 3)
}

func TestInvokeWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.driver.Retries = 2
	f.driver.RetryDelay = time.Second
	var slept int
	f.driver.Sleep = func(time.Duration) { slept++ }
	f.invoker.errs = []error{errors.New("timeout"), errors.New("timeout")}
	f.invoker.results = []agent.Result{{}, {}, {Output: "ok", Model: "sonnet"}}

	f.driver.init()
	res, cerr := f.driver.invokeWithRetry(context.Background(), "challenge", agent.Request{Prompt: "p"})

	require.Nil(t, cerr)
	require.Equal(t, "ok", res.Output)
	require.Equal(t, 2, slept)
	// Only the successful attempt is billed.
	require.Len(t, f.ledger.records, 1)
}

func TestInvokeWithRetryExhaustionIsTransientError(t *testing.T) {
	f := newFixture(t, nil)
	f.driver.Retries = 1
	f.invoker.errs = []error{errors.New("timeout"), errors.New("timeout")}

	f.driver.init()
	_, cerr := f.driver.invokeWithRetry(context.Background(), "challenge", agent.Request{Prompt: "p"})

	require.NotNil(t, cerr)
	require.Equal(t, KindTransient, cerr.Kind)
	require.Len(t, f.invoker.calls, 2)
	require.Empty(t, f.ledger.records)
}

func TestRunCycleNonProposedPhasesAreUpToDate(t *testing.T) {
	f := newFixture(t, nil)
	f.writeAllArtifacts(t, nil)
	require.NoError(t, f.store.Write(ProposalArtifact, proposalDoc()))

	// Walk the change to Implementing and verify cycles become no-ops.
	_, err := f.driver.Machine.ApplyVerdict("approved")
	require.NoError(t, err)
	require.NoError(t, f.driver.Machine.StartImplementation())

	out := f.driver.RunCycle(context.Background())
	require.Equal(t, OutcomeUpToDate, out.Kind)
	require.Equal(t, change.PhaseImplementing, out.Phase)
	require.Empty(t, f.invoker.calls)
}
