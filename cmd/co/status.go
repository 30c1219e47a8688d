package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/driver"
	"github.com/boshu2/changeops/internal/storage"
	"github.com/boshu2/changeops/internal/usage"
)

var statusCmd = &cobra.Command{
	Use:   "status [change-id]",
	Short: "Show all changes and their phases",
	Long: `Display every change under the project root with its phase,
iteration count, and artifact progress. With a change id, show that
change in detail including its review history.

Examples:
  co status
  co status add-retry-policy`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		return statusDetail(root, args[0])
	}

	ids, err := change.List(root)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No changes. Create one with: co new <change-id>")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Phase", "Iteration", "Artifacts", "Updated"})
	for _, id := range ids {
		st, err := change.Load(root, id)
		if err != nil {
			return err
		}
		tw.AppendRow(table.Row{
			st.ID, st.Phase, st.Iteration,
			artifactProgress(root, *st),
			st.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	tw.Render()
	return nil
}

func statusDetail(root, id string) error {
	st, err := change.Load(root, id)
	if err != nil {
		return err
	}
	fmt.Printf("Change:    %s\n", st.ID)
	fmt.Printf("Phase:     %s\n", st.Phase)
	fmt.Printf("Iteration: %d\n", st.Iteration)
	if st.SessionID != "" {
		fmt.Printf("Session:   %s\n", st.SessionID)
	}
	if st.LastAction != "" {
		fmt.Printf("Last step: %s\n", st.LastAction)
	}
	if len(st.Specs) > 0 {
		fmt.Printf("Specs:     %s\n", strings.Join(st.Specs, ", "))
	}

	store := storage.NewFileStore(change.Dir(root, id))
	fmt.Println("\nArtifacts:")
	for _, name := range driver.ArtifactNames(*st) {
		mark := " "
		if store.Exists(name) {
			mark = "x"
		}
		fmt.Printf("  [%s] %s\n", mark, name)
	}

	ledger := usage.NewLedger(change.Dir(root, id), nil)
	totals, err := ledger.Totals()
	if err != nil {
		return err
	}
	if totals.Records > 0 {
		fmt.Printf("\nUsage: %d call(s), %d in / %d out tokens, $%.4f\n",
			totals.Records, totals.TokensIn, totals.TokensOut, totals.Cost)
	}

	reviews, err := store.Reviews(driver.ProposalArtifact)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		return nil
	}
	fmt.Println("\nReview history:")
	for _, r := range reviews {
		fmt.Printf("  %s  %-15s %d issue(s)\n",
			r.RecordedAt.Format("2006-01-02 15:04"), r.Verdict, len(r.Issues))
	}
	return nil
}

// artifactProgress renders "present/required" for the change's artifacts.
func artifactProgress(root string, st change.State) string {
	store := storage.NewFileStore(change.Dir(root, st.ID))
	names := driver.ArtifactNames(st)
	present := 0
	for _, name := range names {
		if store.Exists(name) {
			present++
		}
	}
	return fmt.Sprintf("%d/%d", present, len(names))
}
