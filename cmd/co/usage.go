package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/boshu2/changeops/internal/change"
	"github.com/boshu2/changeops/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage <change-id>",
	Short: "Show usage records and cost totals",
	Long: `Display the usage ledger for a change: one row per external
call with tokens and cost, plus derived totals. Totals are always
computed from the records, never stored.

Examples:
  co usage add-retry-policy`,
	Args: cobra.ExactArgs(1),
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	id := args[0]
	if _, err := change.Load(root, id); err != nil {
		return err
	}

	ledger := usage.NewLedger(change.Dir(root, id), nil)
	records, err := ledger.Records()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No usage recorded for %s\n", id)
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Timestamp", "Step", "Model", "Tokens In", "Tokens Out", "Cost"})
	for _, r := range records {
		tw.AppendRow(table.Row{
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Step, r.Model, r.TokensIn, r.TokensOut,
			fmt.Sprintf("$%.4f", r.Cost),
		})
	}
	totals := usage.Sum(records)
	tw.AppendFooter(table.Row{"", "total", "", totals.TokensIn, totals.TokensOut,
		fmt.Sprintf("$%.4f", totals.Cost)})
	tw.Render()
	return nil
}
