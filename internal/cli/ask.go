package cli

import (
	"context"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/review-agent/backend/internal/query"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var rows int
	var showStatement bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question about the reviews",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := root.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			spinner, _ := pterm.DefaultSpinner.Start("Thinking...")
			ans := a.Engine.AnswerQuestion(ctx, strings.Join(args, " "))
			if spinner != nil {
				if ans.Answered() {
					spinner.Success("Answered")
				} else {
					spinner.Warning(ans.Status)
				}
			}

			printAnswer(ans, showStatement)
			if rows > 0 && ans.Answered() && ans.Result.Len() > 0 {
				pterm.Println()
				writeRows(os.Stdout, ans.Result, rows)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 0, "also print up to this many raw result rows")
	cmd.Flags().BoolVar(&showStatement, "sql", false, "print the executed statement")
	return cmd
}

func printAnswer(ans query.Answer, showStatement bool) {
	pterm.Println()
	pterm.Println(ans.Text)
	pterm.Println()

	details := []pterm.BulletListItem{
		{Level: 0, Text: "attempts: " + pterm.Sprint(ans.Attempts)},
		{Level: 0, Text: "source: " + ans.Source},
		{Level: 0, Text: "cached: " + pterm.Sprint(ans.Cached)},
		{Level: 0, Text: "latency: " + pterm.Sprint(ans.LatencyMS) + " ms"},
	}
	if showStatement && ans.Statement != "" {
		details = append(details, pterm.BulletListItem{Level: 0, Text: "statement: " + ans.Statement})
	}
	_ = pterm.DefaultBulletList.WithItems(details).Render()
}
