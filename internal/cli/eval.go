package cli

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/review-agent/backend/internal/evaluation"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <dataset.json>",
		Short: "Replay a question dataset and report how the pipeline fared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := evaluation.LoadDatasetFile(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := root.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := evaluation.NewEvaluator(a.Engine).Run(ctx, dataset)
			if err != nil {
				return err
			}

			for _, r := range report.Results {
				if !r.Matched {
					pterm.Warning.Printf("%s: %s\n", r.Item.Question, r.Reason)
				}
			}
			pterm.Println(evaluation.GenerateReport(report))
			return nil
		},
	}
}
