package cli

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit records",
	}

	failures := &cobra.Command{
		Use:   "failures",
		Short: "List questions the pipeline could not answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := root.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Audit.ListFailures(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				pterm.Info.Println("No failures recorded")
				return nil
			}
			writeFailures(os.Stdout, records)
			return nil
		},
	}

	successes := &cobra.Command{
		Use:   "successes",
		Short: "List answered questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := root.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Audit.ListSuccesses(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				pterm.Info.Println("No answers recorded")
				return nil
			}
			writeSuccesses(os.Stdout, records)
			return nil
		},
	}

	cmd.PersistentFlags().IntVarP(&limit, "limit", "n", 20, "number of records to show, newest first")
	cmd.AddCommand(failures, successes)
	return cmd
}
