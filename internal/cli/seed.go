package cli

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample reviews into an empty SQLite review store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := root.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Seed(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				pterm.Info.Println("Review store already has data; nothing loaded")
				return nil
			}
			pterm.Success.Printf("Loaded %d sample reviews\n", n)
			return nil
		},
	}
}
