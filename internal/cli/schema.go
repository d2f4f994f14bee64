package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/review-agent/backend/internal/catalog"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the columns questions can refer to",
		RunE: func(cmd *cobra.Command, args []string) error {
			writeCatalog(os.Stdout, catalog.Reviews())
			return nil
		},
	}
}
