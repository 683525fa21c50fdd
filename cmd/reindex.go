package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reindexHome string

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the knowledge index from domain records",
	Long: `Reindex projects domain records into knowledge documents, chunks and
embeds them, and replaces the index contents. With --home only that home's
documents are rebuilt; without it the whole index is rebuilt, which is also
the recovery path after switching embedding models.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().StringVar(&reindexHome, "home", "", "restrict the rebuild to one home id")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	homeID, err := parseOptionalUUID(reindexHome, "home")
	if err != nil {
		return err
	}

	app, shutdown, err := setup(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	summary, err := app.engine.Reindex(ctx, homeID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents (%d chunks, %d records skipped, %d failed)\n",
		summary.Documents, summary.Chunks, summary.Skipped, summary.Failed)
	return nil
}

// parseOptionalUUID parses an optional flag value into a scope pointer.
func parseOptionalUUID(value, flag string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return &id, nil
}
