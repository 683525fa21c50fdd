package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index size and backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, shutdown, err := setup(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		stats, backend, err := app.engine.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backend:   %s\nDocuments: %d\nChunks:    %d\n",
			backend, stats.Documents, stats.Chunks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
