package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/homelens/homelens/internal/rag"
)

var (
	queryHome     string
	queryRoom     string
	queryFloor    int
	queryTopK     int
	queryNoHybrid bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve knowledge relevant to a question",
	Long: `Query embeds the question, searches the index by vector similarity and
keyword relevance, and prints the fused results with their provenance.
Scope flags restrict candidates before ranking, so a scoped query never
surfaces another home's data.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryHome, "home", "", "restrict results to one home id")
	queryCmd.Flags().StringVar(&queryRoom, "room", "", "restrict results to one room id")
	queryCmd.Flags().IntVar(&queryFloor, "floor", 0, "restrict results to one floor level")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryNoHybrid, "no-hybrid", false, "rank by vector similarity only")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text := strings.Join(args, " ")

	var opts []rag.QueryOption
	homeID, err := parseOptionalUUID(queryHome, "home")
	if err != nil {
		return err
	}
	if homeID != nil {
		opts = append(opts, rag.ForHome(*homeID))
	}
	roomID, err := parseOptionalUUID(queryRoom, "room")
	if err != nil {
		return err
	}
	if roomID != nil {
		opts = append(opts, rag.ForRoom(*roomID))
	}
	if cmd.Flags().Changed("floor") {
		opts = append(opts, rag.ForFloorLevel(queryFloor))
	}
	if queryTopK > 0 {
		opts = append(opts, rag.TopK(queryTopK))
	}
	if queryNoHybrid {
		opts = append(opts, rag.VectorOnly())
	}

	app, shutdown, err := setup(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	matches, err := app.engine.Query(ctx, text, opts...)
	if err != nil {
		if errors.Is(err, rag.ErrStaleIndex) {
			return fmt.Errorf("%w\nrun \"homelens reindex\" to rebuild with the active model", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(out, "%2d. [%.4f] %s (%s)\n", i+1, m.Score, m.Title, m.SourceType)
		fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(m.Text, "\n", "\n    "))
	}
	return nil
}
