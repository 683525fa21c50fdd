// Package cmd wires configuration, storage, and the retrieval engine into
// the homelens command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "homelens",
	Short: "Homelens indexes home knowledge and answers retrieval queries",
	Long: `Homelens projects home inventory records (rooms, floor plans, materials,
fixtures, analysis results) into a searchable knowledge index and serves
scoped hybrid retrieval queries over it.

Run "homelens reindex" after domain data changes, then "homelens query"
to retrieve relevant knowledge.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
