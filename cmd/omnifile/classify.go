package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grokify/omnifile"
)

var classifyCmd = &cobra.Command{
	Use:   "classify PATH...",
	Short: "Show the compression implied by each path's extension",
	Long: `Classify prints one line per path with the compression implied by its
final extension and whether the extension marks a FASTQ file. The files
are not opened and need not exist.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	for _, p := range args {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tfastq=%v\n", p, omnifile.Classify(p), omnifile.IsFastqPath(p))
	}
	return nil
}
