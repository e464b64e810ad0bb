package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [PREFIX]",
	Short: "List files on the backend",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	_, backend, err := openGateway(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	paths, err := backend.List(cmd.Context(), prefix)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
