package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/grokify/omnifile/stream"
)

var catCmd = &cobra.Command{
	Use:   "cat PATH...",
	Short: "Print decompressed file contents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	gw, backend, err := openGateway(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	out := cmd.OutOrStdout()
	for _, p := range args {
		err := gw.WithReader(cmd.Context(), p, func(r *stream.Reader) error {
			_, err := io.Copy(out, r)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
