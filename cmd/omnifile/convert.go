package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/stream"
)

var convertCmd = &cobra.Command{
	Use:   "convert SRC [DST]",
	Short: "Copy a file, recompressing it for the destination extension",
	Long: `Convert decodes SRC according to its extension and writes the content
to DST encoded according to DST's extension, e.g. .gz to .zst.

Without DST, --to names the target compression and DST is SRC with its
compression extension replaced: "convert reads.fq.gz --to zstd" writes
reads.fq.zst.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConvert,
}

var (
	verifyHash string
	convertTo  string
)

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "", "target compression when DST is omitted (plain, gzip, zstd)")
	convertCmd.Flags().StringVar(&verifyHash, "verify", "", "compare decoded checksums of SRC and DST (md5, sha256, crc32c)")
	rootCmd.AddCommand(convertCmd)
}

// convertPaths resolves SRC and DST from the arguments and --to.
func convertPaths(args []string) (string, string, error) {
	src := args[0]
	if len(args) == 2 {
		if convertTo != "" {
			return "", "", fmt.Errorf("--to cannot be combined with DST")
		}
		return src, args[1], nil
	}
	if convertTo == "" {
		return "", "", fmt.Errorf("convert needs DST or --to")
	}
	c, err := omnifile.ParseCompression(convertTo)
	if err != nil {
		return "", "", err
	}
	dst := omnifile.ReplaceCompression(src, c)
	if dst == src {
		return "", "", fmt.Errorf("%s is already %s", src, c)
	}
	return src, dst, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	src, dst, err := convertPaths(args)
	if err != nil {
		return err
	}

	gw, backend, err := openGateway(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	n, err := stream.Copy(cmd.Context(), gw, src, gw, dst)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s: %d bytes\n", src, dst, n)
	}

	if verifyHash == "" {
		return nil
	}
	ht := stream.HashType(verifyHash)
	want, err := gw.Checksum(cmd.Context(), src, ht)
	if err != nil {
		return err
	}
	got, err := gw.Checksum(cmd.Context(), dst, ht)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("checksum mismatch: %s %s=%s, %s %s=%s", src, ht, want, dst, ht, got)
	}
	return nil
}
