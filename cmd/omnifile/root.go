package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grokify/omnifile"
	_ "github.com/grokify/omnifile/backend/file"
	_ "github.com/grokify/omnifile/backend/memory"
	_ "github.com/grokify/omnifile/backend/s3"
	_ "github.com/grokify/omnifile/backend/sftp"
	"github.com/grokify/omnifile/stream"
)

var (
	// Global flags.
	backendName string
	backendOpts []string
	level       int
	bufferSize  int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "omnifile",
	Short: "Read and write plain, gzip and zstd files on any storage backend",
	Long: `Omnifile reads and writes files whose compression is decided by their
extension: ".gz" and ".bgz" are gzip, ".zst" is zstd, anything else is
plain text. Files can live on the local filesystem, S3 or an SFTP server.

Examples:
  # Print a compressed FASTQ
  omnifile cat reads.fq.gz

  # Compress at maximum gzip level (--level applies to gzip only)
  omnifile convert reads.fq reads.fq.gz --level 9

  # Recompress gzip to zstd, writing reads.fq.zst
  omnifile convert reads.fq.gz --to zstd

  # List objects in a bucket
  omnifile ls runs/ --backend s3 --backend-opt bucket=sequencing`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "file", "storage backend ("+strings.Join(omnifile.Backends(), ", ")+")")
	rootCmd.PersistentFlags().StringArrayVarP(&backendOpts, "backend-opt", "o", nil, "backend option as key=value (repeatable)")
	rootCmd.PersistentFlags().IntVarP(&level, "level", "l", omnifile.DefaultCompressionLevel, "gzip compression level (-3 to 9); zstd always uses its default level")
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer-size", omnifile.DefaultBufferSize, "buffer size in bytes")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// parseBackendOpts turns key=value pairs into a backend config map.
func parseBackendOpts(opts []string) (map[string]string, error) {
	m := make(map[string]string, len(opts))
	for _, opt := range opts {
		k, v, ok := strings.Cut(opt, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid backend option %q: want key=value", opt)
		}
		m[k] = v
	}
	return m, nil
}

// gatewayConfig returns the environment config overridden by explicit flags.
func gatewayConfig(cmd *cobra.Command) omnifile.Config {
	cfg := omnifile.ConfigFromEnv()
	if cmd.Flags().Changed("level") {
		cfg.CompressionLevel = level
	}
	if cmd.Flags().Changed("buffer-size") {
		cfg.BufferSize = bufferSize
	}
	return cfg
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	lvl := slog.LevelWarn
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
}

// openGateway opens the selected backend and a gateway over it.
// The caller closes the returned backend.
func openGateway(cmd *cobra.Command) (*stream.Gateway, omnifile.Backend, error) {
	opts, err := parseBackendOpts(backendOpts)
	if err != nil {
		return nil, nil, err
	}

	backend, err := omnifile.Open(backendName, opts)
	if err != nil {
		return nil, nil, err
	}

	gw, err := stream.New(gatewayConfig(cmd),
		stream.WithBackend(backend),
		stream.WithLogger(newLogger(cmd)))
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return gw, backend, nil
}
