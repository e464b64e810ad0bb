// Package stream opens files for transparent compressed reading and writing.
//
// The compression of a path is decided by its final extension alone:
// ".gz" and ".bgz" are gzip, ".zst" is zstd, anything else is plain text.
// Readers and writers are layered over an omnifile.Backend, so the same
// code reads a local "reads.fq.gz" or an S3 object with that key.
//
//	gw := stream.Default()
//	err := gw.WithWriter(ctx, "out.tsv.zst", func(w *stream.Writer) error {
//	    _, err := w.WriteString("id\tcount\n")
//	    return err
//	})
package stream

import (
	"log/slog"

	"github.com/grokify/mogo/log/slogutil"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/backend/file"
)

// Gateway opens compressed or plain streams on a backend.
// A Gateway holds no open handles; every open returns a fresh stream.
type Gateway struct {
	config  omnifile.Config
	backend omnifile.Backend
	logger  *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBackend sets the storage backend. The default is the file backend
// with verbatim paths and no directory creation.
func WithBackend(backend omnifile.Backend) Option {
	return func(g *Gateway) {
		g.backend = backend
	}
}

// WithLogger sets the logger for open events.
// If nil, a null logger is used that discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New returns a Gateway for cfg, which must pass Validate.
func New(cfg omnifile.Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{config: cfg}
	for _, opt := range opts {
		opt(g)
	}
	if g.backend == nil {
		g.backend = file.New(file.DefaultConfig())
	}
	if g.logger == nil {
		g.logger = slogutil.Null()
	}
	return g, nil
}

// Default returns a Gateway with omnifile.DefaultConfig on the local filesystem.
func Default() *Gateway {
	g, err := New(omnifile.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return g
}

// Config returns the gateway configuration.
func (g *Gateway) Config() omnifile.Config {
	return g.config
}

// Backend returns the underlying storage backend.
func (g *Gateway) Backend() omnifile.Backend {
	return g.backend
}

// Classify returns the compression implied by p's extension.
func Classify(p string) omnifile.Compression {
	return omnifile.Classify(p)
}

// IsGzipPath returns true if p ends with ".gz" or ".bgz".
func IsGzipPath(p string) bool {
	return omnifile.IsGzipPath(p)
}

// IsZstdPath returns true if p ends with ".zst".
func IsZstdPath(p string) bool {
	return omnifile.IsZstdPath(p)
}

// IsFastqPath returns true if p ends with ".fastq" or ".fq".
func IsFastqPath(p string) bool {
	return omnifile.IsFastqPath(p)
}
