package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/compress/gzip"
	"github.com/grokify/omnifile/compress/zstd"
)

// Writer is a buffered, compressing writer over one file.
// Nothing is guaranteed to be on storage until Close returns nil.
type Writer struct {
	bw     *bufio.Writer
	inner  io.WriteCloser
	path   string
	closed bool
	mu     sync.Mutex
}

type flusher interface {
	Flush() error
}

// NewWriter creates or truncates path for writing, compressing per its
// extension. Gzip paths use the configured CompressionLevel; zstd paths
// use the zstd default level.
func (g *Gateway) NewWriter(ctx context.Context, path string) (*Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, omnifile.IOError("create", path, err)
	}

	comp := omnifile.Classify(path)
	raw, err := g.backend.NewWriter(ctx, path, omnifile.WithContentType(comp.ContentType()))
	if err != nil {
		return nil, omnifile.IOError("create", path, err)
	}

	g.logger.Debug("open for write",
		"path", path,
		"compression", comp.String(),
		"buffer_size", g.config.BufferSize)

	inner := raw
	switch comp {
	case omnifile.Gzip:
		zw, err := gzip.NewWriterLevel(raw, gzip.CompressionLevel(g.config.CompressionLevel))
		if err != nil {
			_ = raw.Close()
			return nil, omnifile.IOError("create", path, fmt.Errorf("gzip: %w", err))
		}
		inner = zw
	case omnifile.Zstd:
		zw, err := zstd.NewWriter(raw)
		if err != nil {
			_ = raw.Close()
			return nil, omnifile.IOError("create", path, fmt.Errorf("zstd: %w", err))
		}
		inner = zw
	}

	return &Writer{
		bw:    bufio.NewWriterSize(inner, g.config.BufferSize),
		inner: inner,
		path:  path,
	}, nil
}

// Write writes uncompressed bytes.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, omnifile.IOError("write", w.path, omnifile.ErrWriterClosed)
	}

	n, err := w.bw.Write(p)
	return n, omnifile.IOError("write", w.path, err)
}

// WriteString writes s.
func (w *Writer) WriteString(s string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, omnifile.IOError("write", w.path, omnifile.ErrWriterClosed)
	}

	n, err := w.bw.WriteString(s)
	return n, omnifile.IOError("write", w.path, err)
}

// Flush drains the buffer and flushes the encoder, so everything written
// so far is decodable from what has reached the backend.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return omnifile.IOError("flush", w.path, omnifile.ErrWriterClosed)
	}

	if err := w.bw.Flush(); err != nil {
		return omnifile.IOError("flush", w.path, err)
	}
	if f, ok := w.inner.(flusher); ok {
		return omnifile.IOError("flush", w.path, f.Flush())
	}
	return nil
}

// Close drains the buffer, writes the compression trailer and closes the
// file. The file is closed even if draining fails; the first error is
// returned. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.bw.Flush()
	closeErr := w.inner.Close()
	if flushErr != nil {
		return omnifile.IOError("close", w.path, flushErr)
	}
	return omnifile.IOError("close", w.path, closeErr)
}

var _ io.WriteCloser = (*Writer)(nil)
