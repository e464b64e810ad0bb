// Package zstd provides the Zstandard layer of omnifile streams.
//
// Encoders and decoders built here run synchronously on the caller's
// goroutine, with concurrency pinned to 1. Writers always use the codec's
// default level.
package zstd

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Writer compresses into an io.WriteCloser and owns it.
type Writer struct {
	zw     *zstd.Encoder
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewWriter creates a synchronous zstd writer over w at the codec's
// default level. On error w is left open.
func NewWriter(w io.WriteCloser) (*Writer, error) {
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &Writer{
		zw:     zw,
		closer: w,
	}, nil
}

// Write writes compressed data to the underlying writer.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, io.ErrClosedPipe
	}

	return w.zw.Write(p)
}

// Flush encodes buffered input as a complete block. It does not end the frame.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return io.ErrClosedPipe
	}

	return w.zw.Flush()
}

// Close ends the frame and then closes the underlying writer.
// The underlying writer is closed even if the frame cannot be finished.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if err := w.zw.Close(); err != nil {
		_ = w.closer.Close()
		return err
	}

	return w.closer.Close()
}

var _ io.WriteCloser = (*Writer)(nil)
