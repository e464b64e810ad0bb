// Package gzip provides the gzip layer of omnifile streams.
//
// Writers produce a single gzip member whose trailer is written on Close.
// Readers decode concatenated members (as written by bgzip or by appending
// gzip files) as one continuous stream.
package gzip

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// CompressionLevel represents gzip compression levels.
type CompressionLevel int

const (
	// NoCompression stores data without compressing it.
	NoCompression CompressionLevel = gzip.NoCompression
	// BestSpeed provides fastest compression.
	BestSpeed CompressionLevel = gzip.BestSpeed
	// BestCompression provides best compression ratio.
	BestCompression CompressionLevel = gzip.BestCompression
	// DefaultCompression provides a balance of speed and compression.
	DefaultCompression CompressionLevel = gzip.DefaultCompression
	// HuffmanOnly uses Huffman encoding only.
	HuffmanOnly CompressionLevel = gzip.HuffmanOnly
	// StatelessCompression compresses each write independently.
	StatelessCompression CompressionLevel = gzip.StatelessCompression
)

// Valid reports whether l is accepted by NewWriterLevel.
func (l CompressionLevel) Valid() bool {
	return l >= StatelessCompression && l <= BestCompression
}

// Writer compresses into an io.WriteCloser and owns it.
type Writer struct {
	gw     *gzip.Writer
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewWriterLevel creates a new gzip writer with the specified compression level.
// On error w is left open.
func NewWriterLevel(w io.WriteCloser, level CompressionLevel) (*Writer, error) {
	gw, err := gzip.NewWriterLevel(w, int(level))
	if err != nil {
		return nil, err
	}
	return &Writer{
		gw:     gw,
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

	return w.gw.Write(p)
}

// Flush emits pending compressed data. It does not write the trailer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return io.ErrClosedPipe
	}

	return w.gw.Flush()
}

// Close writes the gzip trailer and then closes the underlying writer.
// The underlying writer is closed even if the trailer cannot be written.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if err := w.gw.Close(); err != nil {
		_ = w.closer.Close()
		return err
	}

	return w.closer.Close()
}

var _ io.WriteCloser = (*Writer)(nil)
