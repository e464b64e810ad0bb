// Package omnifile provides transparent, compression-agnostic file I/O for Go.
//
// A path's extension decides how its bytes are encoded: ".gz" and ".bgz" are
// gzip, ".zst" is zstd, and anything else is plain text. The stream package
// builds buffered readers and writers that hide the encoding, and the
// format/delim package reads and writes typed records as CSV/TSV on top of them.
//
// Bytes come from a Backend (local files by default; memory, S3 and SFTP are
// also available), so the same path rules apply regardless of where the data lives.
//
// Basic usage:
//
//	gw := stream.Default()
//	_ = gw.WriteLines(ctx, "/tmp/names.txt.gz", []string{"alice", "bob"})
//	lines, _ := gw.ReadLines(ctx, "/tmp/names.txt.gz")
package omnifile

import (
	"context"
	"io"
)

// Backend is a raw byte source and sink addressed by path.
// Backends never compress or decompress; that is the stream layer's job.
//
// Backends are safe for concurrent use by multiple goroutines.
type Backend interface {
	// NewWriter creates or truncates the object at path.
	// The returned writer must be closed; data may not be durable before Close.
	NewWriter(ctx context.Context, path string, opts ...WriterOption) (io.WriteCloser, error)

	// NewReader opens the object at path.
	// Returns ErrNotFound if the path does not exist.
	NewReader(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error

	// List lists paths with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the backend.
	// After Close, all other methods return ErrBackendClosed.
	Close() error
}
