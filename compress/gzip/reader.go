package gzip

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Reader decompresses from an io.ReadCloser and owns it.
type Reader struct {
	gr     *gzip.Reader
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewReader reads the first gzip header from r and returns a reader that
// decodes every following member as part of the same stream.
// A missing or corrupt header is reported here, and r is left open.
func NewReader(r io.ReadCloser) (*Reader, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	gr.Multistream(true)
	return &Reader{
		gr:     gr,
		closer: r,
	}, nil
}

// Read reads decompressed data.
// Corruption inside the stream, or a checksum mismatch, is reported here.
func (r *Reader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}

	return r.gr.Read(p)
}

// Close closes both the gzip reader and the underlying reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	if err := r.gr.Close(); err != nil {
		_ = r.closer.Close()
		return err
	}

	return r.closer.Close()
}

var _ io.ReadCloser = (*Reader)(nil)
