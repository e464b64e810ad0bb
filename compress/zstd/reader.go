package zstd

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Reader decompresses from an io.ReadCloser and owns it.
// Consecutive frames are decoded as one stream.
type Reader struct {
	zr     *zstd.Decoder
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewReader creates a synchronous zstd reader over r.
// On error r is left open.
func NewReader(r io.ReadCloser) (*Reader, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Reader{
		zr:     zr,
		closer: r,
	}, nil
}

// Read reads decompressed data.
func (r *Reader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}

	return r.zr.Read(p)
}

// Close releases the decoder and closes the underlying reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	r.zr.Close()

	return r.closer.Close()
}

var _ io.ReadCloser = (*Reader)(nil)
