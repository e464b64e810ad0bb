package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/compress/gzip"
	"github.com/grokify/omnifile/compress/zstd"
)

// Reader is a buffered, decompressing reader over one file.
// It is not safe for concurrent use by multiple goroutines beyond
// the guarantee that Close is idempotent.
type Reader struct {
	br     *bufio.Reader
	closer io.Closer
	path   string
	closed bool
	mu     sync.Mutex
}

// bufferedReadCloser feeds a decoder from a buffer while keeping the
// backend handle closable.
type bufferedReadCloser struct {
	*bufio.Reader
	io.Closer
}

// NewReader opens path for reading, decompressing per its extension.
//
// A missing path, a permission failure or a compressed header that
// cannot be decoded fails here with a KindIO error. Corruption later
// in the stream surfaces from Read.
func (g *Gateway) NewReader(ctx context.Context, path string) (*Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, omnifile.IOError("open", path, err)
	}

	comp := omnifile.Classify(path)
	raw, err := g.backend.NewReader(ctx, path)
	if err != nil {
		return nil, omnifile.IOError("open", path, err)
	}

	g.logger.Debug("open for read",
		"path", path,
		"compression", comp.String(),
		"buffer_size", g.config.BufferSize)

	var src io.ReadCloser = raw
	switch comp {
	case omnifile.Gzip:
		zr, err := gzip.NewReader(&bufferedReadCloser{bufio.NewReaderSize(raw, g.config.BufferSize), raw})
		if err != nil {
			_ = raw.Close()
			return nil, omnifile.IOError("open", path, fmt.Errorf("gzip: %w", err))
		}
		src = zr
	case omnifile.Zstd:
		zr, err := zstd.NewReader(&bufferedReadCloser{bufio.NewReaderSize(raw, g.config.BufferSize), raw})
		if err != nil {
			_ = raw.Close()
			return nil, omnifile.IOError("open", path, fmt.Errorf("zstd: %w", err))
		}
		src = zr
	}

	return &Reader{
		br:     bufio.NewReaderSize(src, g.config.BufferSize),
		closer: src,
		path:   path,
	}, nil
}

// Read reads decompressed bytes.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, omnifile.IOError("read", r.path, omnifile.ErrReaderClosed)
	}

	n, err := r.br.Read(p)
	if err != nil && err != io.EOF {
		return n, omnifile.IOError("read", r.path, err)
	}
	return n, err
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
// A final line without a terminator is returned before io.EOF.
// A line that is not valid UTF-8 fails with omnifile.ErrInvalidText.
func (r *Reader) ReadLine() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", omnifile.IOError("read", r.path, omnifile.ErrReaderClosed)
	}

	line, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", omnifile.IOError("read", r.path, err)
		}
		if line == "" {
			return "", io.EOF
		}
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		return "", omnifile.IOError("read", r.path, omnifile.ErrInvalidText)
	}
	return line, nil
}

// Close closes the decoder and the underlying file. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return omnifile.IOError("close", r.path, r.closer.Close())
}

var _ io.ReadCloser = (*Reader)(nil)
