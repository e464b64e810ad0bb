// Package mirror provides a backend that writes every file to several
// backends at once and reads from the first one that has it.
//
// Combined with a stream.Gateway, one compressed write lands in all
// backends, e.g. a local scratch copy and an S3 object:
//
//	m, err := mirror.New([]omnifile.Backend{local, s3Backend})
//	gw, err := stream.New(omnifile.DefaultConfig(), stream.WithBackend(m))
//	err = gw.WriteLines(ctx, "run1/summary.tsv.zst", lines)
package mirror

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/grokify/omnifile"
)

// Errors returned by the mirror backend.
var (
	ErrNoBackends = errors.New("mirror: at least one backend is required")
)

// WriteMode determines how writes handle a failing backend.
type WriteMode int

const (
	// WriteAll requires every backend to succeed.
	WriteAll WriteMode = iota

	// WriteBestEffort keeps writing to the backends that still work and
	// fails only when all of them have failed.
	WriteBestEffort
)

// Backend implements omnifile.Backend over a list of backends.
// The first backend is the primary: it serves List.
type Backend struct {
	backends []omnifile.Backend
	mode     WriteMode
	closed   bool
	mu       sync.RWMutex
}

// Option configures a mirror backend.
type Option func(*Backend)

// WithMode sets the write mode. Default WriteAll.
func WithMode(mode WriteMode) Option {
	return func(b *Backend) {
		b.mode = mode
	}
}

// New returns a mirror over the non-nil entries of backends.
func New(backends []omnifile.Backend, opts ...Option) (*Backend, error) {
	valid := slices.DeleteFunc(slices.Clone(backends), func(b omnifile.Backend) bool {
		return b == nil
	})
	if len(valid) == 0 {
		return nil, ErrNoBackends
	}

	b := &Backend{backends: valid, mode: WriteAll}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Len returns the number of mirrored backends.
func (b *Backend) Len() int {
	return len(b.backends)
}

// NewWriter opens a writer on every backend.
func (b *Backend) NewWriter(ctx context.Context, path string, opts ...omnifile.WriterOption) (io.WriteCloser, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	writers := make([]io.WriteCloser, 0, len(b.backends))
	var errs []error

	for _, backend := range b.backends {
		w, err := backend.NewWriter(ctx, path, opts...)
		if err != nil {
			errs = append(errs, err)
			if b.mode == WriteAll {
				for _, opened := range writers {
					_ = opened.Close()
				}
				return nil, errors.Join(errs...)
			}
			continue
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		return nil, errors.Join(errs...)
	}

	return &mirrorWriter{writers: writers, mode: b.mode}, nil
}

// NewReader reads path from the first backend that has it.
func (b *Backend) NewReader(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	var errs []error
	for _, backend := range b.backends {
		r, err := backend.NewReader(ctx, path)
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
		if !omnifile.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, errors.Join(errs...)
}

// Exists returns true if any backend has path.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.checkClosed(); err != nil {
		return false, err
	}

	for _, backend := range b.backends {
		ok, err := backend.Exists(ctx, path)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes path from every backend.
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := b.checkClosed(); err != nil {
		return err
	}

	var errs []error
	for _, backend := range b.backends {
		if err := backend.Delete(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List lists the primary backend.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.backends[0].List(ctx, prefix)
}

// Close closes every backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, backend := range b.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return omnifile.ErrBackendClosed
	}
	return nil
}

// mirrorWriter writes to multiple underlying writers.
type mirrorWriter struct {
	writers []io.WriteCloser
	failed  []bool
	mode    WriteMode
	closed  bool
	mu      sync.Mutex
}

func (m *mirrorWriter) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, omnifile.ErrWriterClosed
	}
	if m.failed == nil {
		m.failed = make([]bool, len(m.writers))
	}

	var errs []error
	ok := 0
	for i, w := range m.writers {
		if m.failed[i] {
			continue
		}
		if _, err := w.Write(p); err != nil {
			if m.mode == WriteAll {
				return 0, err
			}
			m.failed[i] = true
			errs = append(errs, err)
			continue
		}
		ok++
	}

	if ok == 0 {
		return 0, errors.Join(errs...)
	}
	return len(p), nil
}

// Close closes every writer. In WriteBestEffort mode a close failure is
// reported only when no writer closed cleanly.
func (m *mirrorWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	ok := 0
	for i, w := range m.writers {
		err := w.Close()
		switch {
		case err != nil:
			errs = append(errs, err)
		case m.failed == nil || !m.failed[i]:
			ok++
		}
	}

	if m.mode == WriteBestEffort && ok > 0 {
		return nil
	}
	return errors.Join(errs...)
}

var _ omnifile.Backend = (*Backend)(nil)
