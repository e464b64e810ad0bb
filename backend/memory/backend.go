// Package memory provides an in-memory backend for omnifile.
//
// Objects live in a map guarded by a mutex and disappear when the process
// exits. A writer's bytes become visible to readers only when it is closed,
// so an unfinished compressed stream is never observable.
package memory

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/grokify/omnifile"
)

func init() {
	omnifile.Register("memory", NewFromConfig)
}

// object represents a stored object in memory.
type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// Backend implements omnifile.Backend in memory.
type Backend struct {
	objects map[string]*object
	closed  bool
	mu      sync.RWMutex
}

// New creates a new memory backend.
func New() *Backend {
	return &Backend{
		objects: make(map[string]*object),
	}
}

// NewFromConfig creates a new memory backend. The config map is ignored.
func NewFromConfig(_ map[string]string) (omnifile.Backend, error) {
	return New(), nil
}

// NewWriter creates a writer that replaces the object at p on Close.
func (b *Backend) NewWriter(ctx context.Context, p string, opts ...omnifile.WriterOption) (io.WriteCloser, error) {
	key, err := b.check(ctx, p)
	if err != nil {
		return nil, err
	}

	config := omnifile.ApplyWriterOptions(opts...)

	return &memoryWriter{
		backend:     b,
		path:        key,
		contentType: config.ContentType,
		metadata:    config.Metadata,
	}, nil
}

// NewReader returns a reader over a snapshot of the object at p.
func (b *Backend) NewReader(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := b.check(ctx, p)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	obj, exists := b.objects[key]
	b.mu.RUnlock()

	if !exists {
		return nil, omnifile.ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Exists checks if a path exists.
func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	key, err := b.check(ctx, p)
	if err != nil {
		return false, err
	}

	b.mu.RLock()
	_, exists := b.objects[key]
	b.mu.RUnlock()

	return exists, nil
}

// Delete removes a path.
func (b *Backend) Delete(ctx context.Context, p string) error {
	key, err := b.check(ctx, p)
	if err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()

	return nil
}

// List returns the sorted paths starting with prefix.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalPrefix := normalizePath(prefix)

	b.mu.RLock()
	defer b.mu.RUnlock()

	paths := []string{}
	for p := range b.objects {
		if strings.HasPrefix(p, normalPrefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Close drops all objects.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.objects = make(map[string]*object)
	return nil
}

// Bytes returns a copy of the stored bytes at p. Used by tests to inspect
// the physical (possibly compressed) content.
func (b *Backend) Bytes(p string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[normalizePath(p)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

// ContentType returns the content type recorded for p.
func (b *Backend) ContentType(p string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if obj, ok := b.objects[normalizePath(p)]; ok {
		return obj.contentType
	}
	return ""
}

// check runs the common checks and returns the storage key.
func (b *Backend) check(ctx context.Context, p string) (string, error) {
	if err := b.checkClosed(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validatePath(p); err != nil {
		return "", err
	}
	return normalizePath(p), nil
}

// checkClosed returns an error if the backend is closed.
func (b *Backend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return omnifile.ErrBackendClosed
	}
	return nil
}

// validatePath checks if a path is valid.
func validatePath(p string) error {
	if p == "" {
		return omnifile.ErrInvalidPath
	}

	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return omnifile.ErrInvalidPath
	}

	return nil
}

// normalizePath cleans p and strips the leading slash.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean(p), "/")
	if p == "." {
		return ""
	}
	return p
}

// memoryWriter buffers until Close.
type memoryWriter struct {
	backend     *Backend
	path        string
	buffer      bytes.Buffer
	contentType string
	metadata    map[string]string
	closed      bool
	mu          sync.Mutex
}

func (w *memoryWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, omnifile.ErrWriterClosed
	}

	return w.buffer.Write(p)
}

func (w *memoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()

	if w.backend.closed {
		return omnifile.ErrBackendClosed
	}

	w.backend.objects[w.path] = &object{
		data:        w.buffer.Bytes(),
		contentType: w.contentType,
		metadata:    w.metadata,
	}

	return nil
}

var _ omnifile.Backend = (*Backend)(nil)
