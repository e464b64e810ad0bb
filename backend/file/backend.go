// Package file provides the local filesystem backend for omnifile.
//
// With an empty Root, paths are used exactly as given (absolute, or
// relative to the working directory), which is how the stream package
// uses it by default. With a Root, paths are relative to it and may not
// escape it.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grokify/omnifile"
)

func init() {
	omnifile.Register("file", NewFromConfig)
}

// Config holds configuration for the file backend.
type Config struct {
	// Root is the base directory. Empty means paths are used verbatim.
	Root string

	// CreateDirs creates missing parent directories on write.
	// When false, writing below a missing directory fails.
	CreateDirs bool

	// DirPermissions is the permission mode for created directories.
	// Default: 0755
	DirPermissions os.FileMode

	// FilePermissions is the permission mode for created files.
	// Default: 0644
	FilePermissions os.FileMode
}

// DefaultConfig returns the configuration used by the stream package:
// verbatim paths and no directory creation.
func DefaultConfig() Config {
	return Config{
		DirPermissions:  0755,
		FilePermissions: 0644,
	}
}

// Backend implements omnifile.Backend for the local filesystem.
type Backend struct {
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates a new file backend with the given configuration.
func New(config Config) *Backend {
	if config.DirPermissions == 0 {
		config.DirPermissions = 0755
	}
	if config.FilePermissions == 0 {
		config.FilePermissions = 0644
	}
	return &Backend{
		config: config,
	}
}

// NewFromConfig creates a new file backend from a config map.
// Supported keys:
//   - root: base directory (default: none, paths used verbatim)
//   - create_dirs: "true" to create missing parent directories
func NewFromConfig(configMap map[string]string) (omnifile.Backend, error) {
	config := DefaultConfig()

	if root, ok := configMap["root"]; ok {
		config.Root = root
	}
	if createDirs, ok := configMap["create_dirs"]; ok {
		config.CreateDirs = createDirs == "true" || createDirs == "1"
	}

	return New(config), nil
}

// NewWriter creates or truncates the file at path.
func (b *Backend) NewWriter(ctx context.Context, path string, _ ...omnifile.WriterOption) (io.WriteCloser, error) {
	fullPath, err := b.resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	if b.config.CreateDirs {
		dir := filepath.Dir(fullPath)
		if err := os.MkdirAll(dir, b.config.DirPermissions); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, b.config.FilePermissions)
	if err != nil {
		return nil, translateError(err, path)
	}

	return f, nil
}

// NewReader opens the file at path.
func (b *Backend) NewReader(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := b.resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, translateError(err, path)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, translateError(err, path)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("cannot read directory: %s", path)
	}

	return f, nil
}

// Exists checks if a path exists.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	fullPath, err := b.resolve(ctx, path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, translateError(err, path)
}

// Delete removes a path.
func (b *Backend) Delete(ctx context.Context, path string) error {
	fullPath, err := b.resolve(ctx, path)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return translateError(err, path)
}

// List lists files under prefix. With an empty prefix the whole root
// (or the working directory, when Root is empty) is walked.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := b.config.Root
	if base == "" {
		base = "."
	}
	start := base
	if prefix != "" {
		start = b.fullPath(prefix)
	}

	var paths []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	return paths, nil
}

// Close marks the backend closed. Open files are unaffected.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// resolve runs the common checks and returns the filesystem path.
func (b *Backend) resolve(ctx context.Context, path string) (string, error) {
	if err := b.checkClosed(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.validatePath(path); err != nil {
		return "", err
	}
	return b.fullPath(path), nil
}

// fullPath returns the filesystem path for path.
func (b *Backend) fullPath(path string) string {
	path = filepath.FromSlash(path)
	if b.config.Root == "" {
		return path
	}
	return filepath.Join(b.config.Root, path)
}

// validatePath rejects empty paths and, under a Root, traversal outside it.
func (b *Backend) validatePath(path string) error {
	if path == "" {
		return omnifile.ErrInvalidPath
	}
	if b.config.Root == "" {
		return nil
	}

	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return omnifile.ErrInvalidPath
	}
	return nil
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

// translateError maps os errors onto omnifile sentinels, keeping the cause.
func translateError(err error, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %v", omnifile.ErrNotFound, path, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %v", omnifile.ErrPermissionDenied, path, err)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}

var _ omnifile.Backend = (*Backend)(nil)
