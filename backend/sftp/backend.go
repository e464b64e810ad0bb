// Package sftp provides an SFTP backend for omnifile.
//
// Basic usage with key authentication and host key verification:
//
//	backend, err := sftp.New(sftp.Config{
//	    Host:           "seq.example.org",
//	    User:           "pipeline",
//	    KeyFile:        "/home/pipeline/.ssh/id_ed25519",
//	    KnownHostsFile: "/home/pipeline/.ssh/known_hosts",
//	    Root:           "/data/runs",
//	})
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/grokify/omnifile"
)

func init() {
	omnifile.Register("sftp", NewFromConfig)
}

// Backend implements omnifile.Backend over an SFTP session.
type Backend struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	config     Config
	closed     bool
	mu         sync.RWMutex
}

// New dials the server and opens an SFTP session.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sshConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("sftp: SSH connection failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		if closeErr := sshClient.Close(); closeErr != nil {
			return nil, fmt.Errorf("sftp: SFTP session failed: %w (also failed to close SSH: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("sftp: SFTP session failed: %w", err)
	}

	return &Backend{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		config:     cfg,
	}, nil
}

// NewFromConfig creates a new SFTP backend from a config map.
// See ConfigFromMap for the supported keys.
func NewFromConfig(configMap map[string]string) (omnifile.Backend, error) {
	return New(ConfigFromMap(configMap))
}

// clientConfig builds the SSH client configuration for cfg.
func clientConfig(cfg Config) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if cfg.Password != "" {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}

	if cfg.KeyFile != "" {
		keyAuth, err := keyFileAuth(cfg.KeyFile, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("sftp: loading key file: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if len(authMethods) == 0 {
		return nil, ErrAuthRequired
	}

	hostKeyCallback, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		Timeout:         cfg.Timeout,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

// hostKeyCallback verifies against knownHostsFile, or accepts any host key
// when it is empty.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // G106: opt-in via KnownHostsFile
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sftp: loading known hosts: %w", err)
	}
	return cb, nil
}

// keyFileAuth creates an SSH auth method from a private key file.
func keyFileAuth(keyFile, passphrase string) (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// NewWriter creates or truncates the remote file at p.
// Parent directories are created as needed.
func (b *Backend) NewWriter(ctx context.Context, p string, _ ...omnifile.WriterOption) (io.WriteCloser, error) {
	if err := b.check(ctx, p); err != nil {
		return nil, err
	}

	fullPath := b.fullPath(p)

	if err := b.sftpClient.MkdirAll(path.Dir(fullPath)); err != nil {
		return nil, fmt.Errorf("sftp: creating directory: %w", err)
	}

	f, err := b.sftpClient.Create(fullPath)
	if err != nil {
		return nil, b.translateError(err, p)
	}

	return f, nil
}

// NewReader opens the remote file at p.
func (b *Backend) NewReader(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := b.check(ctx, p); err != nil {
		return nil, err
	}

	f, err := b.sftpClient.Open(b.fullPath(p))
	if err != nil {
		return nil, b.translateError(err, p)
	}

	return f, nil
}

// Exists checks if a path exists.
func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	if err := b.check(ctx, p); err != nil {
		return false, err
	}

	_, err := b.sftpClient.Stat(b.fullPath(p))
	if err != nil {
		err = b.translateError(err, p)
		if errors.Is(err, omnifile.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Delete removes a file. Deleting a missing file is not an error.
func (b *Backend) Delete(ctx context.Context, p string) error {
	if err := b.check(ctx, p); err != nil {
		return err
	}

	err := b.sftpClient.Remove(b.fullPath(p))
	if err != nil {
		err = b.translateError(err, p)
		if errors.Is(err, omnifile.ErrNotFound) {
			return nil
		}
		return err
	}

	return nil
}

// List returns the files under prefix, relative to Root.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := []string{}
	walker := b.sftpClient.Walk(b.fullPath(prefix))
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := walker.Err(); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, b.translateError(err, prefix)
		}
		if walker.Stat().IsDir() {
			continue
		}
		paths = append(paths, b.relativePath(walker.Path()))
	}

	return paths, nil
}

// Close ends the SFTP session and the SSH connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if b.sftpClient != nil {
		if err := b.sftpClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.sshClient != nil {
		if err := b.sshClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fullPath returns the full remote path.
func (b *Backend) fullPath(p string) string {
	if b.config.Root == "" {
		return p
	}
	return path.Join(b.config.Root, p)
}

// relativePath strips Root from a remote path.
func (b *Backend) relativePath(p string) string {
	rel := strings.TrimPrefix(p, b.config.Root)
	return strings.TrimPrefix(rel, "/")
}

func (b *Backend) check(ctx context.Context, p string) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == "" {
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

// translateError converts SFTP errors to omnifile sentinels.
func (b *Backend) translateError(err error, p string) error {
	if err == nil {
		return nil
	}

	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return fmt.Errorf("%w: %s", omnifile.ErrNotFound, p)
		case sftp.ErrSSHFxPermissionDenied:
			return fmt.Errorf("%w: %s", omnifile.ErrPermissionDenied, p)
		}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", omnifile.ErrNotFound, p)
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", omnifile.ErrPermissionDenied, p)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("sftp: network error for %q: %w", p, err)
	}

	return fmt.Errorf("sftp: error for %q: %w", p, err)
}

var _ omnifile.Backend = (*Backend)(nil)
