package sftp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Errors specific to the SFTP backend.
var (
	ErrHostRequired         = errors.New("sftp: host is required")
	ErrUserRequired         = errors.New("sftp: user is required")
	ErrAuthRequired         = errors.New("sftp: password or key_file is required")
	ErrPassphraseWithoutKey = errors.New("sftp: key_passphrase set without key_file")
)

// Config holds configuration for the SFTP backend.
type Config struct {
	Host string
	Port int
	User string

	// Password and KeyFile are both offered to the server when set; at
	// least one is required. KeyPassphrase decrypts KeyFile.
	Password      string
	KeyFile       string
	KeyPassphrase string

	// Root is the remote directory that paths are resolved against.
	Root string

	// KnownHostsFile is an OpenSSH known_hosts file. Empty disables host
	// key verification.
	KnownHostsFile string

	// Timeout bounds the TCP connect and SSH handshake.
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:    22,
		Timeout: 30 * time.Second,
	}
}

// keys maps ConfigFromMap keys to setters. The environment variable for a
// key is OMNIFILE_SFTP_ followed by the upper-cased key.
var keys = map[string]func(*Config, string){
	"host":           func(c *Config, v string) { c.Host = v },
	"port":           func(c *Config, v string) { c.Port = positive(v, c.Port) },
	"user":           func(c *Config, v string) { c.User = v },
	"password":       func(c *Config, v string) { c.Password = v },
	"key_file":       func(c *Config, v string) { c.KeyFile = expandHome(v) },
	"key_passphrase": func(c *Config, v string) { c.KeyPassphrase = v },
	"root":           func(c *Config, v string) { c.Root = v },
	"known_hosts":    func(c *Config, v string) { c.KnownHostsFile = expandHome(v) },
	"timeout":        func(c *Config, v string) { c.Timeout = parseTimeout(v, c.Timeout) },
}

// positive parses v as a positive integer, returning def otherwise.
func positive(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

// parseTimeout accepts a duration such as "10s" or a bare number of seconds.
func parseTimeout(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n := positive(v, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// ConfigFromEnv creates a Config from OMNIFILE_SFTP_HOST, OMNIFILE_SFTP_PORT,
// OMNIFILE_SFTP_USER, OMNIFILE_SFTP_PASSWORD, OMNIFILE_SFTP_KEY_FILE,
// OMNIFILE_SFTP_KEY_PASSPHRASE, OMNIFILE_SFTP_ROOT, OMNIFILE_SFTP_KNOWN_HOSTS
// and OMNIFILE_SFTP_TIMEOUT. Empty variables are ignored.
func ConfigFromEnv() Config {
	config := DefaultConfig()
	for key, set := range keys {
		if v := os.Getenv("OMNIFILE_SFTP_" + strings.ToUpper(key)); v != "" {
			set(&config, v)
		}
	}
	return config
}

// ConfigFromMap creates a Config from a string map. Keys are host, port,
// user, password (or pass), key_file, key_passphrase, root, known_hosts
// and timeout. Paths may start with "~/". Unparsable numbers keep the
// default.
func ConfigFromMap(m map[string]string) Config {
	config := DefaultConfig()
	if v, ok := m["pass"]; ok {
		keys["password"](&config, v)
	}
	for key, set := range keys {
		if v, ok := m[key]; ok {
			set(&config, v)
		}
	}
	return config
}

// Validate checks the configuration without dialing. Key and known_hosts
// files must be readable.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}
	if c.User == "" {
		return ErrUserRequired
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("sftp: invalid port %d", c.Port)
	}
	if c.Password == "" && c.KeyFile == "" {
		return ErrAuthRequired
	}
	if c.KeyPassphrase != "" && c.KeyFile == "" {
		return ErrPassphraseWithoutKey
	}
	if err := checkFile("key_file", c.KeyFile); err != nil {
		return err
	}
	return checkFile("known_hosts", c.KnownHostsFile)
}

// checkFile reports an error unless p is empty or a regular file.
func checkFile(key, p string) error {
	if p == "" {
		return nil
	}
	fi, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("sftp: %s: %w", key, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("sftp: %s: %s is not a regular file", key, p)
	}
	return nil
}
