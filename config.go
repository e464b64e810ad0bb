package omnifile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/grokify/omnifile/compress/gzip"
)

const (
	// DefaultCompressionLevel is the gzip level used by DefaultConfig.
	DefaultCompressionLevel = 5

	// DefaultBufferSize is the buffer size used by DefaultConfig.
	DefaultBufferSize = 64 * 1024 // 64KB
)

// Config controls how streams are constructed.
// A Config holds no handles and may be shared by any number of opens.
type Config struct {
	// CompressionLevel is the gzip level used when writing ".gz"/".bgz" paths,
	// from gzip.StatelessCompression (-3) to gzip.BestCompression (9).
	//
	// It does not apply to zstd: ".zst" paths are always written at the
	// zstd codec's default level.
	CompressionLevel int

	// BufferSize is the size in bytes of each buffering layer.
	BufferSize int
}

// DefaultConfig returns the default configuration: gzip level 5, 64KB buffers.
func DefaultConfig() Config {
	return Config{
		CompressionLevel: DefaultCompressionLevel,
		BufferSize:       DefaultBufferSize,
	}
}

// ConfigFromEnv returns DefaultConfig overlaid with environment variables.
// Environment variables:
//   - OMNIFILE_COMPRESSION_LEVEL: gzip compression level
//   - OMNIFILE_BUFFER_SIZE: buffer size in bytes
//
// Unparseable values are ignored; Validate catches out-of-range ones.
func ConfigFromEnv() Config {
	config := DefaultConfig()

	if v := os.Getenv("OMNIFILE_COMPRESSION_LEVEL"); v != "" {
		if level, err := strconv.Atoi(v); err == nil {
			config.CompressionLevel = level
		}
	}
	if v := os.Getenv("OMNIFILE_BUFFER_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			config.BufferSize = size
		}
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer size must be positive, got %d", ErrInvalidConfig, c.BufferSize)
	}
	if !gzip.CompressionLevel(c.CompressionLevel).Valid() {
		return fmt.Errorf("%w: compression level %d out of range [%d, %d]",
			ErrInvalidConfig, c.CompressionLevel, gzip.StatelessCompression, gzip.BestCompression)
	}
	return nil
}
