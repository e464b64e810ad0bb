package stream

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 used for content verification, not security
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// HashType names a digest algorithm for Checksum.
type HashType string

const (
	HashMD5    HashType = "md5"
	HashSHA256 HashType = "sha256"
	HashCRC32C HashType = "crc32c"
)

// ErrUnsupportedHash is returned for an unknown HashType.
var ErrUnsupportedHash = errors.New("stream: unsupported hash type")

// SupportedHashes returns all supported hash types.
func SupportedHashes() []HashType {
	return []HashType{HashMD5, HashSHA256, HashCRC32C}
}

func newHash(t HashType) (hash.Hash, error) {
	switch t {
	case HashMD5:
		return md5.New(), nil //nolint:gosec // MD5 used for content verification
	case HashSHA256:
		return sha256.New(), nil
	case HashCRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, t)
	}
}

// Checksum returns the hex digest of the decoded content of path.
// The same content stored plain, as gzip or as zstd has the same checksum.
func (g *Gateway) Checksum(ctx context.Context, path string, t HashType) (string, error) {
	h, err := newHash(t)
	if err != nil {
		return "", err
	}

	err = g.WithReader(ctx, path, func(r *Reader) error {
		_, err := io.Copy(h, r)
		return err
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
