package omnifile

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Compression is the encoding of a file's bytes, decided by its extension.
type Compression int

const (
	// PlainText files are read and written as-is.
	PlainText Compression = iota
	// Gzip files use the gzip container; reads accept concatenated members.
	Gzip
	// Zstd files use zstd frames.
	Zstd
)

// Recognized extensions, matched case-sensitively against the final
// extension of a path.
var (
	gzipExtensions  = []string{"gz", "bgz"}
	zstdExtensions  = []string{"zst"}
	fastqExtensions = []string{"fastq", "fq"}
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "plain"
	}
}

// Extension returns the canonical extension without the dot, or "" for PlainText.
func (c Compression) Extension() string {
	switch c {
	case Gzip:
		return "gz"
	case Zstd:
		return "zst"
	default:
		return ""
	}
}

// ContentType returns the MIME type hint handed to backends on write.
func (c Compression) ContentType() string {
	switch c {
	case Gzip:
		return "application/gzip"
	case Zstd:
		return "application/zstd"
	default:
		return "text/plain"
	}
}

// Classify returns the compression implied by p's extension.
// It never touches the filesystem.
func Classify(p string) Compression {
	switch ext := Extension(p); {
	case slices.Contains(gzipExtensions, ext):
		return Gzip
	case slices.Contains(zstdExtensions, ext):
		return Zstd
	default:
		return PlainText
	}
}

// Extension returns the final extension of p's last element without the dot.
// A name whose only dot is the leading one, like ".gz", has no extension.
func Extension(p string) string {
	name := filepath.Base(p)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i+1:]
}

// IsGzipPath returns true if p ends with a recognized gzip extension.
func IsGzipPath(p string) bool {
	return slices.Contains(gzipExtensions, Extension(p))
}

// IsZstdPath returns true if p ends with a recognized zstd extension.
func IsZstdPath(p string) bool {
	return slices.Contains(zstdExtensions, Extension(p))
}

// IsFastqPath returns true if p ends with a recognized FASTQ extension.
// A compressed FASTQ such as "reads.fq.gz" is a gzip path, not a FASTQ path.
func IsFastqPath(p string) bool {
	return slices.Contains(fastqExtensions, Extension(p))
}

// ParseCompression returns the Compression named by String, e.g. "zstd".
func ParseCompression(name string) (Compression, error) {
	for _, c := range []Compression{PlainText, Gzip, Zstd} {
		if c.String() == name {
			return c, nil
		}
	}
	return PlainText, fmt.Errorf("unknown compression %q: want plain, gzip or zstd", name)
}

// ReplaceCompression swaps the compression extension of p for c's canonical
// one. "reads.fq.gz" with Zstd becomes "reads.fq.zst"; with PlainText it
// becomes "reads.fq".
func ReplaceCompression(p string, c Compression) string {
	if Classify(p) != PlainText {
		p = strings.TrimSuffix(p, "."+Extension(p))
	}
	if ext := c.Extension(); ext != "" {
		p += "." + ext
	}
	return p
}
