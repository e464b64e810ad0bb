package stream

import (
	"context"
	"io"
)

// Copy streams the decoded content of srcPath on src into dstPath on dst,
// encoding it per dstPath's extension. src and dst may use different
// backends, so Copy also moves data between storage systems.
//
// Copy returns the number of uncompressed bytes copied. srcPath and dstPath
// must not name the same file.
func Copy(ctx context.Context, src *Gateway, srcPath string, dst *Gateway, dstPath string) (int64, error) {
	r, err := src.NewReader(ctx, srcPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	var n int64
	err = dst.WithWriter(ctx, dstPath, func(w *Writer) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	})
	if err != nil {
		return n, err
	}

	src.logger.Debug("copied",
		"src", srcPath,
		"dst", dstPath,
		"bytes", n)
	return n, r.Close()
}
