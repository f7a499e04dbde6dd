package geo

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Open opens a local gazetteer or country-info file. Paths ending in ".gz"
// are transparently decompressed.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	rc, err := Decompress(path, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return rc, nil
}

// Decompress wraps rc in a gzip reader when name ends in ".gz". Closing the
// result closes rc.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	if !strings.HasSuffix(name, ".gz") {
		return rc, nil
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("gzip %s: %w", name, err)
	}
	return &gzipReadCloser{Reader: zr, underlying: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return zerr
}
