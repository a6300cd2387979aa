package imaging

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Format is the compression format of an image file.
type Format int

const (
	FormatNone Format = iota
	FormatGzip
	FormatXZ
	FormatZstd
	FormatBzip2
)

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatXZ:
		return "xz"
	case FormatZstd:
		return "zstd"
	case FormatBzip2:
		return "bzip2"
	default:
		return "none"
	}
}

// Extension returns the canonical file suffix for the format.
func (f Format) Extension() string {
	switch f {
	case FormatGzip:
		return ".gz"
	case FormatXZ:
		return ".xz"
	case FormatZstd:
		return ".zst"
	case FormatBzip2:
		return ".bz2"
	default:
		return ""
	}
}

// DetectFormat selects a format from the file name suffix, case-insensitively.
// Unknown suffixes (or none) mean a raw image.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return FormatGzip
	case ".xz":
		return FormatXZ
	case ".zst", ".zstd":
		return FormatZstd
	case ".bz2", ".bzip2":
		return FormatBzip2
	default:
		return FormatNone
	}
}

// newDecoder wraps r in a streaming decoder for f. The returned closer
// releases decoder resources; it does not close r.
func newDecoder(f Format, r io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReader(r)
	switch f {
	case FormatGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr, nil
	case FormatXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return xr, nopCloser{}, nil
	case FormatZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, closerFunc(zr.Close), nil
	case FormatBzip2:
		bz, err := bzip2.NewReader(br, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, nil, err
		}
		return bz, bz, nil
	default:
		return nil, nil, fmt.Errorf("no decoder for format %s", f)
	}
}

// newEncoder wraps w in a streaming encoder for f. Closing the returned
// writer flushes the stream trailer but does not close w.
func newEncoder(f Format, w io.Writer) (io.WriteCloser, error) {
	switch f {
	case FormatGzip:
		return gzip.NewWriter(w), nil
	case FormatXZ:
		return xz.NewWriter(w)
	case FormatZstd:
		return zstd.NewWriter(w)
	case FormatBzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{})
	default:
		return nil, fmt.Errorf("no encoder for format %s", f)
	}
}

type closerFunc func()

func (c closerFunc) Close() error {
	c()
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// countingWriter tracks how many bytes reached the underlying writer.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
