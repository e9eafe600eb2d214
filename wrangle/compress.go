package wrangle

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// TextCompression is the stream compression applied to a whole delimited
// text object. Parquet files compress internally; see Compression.
type TextCompression string

// Supported text compression kinds.
const (
	TextCompressionNone TextCompression = "none"
	TextCompressionGzip TextCompression = "gzip"
	TextCompressionZstd TextCompression = "zstd"
)

// ParseTextCompression validates s. The empty string means no compression.
func ParseTextCompression(s string) (TextCompression, error) {
	switch c := TextCompression(s); c {
	case "", TextCompressionNone:
		return TextCompressionNone, nil
	case TextCompressionGzip, TextCompressionZstd:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q is invalid, use none, gzip or zstd", ErrInvalidCompression, s)
	}
}

// TextCompressionFor infers the compression of an object from its key suffix.
func TextCompressionFor(key string) TextCompression {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return TextCompressionGzip
	case strings.HasSuffix(key, ".zst"):
		return TextCompressionZstd
	default:
		return TextCompressionNone
	}
}

// Extension returns the conventional key suffix.
func (c TextCompression) Extension() string {
	switch c {
	case TextCompressionGzip:
		return ".gz"
	case TextCompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// Compress wraps w. The caller must Close the returned writer to flush the
// stream; closing does not close w.
func (c TextCompression) Compress(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case TextCompressionGzip:
		return gzip.NewWriter(w), nil
	case TextCompressionZstd:
		return zstd.NewWriter(w)
	case "", TextCompressionNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCompression, string(c))
	}
}

// Decompress wraps r.
func (c TextCompression) Decompress(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case TextCompressionGzip:
		return gzip.NewReader(r)
	case TextCompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	case "", TextCompressionNone:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCompression, string(c))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
