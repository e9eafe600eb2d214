// Package wrangle moves tabular data between object storage and an in-memory
// columnar Frame.
//
// The package owns the storage-agnostic pieces: the Frame itself, the Parquet
// and delimited-text codecs, hive-style partition paths, row filters, and the
// ordered batch executor used to fan out per-object requests. Object store
// bindings live in sub-packages (see wrangle/s3).
package wrangle

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values. Operations wrap these with context; use errors.Is.
var (
	// ErrInvalidArgument indicates a malformed argument, such as a locator
	// without a bucket or key.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidArgumentType indicates the wrong shape for a polymorphic
	// input, such as an empty prefix-or-list source.
	ErrInvalidArgumentType = errors.New("invalid argument type")

	// ErrInvalidArgumentValue indicates an unrecognized enum value or a
	// reference to a column that does not exist.
	ErrInvalidArgumentValue = errors.New("invalid argument value")

	// ErrInvalidArgumentCombination indicates arguments that cannot be used
	// together, such as partition columns without dataset mode.
	ErrInvalidArgumentCombination = errors.New("invalid argument combination")

	// ErrInvalidCompression indicates an unrecognized compression kind.
	ErrInvalidCompression = errors.New("invalid compression")

	// ErrSchemaViolation indicates data that does not fit a frame schema.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrInvalidFormat indicates a file that could not be decoded.
	ErrInvalidFormat = errors.New("invalid format")
)

// -----------------------------------------------------------------------------
// Write mode
// -----------------------------------------------------------------------------

// WriteMode governs pre-write cleanup when writing a dataset.
type WriteMode string

// Recognized write modes. The empty mode means "not supplied"; dataset
// writes treat it as ModeAppend.
const (
	// ModeAppend adds new files and never deletes.
	ModeAppend WriteMode = "append"

	// ModeOverwrite deletes everything under the target prefix first.
	ModeOverwrite WriteMode = "overwrite"

	// ModePartitionUpsert deletes only the partitions being written, or the
	// whole prefix when there are no partition columns.
	ModePartitionUpsert WriteMode = "partition_upsert"
)

// ParseWriteMode validates s as a write mode.
func ParseWriteMode(s string) (WriteMode, error) {
	switch m := WriteMode(s); m {
	case ModeAppend, ModeOverwrite, ModePartitionUpsert:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q is an invalid mode, use append, overwrite or partition_upsert",
			ErrInvalidArgumentValue, s)
	}
}

// -----------------------------------------------------------------------------
// Compression
// -----------------------------------------------------------------------------

// Compression is the internal compression of a written Parquet file.
type Compression string

// Supported Parquet compression kinds.
const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionSnappy Compression = "snappy"
)

// DefaultCompression is used when no compression is supplied.
const DefaultCompression = CompressionSnappy

// ParseCompression validates s as a compression kind. The empty string
// resolves to DefaultCompression.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return DefaultCompression, nil
	case CompressionNone, CompressionGzip, CompressionSnappy:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q is invalid, use none, snappy or gzip", ErrInvalidCompression, s)
	}
}

// Extension returns the file-name suffix placed before ".parquet".
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionSnappy:
		return ".snappy"
	default:
		return ""
	}
}
