package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/justapithecus/wrangle/internal/metrics"
	"github.com/justapithecus/wrangle/wrangle"
)

// ParquetWriteOptions configures ToParquet.
type ParquetWriteOptions struct {
	// Index writes the frame index as a column.
	Index bool

	// Compression is the internal Parquet compression. Empty means snappy.
	Compression wrangle.Compression

	// UseConcurrency fans out partition writes and pre-write deletes.
	UseConcurrency bool

	// Dataset treats path as a prefix and writes randomly named files
	// under it. PartitionCols and Mode require it.
	Dataset bool

	// PartitionCols lays files out as col=value subdirectories, in order.
	PartitionCols []string

	// Mode governs pre-write cleanup. Empty means append.
	Mode wrangle.WriteMode
}

// ToParquet writes f as Parquet and returns the locators written.
//
// Without Dataset the single file is written at exactly path. With Dataset,
// path is a prefix and files are named <hex><ext>.parquet, optionally under
// hive partition directories. Overwrite (and partition_upsert without
// partition columns) deletes the prefix first; partition_upsert deletes only
// the partitions being written.
//
// A failing delete does not fall through to the write: the error is returned
// and nothing new is uploaded for that prefix or partition. Keys already
// deleted are not restored.
//
// Partition columns must leave at least one data column unless Index is set;
// otherwise ErrSchemaViolation is returned before any request.
func (c *Client) ToParquet(ctx context.Context, f *wrangle.Frame, path string, opts ParquetWriteOptions) ([]string, error) {
	compression, err := wrangle.ParseCompression(string(opts.Compression))
	if err != nil {
		return nil, err
	}
	codec, err := wrangle.NewParquetCodec(
		wrangle.WithParquetCompression(compression),
		wrangle.WithIndex(opts.Index),
	)
	if err != nil {
		return nil, err
	}

	if !opts.Dataset {
		if len(opts.PartitionCols) > 0 || opts.Mode != "" {
			return nil, fmt.Errorf("%w: partition columns and mode require dataset mode",
				wrangle.ErrInvalidArgumentCombination)
		}
		if _, _, err := ParseLocator(path); err != nil {
			return nil, err
		}
		if err := c.writeFrame(ctx, codec, f, path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	mode := opts.Mode
	if mode == "" {
		mode = wrangle.ModeAppend
	}
	if mode, err = wrangle.ParseWriteMode(string(mode)); err != nil {
		return nil, err
	}
	for _, col := range opts.PartitionCols {
		if _, ok := f.Column(col); !ok {
			return nil, fmt.Errorf("%w: partition column %q not found", wrangle.ErrInvalidArgumentValue, col)
		}
	}
	if f.Drop(opts.PartitionCols...).NumCols() == 0 && !opts.Index {
		return nil, fmt.Errorf("%w: partition columns leave no data columns to write",
			wrangle.ErrSchemaViolation)
	}
	prefix := withSlash(path)
	if _, _, err := parsePrefix(prefix); err != nil {
		return nil, err
	}
	suffix := compression.Extension() + ".parquet"

	if mode == wrangle.ModeOverwrite || (mode == wrangle.ModePartitionUpsert && len(opts.PartitionCols) == 0) {
		// Cleanup failure aborts before any upload.
		if err := c.Delete(ctx, Prefix(prefix), opts.UseConcurrency); err != nil {
			return nil, fmt.Errorf("s3: clear %s before write: %w", prefix, err)
		}
	}

	if len(opts.PartitionCols) == 0 {
		loc := prefix + c.newFileName() + suffix
		if err := c.writeFrame(ctx, codec, f, loc); err != nil {
			return nil, err
		}
		return []string{loc}, nil
	}

	groups, err := f.GroupBy(opts.PartitionCols...)
	if err != nil {
		return nil, err
	}
	return wrangle.Map(ctx, groups, opts.UseConcurrency, func(ctx context.Context, g wrangle.Group) (string, error) {
		subdir, err := wrangle.PartitionPath(opts.PartitionCols, g.Keys)
		if err != nil {
			return "", err
		}
		partPrefix := prefix + subdir + "/"
		if mode == wrangle.ModePartitionUpsert {
			// Cleanup failure skips this partition's upload.
			if err := c.Delete(ctx, Prefix(partPrefix), opts.UseConcurrency); err != nil {
				return "", fmt.Errorf("s3: clear partition %s: %w", partPrefix, err)
			}
		}
		loc := partPrefix + c.newFileName() + suffix
		if err := c.writeFrame(ctx, codec, g.Frame.Drop(opts.PartitionCols...), loc); err != nil {
			return "", err
		}
		return loc, nil
	})
}

// ToCSV writes f as delimited text at exactly path.
func (c *Client) ToCSV(ctx context.Context, f *wrangle.Frame, path string, opts wrangle.CSVOptions) error {
	if _, _, err := ParseLocator(path); err != nil {
		return err
	}
	codec, err := wrangle.NewCSVCodec(opts)
	if err != nil {
		return err
	}
	return c.writeFrame(ctx, codec, f, path)
}

// writeFrame encodes f in memory and uploads it to loc.
func (c *Client) writeFrame(ctx context.Context, codec wrangle.Codec, f *wrangle.Frame, loc string) error {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, f); err != nil {
		return fmt.Errorf("s3: encode %s: %w", loc, err)
	}
	return c.upload(ctx, loc, &buf)
}

func (c *Client) upload(ctx context.Context, loc string, buf *bytes.Buffer) error {
	bucket, key, err := ParseLocator(loc)
	if err != nil {
		return err
	}
	size := buf.Len()
	c.logger.DebugContext(ctx, "uploading object", "locator", loc, "bytes", size)

	start := time.Now()
	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	metrics.ObserveRequest("Upload", start, err)
	if err != nil {
		var mu manager.MultiUploadFailure
		if errors.As(err, &mu) {
			return fmt.Errorf("s3: upload %s (multipart %s): %w", loc, mu.UploadID(), err)
		}
		return fmt.Errorf("s3: upload %s: %w", loc, err)
	}
	metrics.ObjectsWrittenTotal.Inc()
	metrics.BytesWrittenTotal.Add(float64(size))
	return nil
}

// newHexName returns a random 32-character hex file name.
func newHexName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
