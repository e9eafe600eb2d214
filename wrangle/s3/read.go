package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/wrangle/internal/metrics"
	"github.com/justapithecus/wrangle/wrangle"
)

// ParquetReadOptions configures ReadParquet.
type ParquetReadOptions struct {
	// Filters keeps only matching rows. In dataset mode, filters that only
	// reference partition columns also skip whole files.
	Filters wrangle.Filters

	// Columns projects the result, in order. Empty keeps all columns.
	Columns []string

	// Dataset reads hive partition directories back as columns and skips
	// metadata files (names starting with "_" or ".").
	Dataset bool

	// UseConcurrency downloads files in parallel.
	UseConcurrency bool
}

// ReadCSV reads every object selected by src as delimited text and
// concatenates them in order. When opts.Compression is empty it is inferred
// per object from the key suffix.
func (c *Client) ReadCSV(ctx context.Context, src Source, useConcurrency bool, opts wrangle.CSVOptions) (*wrangle.Frame, error) {
	if _, err := wrangle.ParseTextCompression(string(opts.Compression)); err != nil {
		return nil, err
	}
	locators, err := c.expand(ctx, src)
	if err != nil {
		return nil, err
	}
	frames, err := wrangle.Map(ctx, locators, useConcurrency, func(ctx context.Context, loc string) (*wrangle.Frame, error) {
		fileOpts := opts
		if fileOpts.Compression == "" {
			fileOpts.Compression = wrangle.TextCompressionFor(loc)
		}
		codec, err := wrangle.NewCSVCodec(fileOpts)
		if err != nil {
			return nil, err
		}
		return c.readFrame(ctx, codec, loc)
	})
	if err != nil {
		return nil, err
	}
	return wrangle.Concat(frames...), nil
}

// ReadParquet reads Parquet files selected by src into one frame.
func (c *Client) ReadParquet(ctx context.Context, src Source, opts ParquetReadOptions) (*wrangle.Frame, error) {
	if err := opts.Filters.Validate(); err != nil {
		return nil, err
	}
	codec, err := wrangle.NewParquetCodec()
	if err != nil {
		return nil, err
	}

	var files []string
	var base string
	if opts.Dataset {
		files, base, err = c.datasetFiles(ctx, src)
	} else {
		files, err = c.expand(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	var parts *partitions
	if opts.Dataset {
		if parts, err = partitionsOf(files, base); err != nil {
			return nil, err
		}
		if len(opts.Filters) > 0 && len(parts.names) > 0 && opts.Filters.OnlyColumns(parts.names) {
			files, parts = parts.prune(files, opts.Filters)
			c.logger.DebugContext(ctx, "pruned dataset by partition", "files", len(files))
		}
	}

	type fileIndex struct {
		i   int
		loc string
	}
	items := make([]fileIndex, len(files))
	for i, loc := range files {
		items[i] = fileIndex{i: i, loc: loc}
	}
	frames, err := wrangle.Map(ctx, items, opts.UseConcurrency, func(ctx context.Context, it fileIndex) (*wrangle.Frame, error) {
		f, err := c.readFrame(ctx, codec, it.loc)
		if err != nil {
			return nil, err
		}
		if parts != nil {
			return parts.attach(f, it.i)
		}
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return wrangle.Concat(), nil
	}

	out := concatIndexed(frames)
	if out, err = opts.Filters.Apply(out); err != nil {
		return nil, err
	}
	if len(opts.Columns) > 0 {
		if out, err = out.Select(opts.Columns...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// concatIndexed concatenates frames and keeps their index labels when every
// frame carries a stored index.
func concatIndexed(frames []*wrangle.Frame) *wrangle.Frame {
	out := wrangle.Concat(frames...)
	var index []int64
	for _, f := range frames {
		if f.Index == nil {
			return out
		}
		index = append(index, f.Index...)
	}
	out.Index = index
	return out
}

// datasetFiles resolves a dataset source to data files and the base prefix
// partition directories are relative to. Explicit paths have no base; their
// partitions are read from the whole key.
func (c *Client) datasetFiles(ctx context.Context, src Source) ([]string, string, error) {
	if !src.IsPrefix() {
		files, err := c.expand(ctx, src)
		if err != nil {
			return nil, "", err
		}
		return files, "", nil
	}

	base := withSlash(src.prefix)
	listed, err := c.ListObjects(ctx, base)
	if err != nil {
		return nil, "", err
	}
	files := make([]string, 0, len(listed))
	for _, loc := range listed {
		if strings.HasSuffix(loc, "/") {
			continue
		}
		name := path.Base(loc)
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		files = append(files, loc)
	}
	return files, base, nil
}

// readFrame downloads loc and decodes it.
func (c *Client) readFrame(ctx context.Context, codec wrangle.Codec, loc string) (*wrangle.Frame, error) {
	data, err := c.download(ctx, loc)
	if err != nil {
		return nil, err
	}
	f, err := codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("s3: decode %s: %w", loc, err)
	}
	return f, nil
}

func (c *Client) download(ctx context.Context, loc string) ([]byte, error) {
	bucket, key, err := ParseLocator(loc)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	metrics.ObserveRequest("GetObject", start, err)
	if err != nil {
		return nil, fmt.Errorf("s3: get object %s: %w", loc, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read object %s: %w", loc, err)
	}
	metrics.BytesReadTotal.Add(float64(len(data)))
	return data, nil
}

// -----------------------------------------------------------------------------
// Partition columns
// -----------------------------------------------------------------------------

// partitions holds the hive partition values of each file, one typed
// column per partition name with one row per file.
type partitions struct {
	names []string
	frame *wrangle.Frame
}

// partitionsOf parses the k=v directories of each file below base. An empty
// base means the bucket root.
func partitionsOf(files []string, base string) (*partitions, error) {
	var names []string
	perFile := make([]map[string]any, len(files))
	for i, loc := range files {
		rel := strings.TrimPrefix(loc, base)
		if base == "" {
			_, key, err := ParseLocator(loc)
			if err != nil {
				return nil, err
			}
			rel = key
		}
		dir := ""
		if j := strings.LastIndex(rel, "/"); j >= 0 {
			dir = rel[:j]
		}
		fileNames, values := wrangle.PartitionValues(dir)
		perFile[i] = values
		for _, n := range fileNames {
			if !slices.Contains(names, n) {
				names = append(names, n)
			}
		}
	}

	cols := make([]*wrangle.Series, len(names))
	for i, name := range names {
		raw := make([]any, len(files))
		for f, values := range perFile {
			raw[f] = values[name]
		}
		cols[i] = wrangle.PartitionSeries(name, raw)
	}
	frame := wrangle.MustFrame(cols...)
	if len(cols) == 0 {
		frame.Index = make([]int64, len(files))
	}
	return &partitions{names: names, frame: frame}, nil
}

// prune drops files whose partition values fail fs.
func (p *partitions) prune(files []string, fs wrangle.Filters) ([]string, *partitions) {
	var keep []int
	for i := range files {
		if fs.Match(func(col string) (any, bool) {
			s, ok := p.frame.Column(col)
			if !ok {
				return nil, false
			}
			return s.Values[i], true
		}) {
			keep = append(keep, i)
		}
	}
	kept := make([]string, len(keep))
	for j, i := range keep {
		kept[j] = files[i]
	}
	return kept, &partitions{names: p.names, frame: p.frame.Take(keep)}
}

// attach appends file i's partition values to f as constant columns.
func (p *partitions) attach(f *wrangle.Frame, i int) (*wrangle.Frame, error) {
	n := f.NumRows()
	for _, s := range p.frame.Series() {
		vals := make([]any, n)
		for r := range vals {
			vals[r] = s.Values[i]
		}
		var err error
		f, err = f.WithColumn(&wrangle.Series{Name: s.Name, Kind: s.Kind, Values: vals})
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}
