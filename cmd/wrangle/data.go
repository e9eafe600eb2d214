package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justapithecus/wrangle/wrangle"
	wrangles3 "github.com/justapithecus/wrangle/wrangle/s3"
)

const (
	formatParquet = "parquet"
	formatCSV     = "csv"
	formatJSONL   = "jsonl"
)

// -----------------------------------------------------------------------------
// Shared read and write flags
// -----------------------------------------------------------------------------

type readFlags struct {
	format    string
	byPrefix  bool
	dataset   bool
	columns   []string
	filters   []string
	delimiter string
}

func (r *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&r.format, "format", "f", formatParquet, "Source format (parquet, csv)")
	cmd.Flags().BoolVarP(&r.byPrefix, "prefix", "p", false, "Treat the argument as a prefix")
	cmd.Flags().BoolVar(&r.dataset, "dataset", false, "Read a hive-partitioned Parquet dataset")
	cmd.Flags().StringSliceVarP(&r.columns, "columns", "c", nil, "Columns to keep, in order")
	cmd.Flags().StringArrayVar(&r.filters, "filter", nil,
		`Row filter such as "year>=2020 && region in eu,us"; repeat to OR`)
	cmd.Flags().StringVar(&r.delimiter, "delimiter", ",", "CSV field delimiter")
}

func (r *readFlags) read(ctx context.Context, s *session, args []string) (*wrangle.Frame, error) {
	src, err := sourceFrom(args, r.byPrefix)
	if err != nil {
		return nil, err
	}
	filters, err := wrangle.ParseFilters(r.filters)
	if err != nil {
		return nil, err
	}

	switch r.format {
	case formatParquet:
		return s.client.ReadParquet(ctx, src, wrangles3.ParquetReadOptions{
			Filters:        filters,
			Columns:        r.columns,
			Dataset:        r.dataset,
			UseConcurrency: s.useConcurrency(),
		})
	case formatCSV:
		if r.dataset {
			return nil, fmt.Errorf("%w: --dataset applies to parquet only", wrangle.ErrInvalidArgumentCombination)
		}
		delim, err := delimiterRune(r.delimiter)
		if err != nil {
			return nil, err
		}
		f, err := s.client.ReadCSV(ctx, src, s.useConcurrency(), wrangle.CSVOptions{Delimiter: delim})
		if err != nil {
			return nil, err
		}
		if f, err = filters.Apply(f); err != nil {
			return nil, err
		}
		if len(r.columns) > 0 {
			return f.Select(r.columns...)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown source format %q", wrangle.ErrInvalidArgumentValue, r.format)
	}
}

func delimiterRune(s string) (rune, error) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("%w: delimiter must be one character, got %q", wrangle.ErrInvalidArgumentValue, s)
	}
	return runes[0], nil
}

type writeFlags struct {
	to            string
	format        string
	dataset       bool
	partitionCols []string
	mode          string
	compression   string
	index         bool
}

func (w *writeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&w.to, "to", "o", "", "Destination locator, or prefix with --to-dataset")
	cmd.Flags().StringVar(&w.format, "to-format", formatParquet, "Destination format (parquet, csv)")
	cmd.Flags().BoolVar(&w.dataset, "to-dataset", false, "Write a Parquet dataset of randomly named files under --to")
	cmd.Flags().StringSliceVar(&w.partitionCols, "partition-cols", nil, "Hive partition columns, in order")
	cmd.Flags().StringVar(&w.mode, "mode", "", "Dataset write mode (append, overwrite, partition_upsert)")
	cmd.Flags().StringVar(&w.compression, "compression", "", "Parquet compression (snappy, gzip, none)")
	cmd.Flags().BoolVar(&w.index, "index", false, "Write the row index as a column")
	_ = cmd.MarkFlagRequired("to")
}

func (w *writeFlags) write(ctx context.Context, s *session, f *wrangle.Frame) ([]string, error) {
	switch w.format {
	case formatParquet:
		return s.client.ToParquet(ctx, f, w.to, wrangles3.ParquetWriteOptions{
			Index:          w.index,
			Compression:    wrangle.Compression(w.compression),
			UseConcurrency: s.useConcurrency(),
			Dataset:        w.dataset,
			PartitionCols:  w.partitionCols,
			Mode:           wrangle.WriteMode(w.mode),
		})
	case formatCSV:
		if w.dataset || len(w.partitionCols) > 0 || w.mode != "" || w.compression != "" {
			return nil, fmt.Errorf("%w: dataset options apply to parquet only", wrangle.ErrInvalidArgumentCombination)
		}
		err := s.client.ToCSV(ctx, f, w.to, wrangle.CSVOptions{
			IncludeIndex: w.index,
			Compression:  wrangle.TextCompressionFor(w.to),
		})
		if err != nil {
			return nil, err
		}
		return []string{w.to}, nil
	default:
		return nil, fmt.Errorf("%w: unknown destination format %q", wrangle.ErrInvalidArgumentValue, w.format)
	}
}

func printWritten(cmd *cobra.Command, f *wrangle.Frame, paths []string) {
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	printSuccess(cmd.ErrOrStderr(), "Wrote %d rows to %d objects", f.NumRows(), len(paths))
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

func newCatCmd(s *session) *cobra.Command {
	var (
		rf     readFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "cat <s3://bucket/key>... | --prefix <s3://bucket/prefix>",
		Short: "Read objects into a table and print it",
		Long: `Reads Parquet or CSV objects, applies column projection and row filters,
and prints the combined table as CSV or JSON Lines.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var codec wrangle.Codec
			switch output {
			case formatCSV:
				c, err := wrangle.NewCSVCodec(wrangle.CSVOptions{})
				if err != nil {
					return err
				}
				codec = c
			case formatJSONL:
				codec = wrangle.NewJSONLCodec()
			default:
				return fmt.Errorf("%w: unknown output format %q", wrangle.ErrInvalidArgumentValue, output)
			}

			f, err := rf.read(cmd.Context(), s, args)
			if err != nil {
				return err
			}
			return codec.Encode(cmd.OutOrStdout(), f)
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&output, "output", formatCSV, "Output format (csv, jsonl)")
	return cmd
}

func newConvertCmd(s *session) *cobra.Command {
	var (
		rf readFlags
		wf writeFlags
	)
	cmd := &cobra.Command{
		Use:   "convert <s3://bucket/key>... | --prefix <s3://bucket/prefix>",
		Short: "Rewrite objects in another format or layout",
		Long: `Reads Parquet or CSV objects and writes them back to --to, optionally as a
hive-partitioned Parquet dataset.`,
		Example: `  wrangle convert -f csv -p s3://raw/events/ \
    --to s3://lake/events --to-dataset --partition-cols year,region --mode partition_upsert`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := rf.read(cmd.Context(), s, args)
			if err != nil {
				return err
			}
			paths, err := wf.write(cmd.Context(), s, f)
			if err != nil {
				return err
			}
			printWritten(cmd, f, paths)
			return nil
		},
	}
	rf.register(cmd)
	wf.register(cmd)
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	var (
		wf        writeFlags
		delimiter string
	)
	cmd := &cobra.Command{
		Use:   "import <local-file>",
		Short: "Upload a local CSV or JSON Lines file as Parquet or CSV",
		Long: `Reads a local .csv or .jsonl/.ndjson file (optionally .gz or .zst
compressed) and writes it to --to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readLocal(args[0], delimiter)
			if err != nil {
				return err
			}
			paths, err := wf.write(cmd.Context(), s, f)
			if err != nil {
				return err
			}
			printWritten(cmd, f, paths)
			return nil
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "CSV field delimiter")
	return cmd
}

// readLocal decodes a local file, choosing the codec from its extension.
func readLocal(path, delimiter string) (*wrangle.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	compression := wrangle.TextCompressionFor(path)
	name := strings.TrimSuffix(path, compression.Extension())

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".jsonl", ".ndjson":
		zr, err := compression.Decompress(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = zr.Close() }()
		return wrangle.NewJSONLCodec().Decode(zr)
	case ".csv", ".tsv", ".txt":
		delim, err := delimiterRune(delimiter)
		if err != nil {
			return nil, err
		}
		codec, err := wrangle.NewCSVCodec(wrangle.CSVOptions{Delimiter: delim, Compression: compression})
		if err != nil {
			return nil, err
		}
		return codec.Decode(file)
	default:
		return nil, fmt.Errorf("%w: cannot infer format of %s", wrangle.ErrInvalidArgumentValue, path)
	}
}
