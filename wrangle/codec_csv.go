package wrangle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVOptions configures delimited text encoding and decoding.
type CSVOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// NoHeader omits the header row on write. On read, columns are named
	// by position ("0", "1", ...).
	NoHeader bool

	// IncludeIndex writes the frame index as a leading IndexColumn column.
	// On read, an int64 IndexColumn column becomes the frame index.
	IncludeIndex bool

	// Compression wraps the whole stream. On read, an empty value is
	// inferred from the object key by the caller.
	Compression TextCompression

	// NullValue is the text written for null. Empty fields always read
	// back as null.
	NullValue string
}

// csvCodec implements Codec for delimited text.
type csvCodec struct {
	opts CSVOptions
}

// NewCSVCodec creates a delimited text codec.
func NewCSVCodec(opts CSVOptions) (Codec, error) {
	if _, err := ParseTextCompression(string(opts.Compression)); err != nil {
		return nil, err
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Delimiter == '\n' || opts.Delimiter == '\r' || opts.Delimiter == '"' {
		return nil, fmt.Errorf("%w: invalid delimiter %q", ErrInvalidArgumentValue, opts.Delimiter)
	}
	return &csvCodec{opts: opts}, nil
}

func (c *csvCodec) Name() string {
	return "csv"
}

func (c *csvCodec) Encode(w io.Writer, f *Frame) error {
	zw, err := c.opts.Compression.Compress(w)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(zw)
	cw.Comma = c.opts.Delimiter

	cols := f.Series()
	width := len(cols)
	if c.opts.IncludeIndex {
		width++
	}
	record := make([]string, width)

	if !c.opts.NoHeader {
		header := record[:0]
		if c.opts.IncludeIndex {
			header = append(header, IndexColumn)
		}
		for _, s := range cols {
			header = append(header, s.Name)
		}
		if err := cw.Write(header); err != nil {
			_ = zw.Close()
			return fmt.Errorf("csv: write header: %w", err)
		}
	}

	labels := f.IndexLabels()
	for r := 0; r < f.NumRows(); r++ {
		record = record[:0]
		if c.opts.IncludeIndex {
			record = append(record, strconv.FormatInt(labels[r], 10))
		}
		for _, s := range cols {
			v := s.Values[r]
			if v == nil {
				record = append(record, c.opts.NullValue)
				continue
			}
			record = append(record, formatValue(v))
		}
		if err := cw.Write(record); err != nil {
			_ = zw.Close()
			return fmt.Errorf("csv: write row %d: %w", r, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = zw.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return zw.Close()
}

func (c *csvCodec) Decode(r io.Reader) (*Frame, error) {
	zr, err := c.opts.Compression.Decompress(r)
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %w", ErrInvalidFormat, err)
	}
	defer func() { _ = zr.Close() }()

	cr := csv.NewReader(zr)
	cr.Comma = c.opts.Delimiter
	cr.ReuseRecord = false

	records, err := cr.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: csv: %w", ErrInvalidFormat, err)
		}
		return nil, fmt.Errorf("csv: read: %w", err)
	}
	if len(records) == 0 {
		return MustFrame(), nil
	}

	var names []string
	if c.opts.NoHeader {
		names = make([]string, len(records[0]))
		for i := range names {
			names[i] = strconv.Itoa(i)
		}
	} else {
		names = records[0]
		records = records[1:]
	}

	cols := make([]*Series, len(names))
	raw := make([]string, len(records))
	for i, name := range names {
		for r, rec := range records {
			raw[r] = rec[i]
		}
		cols[i] = inferSeries(name, raw, c.opts.NullValue)
	}

	var index []int64
	if !c.opts.NoHeader && len(cols) > 0 && cols[0].Name == IndexColumn && cols[0].Kind == KindInt64 {
		index = make([]int64, len(records))
		for r, v := range cols[0].Values {
			if v != nil {
				index[r] = v.(int64)
			}
		}
		cols = cols[1:]
	}

	frame, err := NewFrame(cols...)
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %w", ErrInvalidFormat, err)
	}
	frame.Index = index
	return frame, nil
}

// inferSeries picks the narrowest kind that fits every non-null field, in
// the order int64, float64, bool, timestamp, string.
func inferSeries(name string, raw []string, null string) *Series {
	isNull := func(s string) bool { return s == "" || (null != "" && s == null) }

	candidates := []Kind{KindInt64, KindFloat64, KindBool, KindTimestamp}
	for _, s := range raw {
		if isNull(s) {
			continue
		}
		kept := candidates[:0]
		for _, k := range candidates {
			if _, ok := parseField(k, s); ok {
				kept = append(kept, k)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			break
		}
	}
	kind := KindString
	if len(candidates) > 0 {
		kind = candidates[0]
	}

	vals := make([]any, len(raw))
	for i, s := range raw {
		if isNull(s) {
			continue
		}
		if kind == KindString {
			vals[i] = s
			continue
		}
		vals[i], _ = parseField(kind, s)
	}
	return &Series{Name: name, Kind: kind, Values: vals}
}

func parseField(k Kind, s string) (any, bool) {
	switch k {
	case KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	case KindFloat64:
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case KindBool:
		switch s {
		case "true", "True", "TRUE":
			return true, true
		case "false", "False", "FALSE":
			return false, true
		}
		return nil, false
	case KindTimestamp:
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	default:
		return s, true
	}
}
