package wrangle

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

const maxScanTokenSize = 10 * 1024 * 1024 // 10MB

// Codec encodes and decodes a whole Frame as one file.
type Codec interface {
	// Name returns the format name, e.g. "parquet".
	Name() string

	// Encode writes f to w.
	Encode(w io.Writer, f *Frame) error

	// Decode reads one file from r.
	Decode(r io.Reader) (*Frame, error)
}

// -----------------------------------------------------------------------------
// JSONL Codec
// -----------------------------------------------------------------------------

// jsonlCodec implements Codec using JSON Lines, one object per row.
type jsonlCodec struct{}

// NewJSONLCodec creates a JSON Lines codec.
//
// Timestamps are written as RFC 3339 strings and read back as strings;
// JSON carries no type for them.
func NewJSONLCodec() Codec {
	return &jsonlCodec{}
}

func (j *jsonlCodec) Name() string {
	return "jsonl"
}

func (j *jsonlCodec) Encode(w io.Writer, f *Frame) error {
	bw := bufio.NewWriter(w)
	stream := jsonCodec.BorrowStream(bw)
	defer jsonCodec.ReturnStream(stream)

	cols := f.Series()
	for r := 0; r < f.NumRows(); r++ {
		stream.WriteObjectStart()
		for i, c := range cols {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(c.Name)
			switch v := c.Values[r].(type) {
			case time.Time:
				stream.WriteString(v.Format(time.RFC3339Nano))
			default:
				stream.WriteVal(v)
			}
		}
		stream.WriteObjectEnd()
		stream.WriteRaw("\n")
		if stream.Error != nil {
			return fmt.Errorf("jsonl: encode row %d: %w", r, stream.Error)
		}
	}
	if err := stream.Flush(); err != nil {
		return err
	}
	return bw.Flush()
}

// Decode reads one object per line. Keys are sorted within each object and
// the lines are combined with Concat.
func (j *jsonlCodec) Decode(r io.Reader) (*Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	var frames []*Frame
	for line := 0; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record map[string]any
		if err := jsonCodec.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("%w: jsonl line %d: %w", ErrInvalidFormat, line+1, err)
		}
		f, err := recordFrame(record)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Concat(frames...), nil
}

// recordFrame turns one decoded JSON object into a single-row frame.
func recordFrame(record map[string]any) (*Frame, error) {
	names := make([]string, 0, len(record))
	for k := range record {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]*Series, 0, len(names))
	for _, name := range names {
		v := record[name]
		var s *Series
		switch x := v.(type) {
		case nil:
			s = &Series{Name: name, Kind: KindString, Values: []any{nil}}
		case float64:
			if x == float64(int64(x)) {
				s = Int64s(name, int64(x))
			} else {
				s = Float64s(name, x)
			}
		case string:
			s = Strings(name, x)
		case bool:
			s = Bools(name, x)
		default:
			raw, err := jsonCodec.MarshalToString(x)
			if err != nil {
				return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidFormat, name, err)
			}
			s = Strings(name, raw)
		}
		cols = append(cols, s)
	}
	return NewFrame(cols...)
}
