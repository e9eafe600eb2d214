package wrangle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// IndexColumn is the column name used to persist a frame's row index.
const IndexColumn = "__index_level_0__"

// schemaMetadataKey holds the frame column order and kinds as JSON, because
// parquet schemas built from groups order fields by name.
const schemaMetadataKey = "wrangle.schema"

// -----------------------------------------------------------------------------
// Parquet Codec Options
// -----------------------------------------------------------------------------

// ParquetOption configures Parquet codec behavior.
type ParquetOption func(*parquetCodec)

// WithParquetCompression sets internal Parquet compression. Defaults to
// DefaultCompression.
func WithParquetCompression(c Compression) ParquetOption {
	return func(p *parquetCodec) {
		p.compression = c
	}
}

// WithIndex writes the frame index as the IndexColumn column.
func WithIndex(include bool) ParquetOption {
	return func(p *parquetCodec) {
		p.index = include
	}
}

// -----------------------------------------------------------------------------
// Parquet Codec Implementation
// -----------------------------------------------------------------------------

// parquetCodec implements Codec for Apache Parquet.
//
// Every column is written optional. String columns are dictionary encoded,
// timestamps are stored in milliseconds and page statistics are enabled.
type parquetCodec struct {
	compression Compression
	index       bool
}

// NewParquetCodec creates a Parquet codec.
//
// Returns an error for an unrecognized compression.
func NewParquetCodec(opts ...ParquetOption) (Codec, error) {
	c := &parquetCodec{compression: DefaultCompression}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := ParseCompression(string(c.compression)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *parquetCodec) Name() string {
	return "parquet"
}

// columnSpec describes one stored column in frame order.
type columnSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (c *parquetCodec) Encode(w io.Writer, f *Frame) error {
	cols := f.Series()
	if c.index {
		if _, clash := f.Column(IndexColumn); clash {
			return fmt.Errorf("%w: column %q is reserved for the index", ErrSchemaViolation, IndexColumn)
		}
		cols = append(append([]*Series(nil), cols...), Int64s(IndexColumn, f.IndexLabels()...))
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: frame has no columns", ErrSchemaViolation)
	}

	specs := make([]columnSpec, len(cols))
	byName := make(map[string]*Series, len(cols))
	group := make(parquet.Group, len(cols))
	for i, s := range cols {
		specs[i] = columnSpec{Name: s.Name, Kind: s.Kind.String()}
		byName[s.Name] = s
		group[s.Name] = fieldNode(s.Kind)
	}
	schema := parquet.NewSchema("frame", group)

	meta, err := jsonCodec.MarshalToString(specs)
	if err != nil {
		return fmt.Errorf("parquet: encode schema metadata: %w", err)
	}

	// Leaf order follows the built schema, not the frame.
	fields := schema.Fields()
	rowBuf := parquet.NewBuffer(schema)
	for r := 0; r < f.NumRows(); r++ {
		row := make(parquet.Row, len(fields))
		for i, field := range fields {
			s := byName[field.Name()]
			v := s.Values[r]
			if v == nil {
				row[i] = parquet.NullValue().Level(0, 0, i)
				continue
			}
			pv, err := toParquetValue(s, v, r)
			if err != nil {
				return err
			}
			row[i] = pv.Level(0, 1, i)
		}
		if _, err := rowBuf.WriteRows([]parquet.Row{row}); err != nil {
			return fmt.Errorf("parquet: write row %d: %w", r, err)
		}
	}

	var buf bytes.Buffer
	pqWriter := parquet.NewWriter(&buf, schema,
		c.compressionOption(),
		parquet.DataPageStatistics(true),
		parquet.KeyValueMetadata(schemaMetadataKey, meta),
	)
	if _, err := pqWriter.WriteRowGroup(rowBuf); err != nil {
		_ = pqWriter.Close()
		return fmt.Errorf("parquet: write row group: %w", err)
	}
	if err := pqWriter.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}

	_, err = io.Copy(w, &buf)
	return err
}

func (c *parquetCodec) Decode(r io.Reader) (*Frame, error) {
	// Parquet needs random access to the footer.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parquet: read file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidFormat
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFormat
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	fields := file.Schema().Fields()
	kinds := make(map[string]Kind, len(fields))
	units := make([]time.Duration, len(fields))
	for i, field := range fields {
		k, err := kindOfField(field)
		if err != nil {
			return nil, err
		}
		kinds[field.Name()] = k
		units[i] = timestampUnit(field)
	}
	order := storedOrder(file, fields)

	values := make([][]any, len(fields))
	numRows := file.NumRows()
	for i := range values {
		values[i] = make([]any, 0, numRows)
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	rows := make([]parquet.Row, 100)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			for i, field := range fields {
				var v any
				if i < len(row) && !row[i].IsNull() {
					v = fromParquetValue(row[i], kinds[field.Name()], units[i])
				}
				values[i] = append(values[i], v)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read rows: %w", ErrInvalidFormat, err)
		}
	}

	position := make(map[string]int, len(fields))
	for i, field := range fields {
		position[field.Name()] = i
	}

	var index []int64
	cols := make([]*Series, 0, len(order))
	for _, name := range order {
		vals := values[position[name]]
		if name == IndexColumn && kinds[name] == KindInt64 {
			index = make([]int64, len(vals))
			for i, v := range vals {
				if v != nil {
					index[i] = v.(int64)
				}
			}
			continue
		}
		cols = append(cols, &Series{Name: name, Kind: kinds[name], Values: vals})
	}

	frame, err := NewFrame(cols...)
	if err != nil {
		return nil, err
	}
	frame.Index = index
	if len(cols) == 0 && index == nil {
		frame.Index = make([]int64, numRows)
	}
	return frame, nil
}

// storedOrder returns the frame column order recorded in the file metadata,
// falling back to schema order for files written by other tools.
func storedOrder(file *parquet.File, fields []parquet.Field) []string {
	fallback := make([]string, len(fields))
	known := make(map[string]bool, len(fields))
	for i, f := range fields {
		fallback[i] = f.Name()
		known[f.Name()] = true
	}

	raw, ok := file.Lookup(schemaMetadataKey)
	if !ok {
		return fallback
	}
	var specs []columnSpec
	if err := jsonCodec.UnmarshalFromString(raw, &specs); err != nil || len(specs) != len(fields) {
		return fallback
	}
	order := make([]string, len(specs))
	for i, s := range specs {
		if !known[s.Name] {
			return fallback
		}
		order[i] = s.Name
	}
	return order
}

func (c *parquetCodec) compressionOption() parquet.WriterOption {
	switch c.compression {
	case CompressionSnappy:
		return parquet.Compression(&parquet.Snappy)
	case CompressionGzip:
		return parquet.Compression(&parquet.Gzip)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}

func fieldNode(k Kind) parquet.Node {
	var node parquet.Node
	switch k {
	case KindInt64:
		node = parquet.Int(64)
	case KindFloat64:
		node = parquet.Leaf(parquet.DoubleType)
	case KindString:
		node = parquet.Encoded(parquet.String(), &parquet.RLEDictionary)
	case KindBool:
		node = parquet.Leaf(parquet.BooleanType)
	case KindTimestamp:
		node = parquet.Timestamp(parquet.Millisecond)
	default:
		panic(fmt.Sprintf("invalid Kind %d", k))
	}
	return parquet.Optional(node)
}

// kindOfField maps a leaf column back to a frame kind.
func kindOfField(field parquet.Field) (Kind, error) {
	if !field.Leaf() {
		return 0, fmt.Errorf("%w: nested column %q is not supported", ErrInvalidFormat, field.Name())
	}
	typ := field.Type()
	if lt := typ.LogicalType(); lt != nil && lt.Timestamp != nil {
		return KindTimestamp, nil
	}
	switch typ.Kind() {
	case parquet.Boolean:
		return KindBool, nil
	case parquet.Int32, parquet.Int64:
		return KindInt64, nil
	case parquet.Float, parquet.Double:
		return KindFloat64, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return KindString, nil
	default:
		return 0, fmt.Errorf("%w: column %q has unsupported type %s", ErrInvalidFormat, field.Name(), typ)
	}
}

func toParquetValue(s *Series, v any, row int) (parquet.Value, error) {
	nv, err := normalizeValue(s.Kind, v)
	if err != nil {
		return parquet.Value{}, fmt.Errorf("%w: row %d column %q: %w", ErrSchemaViolation, row, s.Name, err)
	}
	switch x := nv.(type) {
	case int64:
		return parquet.Int64Value(x), nil
	case float64:
		return parquet.DoubleValue(x), nil
	case string:
		return parquet.ByteArrayValue([]byte(x)), nil
	case bool:
		return parquet.BooleanValue(x), nil
	case time.Time:
		return parquet.Int64Value(x.UnixMilli()), nil
	default:
		return parquet.Value{}, fmt.Errorf("%w: row %d column %q: unsupported value %T", ErrSchemaViolation, row, s.Name, v)
	}
}

func fromParquetValue(v parquet.Value, k Kind, unit time.Duration) any {
	switch k {
	case KindInt64:
		if v.Kind() == parquet.Int32 {
			return int64(v.Int32())
		}
		return v.Int64()
	case KindFloat64:
		if v.Kind() == parquet.Float {
			return float64(v.Float())
		}
		return v.Double()
	case KindString:
		return string(v.ByteArray())
	case KindBool:
		return v.Boolean()
	case KindTimestamp:
		return time.Unix(0, v.Int64()*int64(unit)).UTC()
	default:
		return nil
	}
}

// timestampUnit reports the stored unit of a timestamp column.
func timestampUnit(field parquet.Field) time.Duration {
	lt := field.Type().LogicalType()
	if lt == nil || lt.Timestamp == nil {
		return time.Millisecond
	}
	switch unit := lt.Timestamp.Unit; {
	case unit.Micros != nil:
		return time.Microsecond
	case unit.Nanos != nil:
		return time.Nanosecond
	default:
		return time.Millisecond
	}
}
