package wrangle

import (
	"bytes"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetCodec_Name(t *testing.T) {
	codec, err := NewParquetCodec()
	require.NoError(t, err)
	assert.Equal(t, "parquet", codec.Name())
}

func TestParquetCodec_InvalidCompression(t *testing.T) {
	_, err := NewParquetCodec(WithParquetCompression("lz4"))
	assert.ErrorIs(t, err, ErrInvalidCompression)
}

func TestParquetCodec_RoundTrip_PreservesOrderAndValues(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.UTC)
	nullable, err := NewSeries("note", KindString, []any{"a", nil, "c"})
	require.NoError(t, err)

	// Column names deliberately out of alphabetical order.
	in := MustFrame(
		Int64s("zeta", 3, 2, 1),
		Strings("alpha", "x", "y", "z"),
		Float64s("mid", 1.5, 2.5, 3.5),
		Bools("flag", true, false, true),
		Timestamps("at", ts, ts.Add(time.Hour), ts.Add(2*time.Hour)),
		nullable,
	)

	for _, c := range []Compression{CompressionNone, CompressionSnappy, CompressionGzip} {
		t.Run(string(c), func(t *testing.T) {
			codec, err := NewParquetCodec(WithParquetCompression(c))
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, codec.Encode(&buf, in))

			out, err := codec.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, in.Columns(), out.Columns())
			assert.True(t, in.Equal(out), "decoded frame differs")
			assert.Nil(t, out.Index)
		})
	}
}

func TestParquetCodec_TimestampsTruncatedToMillis(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 123_456_789, time.UTC)
	codec, err := NewParquetCodec()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, MustFrame(Timestamps("t", ts))))
	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, ts.Truncate(time.Millisecond), columnValues(out, "t")[0])
}

func TestParquetCodec_Index(t *testing.T) {
	in := MustFrame(Int64s("v", 10, 20))
	in.Index = []int64{5, 9}

	codec, err := NewParquetCodec(WithIndex(true))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, in))

	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, out.Columns())
	assert.Equal(t, []int64{5, 9}, out.Index)
}

func TestParquetCodec_IndexColumnClash(t *testing.T) {
	codec, err := NewParquetCodec(WithIndex(true))
	require.NoError(t, err)
	err = codec.Encode(&bytes.Buffer{}, MustFrame(Int64s(IndexColumn, 1)))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestParquetCodec_EmptyFrame(t *testing.T) {
	codec, err := NewParquetCodec()
	require.NoError(t, err)

	err = codec.Encode(&bytes.Buffer{}, MustFrame())
	assert.ErrorIs(t, err, ErrSchemaViolation)

	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, MustFrame(Int64s("a"))))
	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
	assert.Equal(t, []string{"a"}, out.Columns())
}

func TestParquetCodec_Decode_Invalid(t *testing.T) {
	codec, err := NewParquetCodec()
	require.NoError(t, err)

	_, err = codec.Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = codec.Decode(bytes.NewReader([]byte("not parquet at all")))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

// Files without the frame metadata fall back to schema order and type
// mapping.
func TestParquetCodec_Decode_ForeignFile(t *testing.T) {
	type row struct {
		B string  `parquet:"b"`
		A int32   `parquet:"a"`
		C float32 `parquet:"c"`
	}
	var buf bytes.Buffer
	require.NoError(t, parquet.Write(&buf, []row{{B: "x", A: 1, C: 0.5}}))

	codec, err := NewParquetCodec()
	require.NoError(t, err)
	out, err := codec.Decode(&buf)
	require.NoError(t, err)

	a, ok := out.Column("a")
	require.True(t, ok)
	assert.Equal(t, KindInt64, a.Kind)
	assert.Equal(t, []any{int64(1)}, a.Values)

	c, ok := out.Column("c")
	require.True(t, ok)
	assert.Equal(t, KindFloat64, c.Kind)
	assert.Equal(t, []any{0.5}, c.Values)

	b, _ := out.Column("b")
	assert.Equal(t, []any{"x"}, b.Values)
}
