package wrangle

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLCodec_Encode(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries("b", KindString, []any{"x", nil})
	require.NoError(t, err)
	f := MustFrame(Int64s("a", 1, 2), s, Timestamps("t", ts, ts))

	var buf bytes.Buffer
	require.NoError(t, NewJSONLCodec().Encode(&buf, f))
	assert.Equal(t,
		`{"a":1,"b":"x","t":"2024-01-02T00:00:00Z"}`+"\n"+
			`{"a":2,"b":null,"t":"2024-01-02T00:00:00Z"}`+"\n",
		buf.String())
}

func TestJSONLCodec_Decode(t *testing.T) {
	in := `{"b":"x","a":1}` + "\n\n" + `{"a":2.5,"c":true}` + "\n"
	out, err := NewJSONLCodec().Decode(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, out.Columns())
	a, _ := out.Column("a")
	assert.Equal(t, KindFloat64, a.Kind)
	assert.Equal(t, []any{1.0, 2.5}, a.Values)
	assert.Equal(t, []any{"x", nil}, columnValues(out, "b"))
	assert.Equal(t, []any{nil, true}, columnValues(out, "c"))
}

func TestJSONLCodec_Decode_Invalid(t *testing.T) {
	_, err := NewJSONLCodec().Decode(strings.NewReader("{not json}\n"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestTextCompression(t *testing.T) {
	for _, tt := range []struct {
		key  string
		want TextCompression
	}{
		{"s3://b/k.csv", TextCompressionNone},
		{"s3://b/k.csv.gz", TextCompressionGzip},
		{"s3://b/k.csv.zst", TextCompressionZstd},
	} {
		assert.Equal(t, tt.want, TextCompressionFor(tt.key), tt.key)
	}

	c, err := ParseTextCompression("")
	require.NoError(t, err)
	assert.Equal(t, TextCompressionNone, c)
	_, err = ParseTextCompression("lzma")
	assert.ErrorIs(t, err, ErrInvalidCompression)

	var buf bytes.Buffer
	w, err := TextCompressionGzip.Compress(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := TextCompressionGzip.Decompress(&buf)
	require.NoError(t, err)
	var got bytes.Buffer
	_, err = got.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.String())
}

func TestParseModeAndCompression(t *testing.T) {
	m, err := ParseWriteMode("partition_upsert")
	require.NoError(t, err)
	assert.Equal(t, ModePartitionUpsert, m)
	_, err = ParseWriteMode("partitions_upsert")
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)

	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionSnappy, c)
	_, err = ParseCompression("zip")
	assert.ErrorIs(t, err, ErrInvalidCompression)

	assert.Equal(t, "", CompressionNone.Extension())
	assert.Equal(t, ".gz", CompressionGzip.Extension())
	assert.Equal(t, ".snappy", CompressionSnappy.Extension())
}
