package wrangle

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVCodec_RoundTrip_InfersKinds(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	score, err := NewSeries("score", KindFloat64, []any{1.0, nil})
	require.NoError(t, err)
	in := MustFrame(
		Int64s("id", 1, 2),
		Strings("name", "a,b", "c"),
		score,
		Bools("ok", true, false),
		Timestamps("at", ts, ts),
	)

	codec, err := NewCSVCodec(CSVOptions{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, in))

	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "round trip changed the frame")
}

func TestCSVCodec_Encode_Options(t *testing.T) {
	s, err := NewSeries("b", KindString, []any{"x", nil})
	require.NoError(t, err)
	f := MustFrame(Int64s("a", 1, 2), s)
	f.Index = []int64{10, 11}

	codec, err := NewCSVCodec(CSVOptions{Delimiter: ';', IncludeIndex: true, NullValue: "NA"})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, f))
	assert.Equal(t, IndexColumn+";a;b\n10;1;x\n11;2;NA\n", buf.String())

	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, out.Index)
	assert.Equal(t, []any{"x", nil}, columnValues(out, "b"))
}

func TestCSVCodec_NoHeader(t *testing.T) {
	codec, err := NewCSVCodec(CSVOptions{NoHeader: true})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, MustFrame(Int64s("a", 1), Strings("b", "x"))))
	assert.Equal(t, "1,x\n", buf.String())

	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, out.Columns())
}

func TestCSVCodec_Compressed(t *testing.T) {
	in := MustFrame(Int64s("a", 1, 2, 3))
	for _, c := range []TextCompression{TextCompressionGzip, TextCompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			codec, err := NewCSVCodec(CSVOptions{Compression: c})
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, codec.Encode(&buf, in))
			assert.NotContains(t, buf.String(), "a\n1")

			out, err := codec.Decode(&buf)
			require.NoError(t, err)
			assert.True(t, in.Equal(out))
		})
	}
}

func TestCSVCodec_Invalid(t *testing.T) {
	_, err := NewCSVCodec(CSVOptions{Compression: "brotli"})
	assert.ErrorIs(t, err, ErrInvalidCompression)

	_, err = NewCSVCodec(CSVOptions{Delimiter: '"'})
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)

	codec, err := NewCSVCodec(CSVOptions{})
	require.NoError(t, err)
	_, err = codec.Decode(strings.NewReader("a,b\n1\n"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestCSVCodec_Decode_Empty(t *testing.T) {
	codec, err := NewCSVCodec(CSVOptions{})
	require.NoError(t, err)
	out, err := codec.Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
}

func TestInferSeries(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		kind Kind
	}{
		{"ints", []string{"1", "", "-3"}, KindInt64},
		{"floats", []string{"1", "2.5"}, KindFloat64},
		{"bools", []string{"true", "False"}, KindBool},
		{"times", []string{"2024-01-01T00:00:00Z"}, KindTimestamp},
		{"mixed", []string{"1", "x"}, KindString},
		{"all null", []string{"", ""}, KindInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, inferSeries("c", tt.raw, "").Kind)
		})
	}
}
