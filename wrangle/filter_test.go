package wrangle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		expr string
		want Predicate
	}{
		{"a=1", Predicate{"a", OpEq, int64(1)}},
		{"a == x", Predicate{"a", OpEqEq, "x"}},
		{"a!=2.5", Predicate{"a", OpNe, 2.5}},
		{"a<=3", Predicate{"a", OpLe, int64(3)}},
		{"a>=3", Predicate{"a", OpGe, int64(3)}},
		{"a<3", Predicate{"a", OpLt, int64(3)}},
		{"a>3", Predicate{"a", OpGt, int64(3)}},
		{"flag=true", Predicate{"flag", OpEq, true}},
		{"s=\"007\"", Predicate{"s", OpEq, "007"}},
		{"region in eu, us", Predicate{"region", OpIn, []any{"eu", "us"}}},
		{"n not in 1,2", Predicate{"n", OpNotIn, []any{int64(1), int64(2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParsePredicate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"nooperator", "=1"} {
		_, err := ParsePredicate(bad)
		assert.ErrorIs(t, err, ErrInvalidArgumentValue, bad)
	}
}

func TestParseFilters(t *testing.T) {
	fs, err := ParseFilters([]string{"a>1 && b=x", "c in 1,2"})
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Len(t, fs[0], 2)
	assert.Equal(t, []string{"a", "b", "c"}, fs.Columns())
}

func TestFilters_Apply(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nullable, err := NewSeries("n", KindString, []any{"x", nil, "y", "x"})
	require.NoError(t, err)
	f := MustFrame(
		Int64s("a", 1, 2, 3, 4),
		nullable,
		Timestamps("t", ts, ts.AddDate(0, 0, 1), ts.AddDate(0, 0, 2), ts.AddDate(0, 0, 3)),
	)

	tests := []struct {
		name    string
		filters Filters
		want    []any
	}{
		{"empty matches all", nil, []any{int64(1), int64(2), int64(3), int64(4)}},
		{"and", Filters{{{"a", OpGt, int64(1)}, {"n", OpEq, "x"}}}, []any{int64(4)}},
		{"or", Filters{{{"a", OpEq, int64(1)}}, {{"a", OpEq, int64(3)}}}, []any{int64(1), int64(3)}},
		{"null not equal", Filters{{{"n", OpNe, "x"}}}, []any{int64(2), int64(3)}},
		{"in", Filters{{{"n", OpIn, []any{"y"}}}}, []any{int64(3)}},
		{"not in", Filters{{{"a", OpNotIn, []any{int64(1), int64(2)}}}}, []any{int64(3), int64(4)}},
		{"string against int", Filters{{{"a", OpLe, "2"}}}, []any{int64(1), int64(2)}},
		{"date string against timestamp", Filters{{{"t", OpGe, "2024-01-03"}}}, []any{int64(3), int64(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.filters.Apply(f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, columnValues(out, "a"))
		})
	}
}

func TestFilters_Apply_Errors(t *testing.T) {
	f := MustFrame(Int64s("a", 1))

	_, err := Filters{{{"missing", OpEq, int64(1)}}}.Apply(f)
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)

	_, err = Filters{{{"a", "~", int64(1)}}}.Apply(f)
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)

	_, err = Filters{{{"a", OpIn, int64(1)}}}.Apply(f)
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)
}

func TestFilters_OnlyColumns(t *testing.T) {
	fs := Filters{{{"year", OpEq, int64(2024)}}, {{"region", OpEq, "eu"}}}
	assert.True(t, fs.OnlyColumns([]string{"year", "region", "day"}))
	assert.False(t, fs.OnlyColumns([]string{"year"}))
}
