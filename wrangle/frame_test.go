package wrangle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrame_Validation(t *testing.T) {
	tests := []struct {
		name string
		cols []*Series
	}{
		{"nil column", []*Series{nil}},
		{"empty name", []*Series{Int64s("", 1)}},
		{"duplicate name", []*Series{Int64s("a", 1), Strings("a", "x")}},
		{"ragged", []*Series{Int64s("a", 1, 2), Strings("b", "x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrame(tt.cols...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaViolation), "got %v", err)
		})
	}
}

func TestNewSeries_NormalizesValues(t *testing.T) {
	s, err := NewSeries("n", KindInt64, []any{1, int32(2), nil, 4.0})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), nil, int64(4)}, s.Values)

	_, err = NewSeries("n", KindInt64, []any{1.5})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = NewSeries("s", KindString, []any{1})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	ts, err := NewSeries("t", KindTimestamp, []any{"2024-01-02T03:04:05Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ts.Values[0])
}

func TestFrame_SelectDropTake(t *testing.T) {
	f := MustFrame(Int64s("a", 1, 2, 3), Strings("b", "x", "y", "z"), Bools("c", true, false, true))

	sel, err := f.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sel.Columns())

	_, err = f.Select("missing")
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)

	assert.Equal(t, []string{"a", "c"}, f.Drop("b", "unknown").Columns())

	taken := f.Take([]int{2, 0})
	assert.Equal(t, []any{int64(3), int64(1)}, columnValues(taken, "a"))
	assert.Equal(t, []int64{2, 0}, taken.Index)
}

func TestFrame_GroupBy_SortedWithOriginalLabels(t *testing.T) {
	f := MustFrame(
		Int64s("a", 1, 2, 3, 4),
		Strings("b", "y", "x", "y", "x"),
	)
	groups, err := f.GroupBy("b")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, []any{"x"}, groups[0].Keys)
	assert.Equal(t, []any{int64(2), int64(4)}, columnValues(groups[0].Frame, "a"))
	assert.Equal(t, []int64{1, 3}, groups[0].Frame.Index)

	assert.Equal(t, []any{"y"}, groups[1].Keys)
	assert.Equal(t, []any{int64(1), int64(3)}, columnValues(groups[1].Frame, "a"))
	assert.Equal(t, []int64{0, 2}, groups[1].Frame.Index)
}

func TestFrame_GroupBy_NullKeysLast(t *testing.T) {
	s, err := NewSeries("k", KindString, []any{nil, "a", nil})
	require.NoError(t, err)
	f := MustFrame(s, Int64s("v", 1, 2, 3))

	groups, err := f.GroupBy("k")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []any{"a"}, groups[0].Keys)
	assert.Equal(t, []any{nil}, groups[1].Keys)
	assert.Equal(t, 2, groups[1].Frame.NumRows())
}

func TestFrame_GroupBy_UnknownColumn(t *testing.T) {
	f := MustFrame(Int64s("a", 1))
	_, err := f.GroupBy("b")
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)
	_, err = f.GroupBy()
	assert.ErrorIs(t, err, ErrInvalidArgumentValue)
}

func TestConcat_UnionsColumnsAndPromotes(t *testing.T) {
	f1 := MustFrame(Int64s("a", 1, 2), Strings("b", "x", "y"))
	f1.Index = []int64{7, 8}
	f2 := MustFrame(Float64s("a", 2.5), Bools("c", true))
	f3 := MustFrame(Strings("c", "no"))

	out := Concat(f1, f2, f3)
	assert.Equal(t, []string{"a", "b", "c"}, out.Columns())
	assert.Equal(t, 4, out.NumRows())
	assert.Nil(t, out.Index)

	a, _ := out.Column("a")
	assert.Equal(t, KindFloat64, a.Kind)
	assert.Equal(t, []any{1.0, 2.0, 2.5, nil}, a.Values)

	b, _ := out.Column("b")
	assert.Equal(t, []any{"x", "y", nil, nil}, b.Values)

	c, _ := out.Column("c")
	assert.Equal(t, KindString, c.Kind)
	assert.Equal(t, []any{nil, nil, "true", "no"}, c.Values)
}

func TestConcat_AllNullColumnDoesNotWidenKind(t *testing.T) {
	nulls, err := NewSeries("a", KindString, []any{nil})
	require.NoError(t, err)
	out := Concat(MustFrame(nulls), MustFrame(Int64s("a", 5)))

	a, _ := out.Column("a")
	assert.Equal(t, KindInt64, a.Kind)
	assert.Equal(t, []any{nil, int64(5)}, a.Values)
}

func TestConcat_Empty(t *testing.T) {
	out := Concat()
	assert.Equal(t, 0, out.NumRows())
	assert.Empty(t, out.Columns())
}

func TestConcat_IndexOnlyFramesKeepRowCount(t *testing.T) {
	out := Concat(&Frame{Index: []int64{5, 6}}, &Frame{Index: []int64{7}})
	assert.Empty(t, out.Columns())
	assert.Equal(t, 3, out.NumRows())
	assert.Equal(t, []int64{0, 1, 2}, out.Index)
}

func TestFrame_Equal(t *testing.T) {
	a := MustFrame(Int64s("x", 1, 2), Strings("y", "a", "b"))
	b := MustFrame(Int64s("x", 1, 2), Strings("y", "a", "b"))
	b.Index = []int64{5, 6}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(MustFrame(Strings("y", "a", "b"), Int64s("x", 1, 2))))
	assert.False(t, a.Equal(MustFrame(Int64s("x", 1, 3), Strings("y", "a", "b"))))
}

func TestFrame_WithColumn(t *testing.T) {
	f := MustFrame(Int64s("a", 1, 2))
	g, err := f.WithColumn(Strings("b", "x", "y"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Columns())

	g, err = g.WithColumn(Strings("a", "p", "q"))
	require.NoError(t, err)
	assert.Equal(t, []any{"p", "q"}, columnValues(g, "a"))

	_, err = f.WithColumn(Strings("c", "only-one"))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestFormatValue_FloatKeepsDecimalPoint(t *testing.T) {
	assert.Equal(t, "3.0", formatValue(3.0))
	assert.Equal(t, "2.5", formatValue(2.5))
	assert.Equal(t, "1e+21", formatValue(1e21))
	assert.Equal(t, "7", formatValue(int64(7)))
}

func columnValues(f *Frame, name string) []any {
	c, ok := f.Column(name)
	if !ok {
		return nil
	}
	return c.Values
}
