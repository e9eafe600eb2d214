package wrangle

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Column kinds
// -----------------------------------------------------------------------------

// Kind enumerates the value types a Series can hold.
type Kind int

// Supported column kinds.
const (
	KindInt64 Kind = iota
	KindFloat64
	KindString
	KindBool
	KindTimestamp
	kindMax // sentinel for validation
)

var kindNames = [...]string{
	KindInt64:     "int64",
	KindFloat64:   "float64",
	KindString:    "string",
	KindBool:      "bool",
	KindTimestamp: "timestamp",
}

func (k Kind) String() string {
	if k < 0 || k >= kindMax {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// -----------------------------------------------------------------------------
// Series
// -----------------------------------------------------------------------------

// Series is a named, typed column. A nil element is a null.
//
// Values hold int64, float64, string, bool or time.Time according to Kind.
type Series struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewSeries creates a series after checking every non-nil value against kind.
// Go integer and float widths are normalized to int64 and float64.
func NewSeries(name string, kind Kind, values []any) (*Series, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: series name cannot be empty", ErrSchemaViolation)
	}
	if kind < 0 || kind >= kindMax {
		return nil, fmt.Errorf("%w: invalid kind %d for series %q", ErrSchemaViolation, kind, name)
	}
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		nv, err := normalizeValue(kind, v)
		if err != nil {
			return nil, fmt.Errorf("%w: series %q row %d: %w", ErrSchemaViolation, name, i, err)
		}
		out[i] = nv
	}
	return &Series{Name: name, Kind: kind, Values: out}, nil
}

// Int64s creates a non-null int64 series.
func Int64s(name string, values ...int64) *Series {
	return &Series{Name: name, Kind: KindInt64, Values: boxed(values)}
}

// Float64s creates a non-null float64 series.
func Float64s(name string, values ...float64) *Series {
	return &Series{Name: name, Kind: KindFloat64, Values: boxed(values)}
}

// Strings creates a non-null string series.
func Strings(name string, values ...string) *Series {
	return &Series{Name: name, Kind: KindString, Values: boxed(values)}
}

// Bools creates a non-null bool series.
func Bools(name string, values ...bool) *Series {
	return &Series{Name: name, Kind: KindBool, Values: boxed(values)}
}

// Timestamps creates a non-null timestamp series.
func Timestamps(name string, values ...time.Time) *Series {
	return &Series{Name: name, Kind: KindTimestamp, Values: boxed(values)}
}

func boxed[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Len returns the number of values.
func (s *Series) Len() int { return len(s.Values) }

func (s *Series) hasValues() bool {
	for _, v := range s.Values {
		if v != nil {
			return true
		}
	}
	return false
}

// take returns a new series holding the values at rows, in order.
func (s *Series) take(rows []int) *Series {
	vals := make([]any, len(rows))
	for i, r := range rows {
		vals[i] = s.Values[r]
	}
	return &Series{Name: s.Name, Kind: s.Kind, Values: vals}
}

// normalizeValue coerces v to the canonical Go type for kind.
//
//nolint:gocyclo // one case per kind and accepted Go type
func normalizeValue(kind Kind, v any) (any, error) {
	switch kind {
	case KindInt64:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case float64:
			if math.Trunc(x) != x {
				return nil, fmt.Errorf("float64 %v is not an integer", x)
			}
			return int64(x), nil
		}
	case KindFloat64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		}
	case KindString:
		if x, ok := v.(string); ok {
			return x, nil
		}
	case KindBool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case KindTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp: %w", err)
			}
			return t, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, v)
}

// -----------------------------------------------------------------------------
// Frame
// -----------------------------------------------------------------------------

// Frame is an in-memory table of equal-length named columns.
//
// Index holds optional int64 row labels. A nil Index is the implicit range
// 0..n-1, which is what Concat produces.
type Frame struct {
	columns []*Series
	Index   []int64
}

// NewFrame builds a frame from columns. Columns must have unique names and
// equal lengths.
func NewFrame(columns ...*Series) (*Frame, error) {
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("%w: column %d is nil", ErrSchemaViolation, i)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty name", ErrSchemaViolation, i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrSchemaViolation, c.Name)
		}
		seen[c.Name] = true
		if c.Len() != columns[0].Len() {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d",
				ErrSchemaViolation, c.Name, c.Len(), columns[0].Len())
		}
	}
	return &Frame{columns: columns}, nil
}

// MustFrame is NewFrame that panics on error. Intended for literals in tests
// and examples.
func MustFrame(columns ...*Series) *Frame {
	f, err := NewFrame(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if len(f.columns) == 0 {
		return len(f.Index)
	}
	return f.columns[0].Len()
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.columns) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Series returns the columns in order. The slice is shared with the frame.
func (f *Frame) Series() []*Series { return f.columns }

// Column returns the named column.
func (f *Frame) Column(name string) (*Series, bool) {
	for _, c := range f.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Value returns the value of column name at row, or nil when the column is
// missing.
func (f *Frame) Value(name string, row int) any {
	c, ok := f.Column(name)
	if !ok {
		return nil
	}
	return c.Values[row]
}

// IndexLabels returns the row labels, materializing the range index.
func (f *Frame) IndexLabels() []int64 {
	if f.Index != nil {
		return f.Index
	}
	labels := make([]int64, f.NumRows())
	for i := range labels {
		labels[i] = int64(i)
	}
	return labels
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Series, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: column %q not found", ErrInvalidArgumentValue, n)
		}
		cols = append(cols, c)
	}
	return &Frame{columns: cols, Index: f.Index}, nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	cols := make([]*Series, 0, len(f.columns))
	for _, c := range f.columns {
		if !slices.Contains(names, c.Name) {
			cols = append(cols, c)
		}
	}
	return &Frame{columns: cols, Index: f.Index}
}

// Take returns the rows at the given positions, keeping their index labels.
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Series, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.take(rows)
	}
	labels := f.IndexLabels()
	index := make([]int64, len(rows))
	for i, r := range rows {
		index[i] = labels[r]
	}
	return &Frame{columns: cols, Index: index}
}

// WithColumn returns a frame with s appended, or replacing the column of the
// same name.
func (f *Frame) WithColumn(s *Series) (*Frame, error) {
	if s.Len() != f.NumRows() && len(f.columns) > 0 {
		return nil, fmt.Errorf("%w: column %q has %d rows, want %d",
			ErrSchemaViolation, s.Name, s.Len(), f.NumRows())
	}
	cols := make([]*Series, 0, len(f.columns)+1)
	replaced := false
	for _, c := range f.columns {
		if c.Name == s.Name {
			cols = append(cols, s)
			replaced = true
			continue
		}
		cols = append(cols, c)
	}
	if !replaced {
		cols = append(cols, s)
	}
	return &Frame{columns: cols, Index: f.Index}, nil
}

// Record returns row i as a map keyed by column name.
func (f *Frame) Record(i int) map[string]any {
	rec := make(map[string]any, len(f.columns))
	for _, c := range f.columns {
		rec[c.Name] = c.Values[i]
	}
	return rec
}

// Equal reports whether two frames have the same columns, kinds and values.
// Index labels are not compared.
func (f *Frame) Equal(other *Frame) bool {
	if f.NumRows() != other.NumRows() || f.NumCols() != other.NumCols() {
		return false
	}
	for i, c := range f.columns {
		o := other.columns[i]
		if c.Name != o.Name || c.Kind != o.Kind {
			return false
		}
		for r := range c.Values {
			if compareValues(c.Values[r], o.Values[r]) != 0 {
				return false
			}
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Grouping
// -----------------------------------------------------------------------------

// Group is the set of rows sharing one combination of key values.
type Group struct {
	// Keys holds one value per grouping column, in column order.
	Keys []any

	// Frame holds the group's rows with their original index labels.
	Frame *Frame
}

// GroupBy splits the frame by the distinct value tuples of cols. Groups are
// ordered by key tuple, nulls last; rows keep their relative order.
func (f *Frame) GroupBy(cols ...string) ([]Group, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: at least one grouping column is required", ErrInvalidArgumentValue)
	}
	keyCols := make([]*Series, len(cols))
	for i, name := range cols {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: grouping column %q not found", ErrInvalidArgumentValue, name)
		}
		keyCols[i] = c
	}

	type bucket struct {
		keys []any
		rows []int
	}
	var buckets []*bucket
	lookup := make(map[string]*bucket)
	for r := 0; r < f.NumRows(); r++ {
		keys := make([]any, len(keyCols))
		for i, c := range keyCols {
			keys[i] = c.Values[r]
		}
		id := groupID(keys)
		b, ok := lookup[id]
		if !ok {
			b = &bucket{keys: keys}
			lookup[id] = b
			buckets = append(buckets, b)
		}
		b.rows = append(b.rows, r)
	}

	slices.SortStableFunc(buckets, func(a, b *bucket) int {
		for i := range a.keys {
			if c := compareValues(a.keys[i], b.keys[i]); c != 0 {
				return c
			}
		}
		return 0
	})

	groups := make([]Group, len(buckets))
	for i, b := range buckets {
		groups[i] = Group{Keys: b.keys, Frame: f.Take(b.rows)}
	}
	return groups, nil
}

func groupID(keys []any) string {
	var id []byte
	for _, k := range keys {
		if k == nil {
			id = append(id, 0)
		} else {
			id = fmt.Appendf(id, "\x01%T:%v", k, k)
		}
		id = append(id, 0x1f)
	}
	return string(id)
}

// compareValues orders two values of the same kind. Nulls sort last.
// Numeric kinds compare across int64 and float64.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			if ai, aok := a.(int64); aok {
				if bi, bok := b.(int64); bok {
					return cmpOrdered(ai, bi)
				}
			}
			return cmpOrdered(af, bf)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmpOrdered(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return cmpOrdered(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// Concat
// -----------------------------------------------------------------------------

// Concat appends the rows of frames in order. Column sets are unioned in
// first-seen order and missing values are null. An int64/float64 conflict
// promotes the column to float64; any other kind conflict makes it a string
// column. The result has a fresh range index.
func Concat(frames ...*Frame) *Frame {
	var order []string
	kinds := make(map[string]Kind)
	typed := make(map[string]bool) // kind came from a column with a non-null value
	total := 0
	for _, f := range frames {
		total += f.NumRows()
		for _, c := range f.columns {
			k, seen := kinds[c.Name]
			if !seen {
				order = append(order, c.Name)
			}
			if !c.hasValues() {
				if !seen {
					kinds[c.Name] = c.Kind
				}
				continue
			}
			if typed[c.Name] {
				kinds[c.Name] = unifyKinds(k, c.Kind)
			} else {
				kinds[c.Name] = c.Kind
				typed[c.Name] = true
			}
		}
	}

	cols := make([]*Series, len(order))
	for i, name := range order {
		kind := kinds[name]
		vals := make([]any, 0, total)
		for _, f := range frames {
			c, ok := f.Column(name)
			if !ok {
				vals = append(vals, make([]any, f.NumRows())...)
				continue
			}
			for _, v := range c.Values {
				vals = append(vals, convertValue(v, c.Kind, kind))
			}
		}
		cols[i] = &Series{Name: name, Kind: kind, Values: vals}
	}
	if len(cols) == 0 {
		idx := make([]int64, total)
		for i := range idx {
			idx[i] = int64(i)
		}
		return &Frame{Index: idx}
	}
	return &Frame{columns: cols}
}

func unifyKinds(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case (a == KindInt64 && b == KindFloat64) || (a == KindFloat64 && b == KindInt64):
		return KindFloat64
	default:
		return KindString
	}
}

func convertValue(v any, from, to Kind) any {
	if v == nil || from == to {
		return v
	}
	switch to {
	case KindFloat64:
		if f, ok := asFloat(v); ok {
			return f
		}
	case KindString:
		return formatValue(v)
	}
	return v
}

// formatValue renders a value the way it is written to text formats.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
