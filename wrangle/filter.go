package wrangle

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Op is a comparison operator in a Predicate.
type Op string

// Supported operators.
const (
	OpEq    Op = "="
	OpEqEq  Op = "=="
	OpNe    Op = "!="
	OpLt    Op = "<"
	OpLe    Op = "<="
	OpGt    Op = ">"
	OpGe    Op = ">="
	OpIn    Op = "in"
	OpNotIn Op = "not in"
)

// Predicate compares one column against a value. For OpIn and OpNotIn,
// Value is a []any.
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Filters is a disjunction of conjunctions: a row matches when every
// predicate of at least one inner slice matches. Empty Filters match all.
type Filters [][]Predicate

// Columns returns the distinct columns referenced, in first-seen order.
func (fs Filters) Columns() []string {
	var cols []string
	for _, and := range fs {
		for _, p := range and {
			if !slices.Contains(cols, p.Column) {
				cols = append(cols, p.Column)
			}
		}
	}
	return cols
}

// Validate checks operators and that In/NotIn carry a list.
func (fs Filters) Validate() error {
	for _, and := range fs {
		for _, p := range and {
			switch p.Op {
			case OpEq, OpEqEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			case OpIn, OpNotIn:
				if _, ok := p.Value.([]any); !ok {
					return fmt.Errorf("%w: operator %q on %q needs a list value",
						ErrInvalidArgumentValue, p.Op, p.Column)
				}
			default:
				return fmt.Errorf("%w: unknown operator %q", ErrInvalidArgumentValue, p.Op)
			}
		}
	}
	return nil
}

// Match evaluates fs against a row lookup. A missing column never matches.
func (fs Filters) Match(value func(col string) (any, bool)) bool {
	if len(fs) == 0 {
		return true
	}
	for _, and := range fs {
		ok := true
		for _, p := range and {
			v, found := value(p.Column)
			if !found || !p.match(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Apply returns the rows of f that match. Unknown columns fail with
// ErrInvalidArgumentValue.
func (fs Filters) Apply(f *Frame) (*Frame, error) {
	if len(fs) == 0 {
		return f, nil
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	for _, col := range fs.Columns() {
		if _, ok := f.Column(col); !ok {
			return nil, fmt.Errorf("%w: filter column %q not found", ErrInvalidArgumentValue, col)
		}
	}
	var rows []int
	for r := 0; r < f.NumRows(); r++ {
		if fs.Match(func(col string) (any, bool) {
			c, ok := f.Column(col)
			if !ok {
				return nil, false
			}
			return c.Values[r], true
		}) {
			rows = append(rows, r)
		}
	}
	return f.Take(rows), nil
}

// OnlyColumns reports whether every predicate references one of cols.
func (fs Filters) OnlyColumns(cols []string) bool {
	for _, c := range fs.Columns() {
		if !slices.Contains(cols, c) {
			return false
		}
	}
	return true
}

// Nulls only match != and not in.
func (p Predicate) match(v any) bool {
	switch p.Op {
	case OpEq, OpEqEq:
		return v != nil && p.Value != nil && compareLoose(v, p.Value) == 0
	case OpNe:
		if v == nil || p.Value == nil {
			return v != p.Value
		}
		return compareLoose(v, p.Value) != 0
	case OpLt:
		return v != nil && p.Value != nil && compareLoose(v, p.Value) < 0
	case OpLe:
		return v != nil && p.Value != nil && compareLoose(v, p.Value) <= 0
	case OpGt:
		return v != nil && p.Value != nil && compareLoose(v, p.Value) > 0
	case OpGe:
		return v != nil && p.Value != nil && compareLoose(v, p.Value) >= 0
	case OpIn, OpNotIn:
		list, _ := p.Value.([]any)
		found := false
		for _, want := range list {
			if v != nil && want != nil && compareLoose(v, want) == 0 {
				found = true
				break
			}
		}
		if p.Op == OpIn {
			return found
		}
		return !found
	default:
		return false
	}
}

// compareLoose compares values that may differ in Go type, converting a
// string operand to the other side's type when it parses.
func compareLoose(a, b any) int {
	if s, ok := b.(string); ok {
		if _, isStr := a.(string); !isStr {
			if conv, ok := coerceLike(a, s); ok {
				b = conv
			} else {
				return compareValues(formatValue(a), s)
			}
		}
	}
	if s, ok := a.(string); ok {
		if _, isStr := b.(string); !isStr {
			if conv, ok := coerceLike(b, s); ok {
				a = conv
			} else {
				return compareValues(s, formatValue(b))
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return compareValues(a, b)
}

func coerceLike(like any, s string) (any, bool) {
	switch like.(type) {
	case int64, float64, int:
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case bool:
		b, err := strconv.ParseBool(s)
		return b, err == nil
	case time.Time:
		t, err := parseTime(s)
		return t, err == nil
	default:
		return nil, false
	}
}

// -----------------------------------------------------------------------------
// Parsing
// -----------------------------------------------------------------------------

var parseOps = []Op{OpNotIn, OpIn, OpEqEq, OpNe, OpLe, OpGe, OpEq, OpLt, OpGt}

// ParsePredicate parses "col<op>value", e.g. "year>=2020", "region in eu,us"
// or "name not in a,b". Values are inferred as int, float, bool or string;
// list members are comma separated.
func ParsePredicate(expr string) (Predicate, error) {
	for _, op := range parseOps {
		var col, raw string
		var ok bool
		if op == OpIn || op == OpNotIn {
			col, raw, ok = strings.Cut(expr, " "+string(op)+" ")
		} else {
			col, raw, ok = strings.Cut(expr, string(op))
			// "<=" must not be read as "<" followed by "=value".
			if ok && (op == OpLt || op == OpGt || op == OpEq) && strings.HasPrefix(raw, "=") {
				ok = false
			}
		}
		if !ok {
			continue
		}
		col = strings.TrimSpace(col)
		raw = strings.TrimSpace(raw)
		if col == "" {
			return Predicate{}, fmt.Errorf("%w: filter %q has no column", ErrInvalidArgumentValue, expr)
		}
		if op == OpIn || op == OpNotIn {
			var list []any
			for _, item := range strings.Split(raw, ",") {
				list = append(list, inferValue(strings.TrimSpace(item)))
			}
			return Predicate{Column: col, Op: op, Value: list}, nil
		}
		return Predicate{Column: col, Op: op, Value: inferValue(raw)}, nil
	}
	return Predicate{}, fmt.Errorf("%w: filter %q has no operator", ErrInvalidArgumentValue, expr)
}

// ParseFilters parses CLI filter expressions. Each expression is one AND
// clause whose predicates are separated by "&&"; clauses are ORed.
func ParseFilters(exprs []string) (Filters, error) {
	var fs Filters
	for _, expr := range exprs {
		var and []Predicate
		for _, part := range strings.Split(expr, "&&") {
			p, err := ParsePredicate(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			and = append(and, p)
		}
		fs = append(fs, and)
	}
	return fs, nil
}

func inferValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if unq, err := strconv.Unquote(s); err == nil {
		return unq
	}
	return s
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
