package wrangle

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NullPartition is the directory value used for a null partition key.
const NullPartition = "__HIVE_DEFAULT_PARTITION__"

// -----------------------------------------------------------------------------
// Hive partition paths
// -----------------------------------------------------------------------------

// PartitionPath renders the hive-style subdirectory for one group, e.g.
// "year=2024/region=eu%20west". cols and values are positionally paired.
func PartitionPath(cols []string, values []any) (string, error) {
	if len(cols) != len(values) {
		return "", fmt.Errorf("%w: %d partition columns for %d values",
			ErrInvalidArgumentValue, len(cols), len(values))
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + "=" + escapeValue(values[i])
	}
	return strings.Join(parts, "/"), nil
}

func escapeValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return NullPartition
	case string:
		s = val
	case time.Time:
		if val.Equal(val.Truncate(24 * time.Hour)) {
			s = val.Format(time.DateOnly)
		} else {
			s = val.Format(time.RFC3339Nano)
		}
	default:
		s = formatValue(val)
	}
	return url.PathEscape(s)
}

// PartitionValues extracts the col=value segments of a key relative to a
// dataset base. Segments without "=" (including the file name) are ignored.
// Values are unescaped; NullPartition yields a nil value.
func PartitionValues(rel string) ([]string, map[string]any) {
	var names []string
	values := make(map[string]any)
	for _, seg := range strings.Split(rel, "/") {
		name, raw, ok := strings.Cut(seg, "=")
		if !ok || name == "" {
			continue
		}
		if _, dup := values[name]; !dup {
			names = append(names, name)
		}
		if raw == NullPartition {
			values[name] = nil
			continue
		}
		if s, err := url.PathUnescape(raw); err == nil {
			raw = s
		}
		values[name] = raw
	}
	return names, values
}

// PartitionSeries builds a column from raw partition directory values. The
// column is int64 when every non-null value parses as one, else float64,
// else string.
func PartitionSeries(name string, raw []any) *Series {
	kind := KindInt64
	for _, v := range raw {
		if v == nil {
			continue
		}
		s := v.(string)
		if kind == KindInt64 {
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				continue
			}
			kind = KindFloat64
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			kind = KindString
			break
		}
	}

	vals := make([]any, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		s := v.(string)
		switch kind {
		case KindInt64:
			n, _ := strconv.ParseInt(s, 10, 64)
			vals[i] = n
		case KindFloat64:
			f, _ := strconv.ParseFloat(s, 64)
			vals[i] = f
		default:
			vals[i] = s
		}
	}
	return &Series{Name: name, Kind: kind, Values: vals}
}
