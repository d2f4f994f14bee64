// Package format renders result sets as markdown answers. Rendering depends
// only on the shape of the result, never on what the values mean.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/review-agent/backend/internal/executor"
)

type Shape int

const (
	Empty Shape = iota
	Scalar
	KeyValue
	Tabular
)

func (s Shape) String() string {
	switch s {
	case Empty:
		return "empty"
	case Scalar:
		return "scalar"
	case KeyValue:
		return "key_value"
	case Tabular:
		return "tabular"
	default:
		return "unknown"
	}
}

const (
	NoResultsMessage = "No results found."

	KeyValueLimit = 10
	TabularLimit  = 5
	// SummaryColumns bounds how many leading columns get a mean.
	SummaryColumns = 3
)

func ShapeOf(rs executor.ResultSet) Shape {
	switch {
	case len(rs.Rows) == 0:
		return Empty
	case len(rs.Columns) == 1 && len(rs.Rows) == 1:
		return Scalar
	case len(rs.Columns) == 2:
		return KeyValue
	default:
		return Tabular
	}
}

// Format renders rs. The question is accepted for context only and does not
// influence the output.
func Format(_ string, rs executor.ResultSet) string {
	rs = decodeNumericText(rs)
	switch ShapeOf(rs) {
	case Empty:
		return NoResultsMessage
	case Scalar:
		return "**Result:** " + Value(rs.Rows[0][0])
	case KeyValue:
		return keyValue(rs)
	case Tabular:
		return tabular(rs)
	default:
		panic("unreachable")
	}
}

func keyValue(rs executor.ResultSet) string {
	var b strings.Builder
	shown := min(len(rs.Rows), KeyValueLimit)
	for _, row := range rs.Rows[:shown] {
		fmt.Fprintf(&b, "- **%s**: %s\n", Value(row[0]), Value(row[1]))
	}
	if shown < len(rs.Rows) {
		b.WriteString("\n")
	}
	writeTruncation(&b, shown, len(rs.Rows))
	return strings.TrimRight(b.String(), "\n")
}

func tabular(rs executor.ResultSet) string {
	var b strings.Builder
	shown := min(len(rs.Rows), TabularLimit)
	for i, row := range rs.Rows[:shown] {
		fmt.Fprintf(&b, "**Row %d**\n", i+1)
		for j, col := range rs.Columns {
			fmt.Fprintf(&b, "- %s: %s\n", col, Value(row[j]))
		}
		b.WriteString("\n")
	}
	writeTruncation(&b, shown, len(rs.Rows))

	if means := columnMeans(rs); len(means) > 0 {
		b.WriteString("\n**Summary**\n")
		for _, m := range means {
			fmt.Fprintf(&b, "- mean %s: %s\n", m.column, strconv.FormatFloat(m.mean, 'f', 2, 64))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTruncation(b *strings.Builder, shown, total int) {
	if shown < total {
		fmt.Fprintf(b, "_Showing %d of %d rows._\n", shown, total)
	}
}

type columnMean struct {
	column string
	mean   float64
}

// columnMeans averages the numeric columns among the first SummaryColumns.
// A column is numeric when every non-NULL value is a number and at least one
// value is present.
func columnMeans(rs executor.ResultSet) []columnMean {
	var out []columnMean
	for j := 0; j < len(rs.Columns) && j < SummaryColumns; j++ {
		sum, n, numeric := 0.0, 0, true
		for _, row := range rs.Rows {
			if row[j] == nil {
				continue
			}
			f, ok := toFloat(row[j])
			if !ok {
				numeric = false
				break
			}
			sum += f
			n++
		}
		if numeric && n > 0 {
			out = append(out, columnMean{column: rs.Columns[j], mean: sum / float64(n)})
		}
	}
	return out
}

// decodeNumericText turns columns whose non-NULL values are all decimal
// strings into floats, as Postgres returns numeric and AVG results as text.
// The input rows are shared with the cache and are never modified.
func decodeNumericText(rs executor.ResultSet) executor.ResultSet {
	var decode []int
	for j := range rs.Columns {
		seen, all := false, true
		for _, row := range rs.Rows {
			if row[j] == nil {
				continue
			}
			str, ok := row[j].(string)
			if !ok {
				all = false
				break
			}
			if _, ok := parseDecimal(str); !ok {
				all = false
				break
			}
			seen = true
		}
		if seen && all {
			decode = append(decode, j)
		}
	}
	if len(decode) == 0 {
		return rs
	}

	out := executor.ResultSet{Columns: rs.Columns, Rows: make([][]any, len(rs.Rows))}
	for i, row := range rs.Rows {
		cp := append([]any(nil), row...)
		for _, j := range decode {
			if cp[j] != nil {
				cp[j], _ = parseDecimal(cp[j].(string))
			}
		}
		out.Rows[i] = cp
	}
	return out
}

var decimalPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Value renders one scalar. Non-integral floats get two decimals.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
