package format

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/review-agent/backend/internal/executor"
)

func rows(n, cols int) [][]any {
	out := make([][]any, n)
	for i := range out {
		row := make([]any, cols)
		for j := range row {
			row[j] = int64(i + j)
		}
		out[i] = row
	}
	return out
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		name string
		rs   executor.ResultSet
		want Shape
	}{
		{"no rows", executor.ResultSet{Columns: []string{"a", "b"}}, Empty},
		{"single value", executor.ResultSet{Columns: []string{"n"}, Rows: rows(1, 1)}, Scalar},
		{"one column many rows", executor.ResultSet{Columns: []string{"n"}, Rows: rows(3, 1)}, Tabular},
		{"two columns one row", executor.ResultSet{Columns: []string{"k", "v"}, Rows: rows(1, 2)}, KeyValue},
		{"two columns many rows", executor.ResultSet{Columns: []string{"k", "v"}, Rows: rows(30, 2)}, KeyValue},
		{"three columns", executor.ResultSet{Columns: []string{"a", "b", "c"}, Rows: rows(1, 3)}, Tabular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShapeOf(tt.rs))
		})
	}
}

func TestEmptyIgnoresQuestion(t *testing.T) {
	rs := executor.ResultSet{Columns: []string{"n"}}
	assert.Equal(t, NoResultsMessage, Format("How many positive reviews are there?", rs))
	assert.Equal(t, NoResultsMessage, Format("anything else", rs))
}

func TestScalar(t *testing.T) {
	rs := executor.ResultSet{Columns: []string{"COUNT(*)"}, Rows: [][]any{{int64(3)}}}
	assert.Equal(t, "**Result:** 3", Format("How many positive reviews are there?", rs))

	rs = executor.ResultSet{Columns: []string{"avg"}, Rows: [][]any{{6.16666}}}
	assert.Equal(t, "**Result:** 6.17", Format("q", rs))
}

func TestKeyValueTruncates(t *testing.T) {
	rs := executor.ResultSet{Columns: []string{"country", "avg"}}
	for i := 0; i < 12; i++ {
		rs.Rows = append(rs.Rows, []any{fmt.Sprintf("C%d", i), float64(i) + 0.5})
	}

	out := Format("q", rs)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "- **C0**: 0.50", lines[0])
	assert.Equal(t, "- **C9**: 9.50", lines[9])
	assert.NotContains(t, out, "C10")
	assert.True(t, strings.HasSuffix(out, "_Showing 10 of 12 rows._"))
}

func TestKeyValueWithoutTruncation(t *testing.T) {
	rs := executor.ResultSet{Columns: []string{"sentiment", "n"}, Rows: [][]any{{"Positive", int64(3)}, {"Negative", nil}}}
	assert.Equal(t, "- **Positive**: 3\n- **Negative**: NULL", Format("q", rs))
}

func TestTabularCardsAndMeans(t *testing.T) {
	rs := executor.ResultSet{
		Columns: []string{"passenger_country", "overall_rating", "seat_comfort", "value_for_money"},
		Rows: [][]any{
			{"Ireland", int64(8), 3.0, 5.0},
			{"Ireland", int64(5), nil, 3.0},
			{"Germany", int64(2), 2.0, 2.0},
			{"United Kingdom", int64(9), 4.0, 5.0},
			{"United Kingdom", int64(10), 4.0, 4.0},
			{"United States", int64(1), 1.0, 1.0},
		},
	}

	out := Format("q", rs)
	assert.True(t, strings.HasPrefix(out, "**Row 1**\n- passenger_country: Ireland\n- overall_rating: 8\n- seat_comfort: 3\n"))
	assert.Contains(t, out, "**Row 5**")
	assert.NotContains(t, out, "**Row 6**")
	assert.Contains(t, out, "_Showing 5 of 6 rows._")
	assert.Contains(t, out, "- mean overall_rating: 5.83")
	assert.Contains(t, out, "- mean seat_comfort: 2.80")
	assert.NotContains(t, out, "mean passenger_country")
	assert.NotContains(t, out, "mean value_for_money")
}

func TestTabularWithoutNumericColumns(t *testing.T) {
	rs := executor.ResultSet{Columns: []string{"a", "b", "c"}, Rows: [][]any{{"x", "y", "z"}}}
	out := Format("q", rs)
	assert.Equal(t, "**Row 1**\n- a: x\n- b: y\n- c: z", out)
}

func TestValue(t *testing.T) {
	assert.Equal(t, "NULL", Value(nil))
	assert.Equal(t, "7", Value(7.0))
	assert.Equal(t, "7.25", Value(float32(7.25)))
	assert.Equal(t, "2024-01-12", Value(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "true", Value(true))
	assert.Equal(t, "42", Value(int64(42)))
}

func TestNumericTextIsFormattedAsNumbers(t *testing.T) {
	scalar := executor.ResultSet{Columns: []string{"avg"}, Rows: [][]any{{"5.8333333333333333"}}}
	assert.Equal(t, "**Result:** 5.83", Format("q", scalar))

	pairs := executor.ResultSet{
		Columns: []string{"passenger_country", "avg"},
		Rows:    [][]any{{"Ireland", "6.5000000000000000"}, {"Germany", nil}},
	}
	assert.Equal(t, "- **Ireland**: 6.50\n- **Germany**: NULL", Format("q", pairs))
	assert.Equal(t, "6.5000000000000000", pairs.Rows[0][1], "input rows are left untouched")

	cards := executor.ResultSet{
		Columns: []string{"code", "rating", "origin"},
		Rows:    [][]any{{"007", "8", "Dublin"}, {"012", "5", "Berlin"}},
	}
	out := Format("q", cards)
	assert.Contains(t, out, "- code: 007")
	assert.Contains(t, out, "- mean rating: 6.50")
	assert.NotContains(t, out, "mean code")
}
