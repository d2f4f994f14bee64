package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/review-agent/backend/internal/catalog"
	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/format"
	"github.com/review-agent/backend/internal/storage/models"
)

const cellWidth = 60

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > cellWidth {
		return string(r[:cellWidth-1]) + "…"
	}
	return s
}

// writeRows prints up to limit raw rows of a result set.
func writeRows(w io.Writer, rs executor.ResultSet, limit int) {
	table := newTable(w, rs.Columns)
	shown := min(len(rs.Rows), limit)
	for _, row := range rs.Rows[:shown] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = clip(format.Value(v))
		}
		table.Append(cells)
	}
	table.Render()
	if shown < len(rs.Rows) {
		fmt.Fprintf(w, "%d of %d rows\n", shown, len(rs.Rows))
	}
}

func writeCatalog(w io.Writer, cat catalog.Catalog) {
	table := newTable(w, []string{"Column", "Type", "Values", "Description"})
	for _, col := range cat.Columns {
		table.Append([]string{col.Name, col.Type, col.Domain(), clip(col.Description)})
	}
	table.Render()
}

func writeFailures(w io.Writer, records []models.FailureRecord) {
	table := newTable(w, []string{"Time", "Status", "Attempts", "Question", "Last error"})
	table.SetRowLine(true)
	for _, r := range records {
		last := ""
		if n := len(r.Attempts); n > 0 {
			last = r.Attempts[n-1].Error
		}
		table.Append([]string{
			r.CreatedAt.Format(time.DateTime),
			r.Status,
			strconv.Itoa(len(r.Attempts)),
			clip(r.Question),
			clip(last),
		})
	}
	table.Render()
}

func writeSuccesses(w io.Writer, records []models.SuccessRecord) {
	table := newTable(w, []string{"Time", "Source", "Attempts", "Cached", "Latency\n(ms)", "Question", "Statement"})
	table.SetRowLine(true)
	for _, r := range records {
		table.Append([]string{
			r.CreatedAt.Format(time.DateTime),
			r.Source,
			strconv.Itoa(r.Attempts),
			strconv.FormatBool(r.Cached),
			strconv.FormatInt(r.LatencyMS, 10),
			clip(r.Question),
			clip(r.Statement),
		})
	}
	table.Render()
}
