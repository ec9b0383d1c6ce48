package output

import (
	"bytes"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter draws a bordered table with go-pretty. Numeric columns named
// in RightAligned are right-aligned.
type TableFormatter struct{}

// rightAligned lists column headers whose values are sizes or counts.
var rightAligned = map[string]bool{
	"SIZE": true, "BYTES": true, "INSTALLED": true, "REPLACED": true,
	"SKIPPED": true, "FAILED": true, "FILES": true, "REV": true, "ENTRIES": true,
}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Report) error {
	columns := len(r.Columns)
	if columns == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if r.Title != "" {
		tw.SetTitle(r.Title)
	}

	header := make(table.Row, columns)
	for i, c := range r.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	for _, row := range r.Rows {
		tr := make(table.Row, columns)
		for i := range columns {
			if i < len(row.Cells) {
				tr[i] = row.Cells[i]
			} else {
				tr[i] = ""
			}
		}
		tw.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i, c := range r.Columns {
		align := text.AlignLeft
		if rightAligned[c] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	w.WriteString(tw.Render())
	w.WriteString("\n")
	for _, warning := range r.Warnings {
		w.WriteString("warning: " + warning + "\n")
	}
	return nil
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

var _ Formatter = (*TableFormatter)(nil)
