package output

import (
	"bytes"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes an unstyled, aligned table for scripting. Summary
// fields come first as "label: value" lines.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, field := range r.Summary {
		w.WriteString(field.Label + ": " + field.Value + "\n")
	}
	if len(r.Summary) > 0 && len(r.Rows) > 0 {
		w.WriteString("\n")
	}
	if len(r.Rows) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := tw.Write([]byte(strings.ToUpper(strings.Join(r.Columns, "\t")) + "\n")); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if _, err := tw.Write([]byte(strings.Join(row.Cells, "\t") + "\n")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
