package output

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// TSVFormatter writes the table as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(strings.Join(r.Columns, "\t") + "\n")
	for _, row := range r.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = strings.NewReplacer("\t", " ", "\n", " ").Replace(c)
		}
		w.WriteString(strings.Join(cells, "\t") + "\n")
	}
	return nil
}

// CSVFormatter writes the table as RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(r.Columns); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := writer.Write(row.Cells); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// MarkdownFormatter writes a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Report) error {
	if r.Title != "" {
		w.WriteString("## " + r.Title + "\n\n")
	}
	for _, field := range r.Summary {
		w.WriteString("- **" + escapeMarkdownPipe(field.Label) + "**: " + escapeMarkdownPipe(field.Value) + "\n")
	}
	if len(r.Summary) > 0 {
		w.WriteString("\n")
	}
	if len(r.Columns) == 0 {
		return nil
	}

	w.WriteString("| " + strings.Join(r.Columns, " | ") + " |\n")
	seps := make([]string, len(r.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	w.WriteString("|" + strings.Join(seps, "|") + "|\n")
	for _, row := range r.Rows {
		cells := make([]string, len(r.Columns))
		for i := range cells {
			if i < len(row.Cells) {
				cells[i] = escapeMarkdownPipe(row.Cells[i])
			}
		}
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return nil
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("tsv", func() Formatter { return &TSVFormatter{} })
	Register("csv", func() Formatter { return &CSVFormatter{} })
	Register("markdown", func() Formatter { return &MarkdownFormatter{} })
}

var (
	_ Formatter = (*TSVFormatter)(nil)
	_ Formatter = (*CSVFormatter)(nil)
	_ Formatter = (*MarkdownFormatter)(nil)
)
