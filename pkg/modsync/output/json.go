package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter writes the report's Data as one indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(document(r))
}

// document is what the structured formatters encode: Data when the report
// carries it, a generic rendering of the table otherwise.
func document(r *Report) any {
	if r.Data != nil {
		return r.Data
	}
	rows := make([]map[string]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]string, len(r.Columns))
		for i, c := range r.Columns {
			if i < len(row.Cells) {
				m[c] = row.Cells[i]
			}
		}
		rows = append(rows, m)
	}
	return map[string]any{"kind": r.Kind, "rows": rows}
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
