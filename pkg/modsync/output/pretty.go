package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PrettyFormatter renders a styled summary box, an aligned table and
// warnings.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	lines := []string{TitleStyle.Render(r.Title)}

	var parts []string
	for _, field := range r.Summary {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render(field.Label+":"),
			toneStyle(field.Tone).Render(field.Value)))
	}
	if len(parts) > 0 {
		lines = append(lines, strings.Join(parts, "  "))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Report) string {
	if len(r.Rows) == 0 {
		empty := r.Empty
		if empty == "" {
			empty = "Nothing to show"
		}
		return MutedStyle.Render("  "+empty) + "\n"
	}

	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range r.Rows {
		for i := range widths {
			if i < len(row.Cells) {
				widths[i] = max(widths[i], lipgloss.Width(row.Cells[i]))
			}
		}
	}

	var sb strings.Builder
	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = TableHeaderStyle.Render(padRight(c, widths[i]))
	}
	sb.WriteString("  " + strings.Join(header, "  ") + "\n")

	for _, row := range r.Rows {
		style := toneStyle(row.Tone)
		cells := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(row.Cells) {
				cell = row.Cells[i]
			}
			cells[i] = style.Render(padRight(cell, widths[i]))
		}
		sb.WriteString("  " + strings.TrimRight(strings.Join(cells, "  "), " ") + "\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return FooterBox.Render(strings.TrimRight(sb.String(), "\n")) + "\n"
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
