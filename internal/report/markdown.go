package report

import (
	"strings"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// markdownReplacer is used to escape special Markdown characters.
var markdownReplacer = strings.NewReplacer(
	"|", "\\|", // Pipe breaks table structure
	"*", "\\*", // Asterisk for emphasis/bold
	"_", "\\_", // Underscore for emphasis/bold
	"[", "\\[", // Opening bracket for links
	"]", "\\]", // Closing bracket for links
	"<", "\\<", // Opening angle bracket for HTML tags
	">", "\\>", // Closing angle bracket for HTML tags
	"`", "\\`", // Backtick for code
	"#", "\\#", // Hash for headers
	"\\", "\\\\", // Backslash itself
	"\n", " ",
	"\r", "",
)

// MarkdownFormatter formats records as a Markdown table.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new Markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format generates a Markdown table. Empty cells are shown as NA.
func (f *MarkdownFormatter) Format(recs []records.Record) (string, error) {
	cols := columns(recs)
	if len(cols) == 0 {
		return "", nil
	}

	var sb strings.Builder

	sb.WriteString("|")
	for _, c := range cols {
		sb.WriteString(" " + escapeMarkdown(c) + " |")
	}
	sb.WriteString("\n|")
	for range cols {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")

	for _, rec := range recs {
		sb.WriteString("|")
		for _, c := range cols {
			v, _ := rec.Get(c)
			sb.WriteString(" " + escapeMarkdown(formatString(cellString(v))) + " |")
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// escapeMarkdown escapes special characters that could break Markdown table formatting
// or be interpreted as Markdown syntax.
func escapeMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}
