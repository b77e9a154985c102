package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// CSVFormatter formats records as CSV.
type CSVFormatter struct{}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Format writes the header of the first record followed by every row.
// No records produce no output.
func (f *CSVFormatter) Format(recs []records.Record) (string, error) {
	cols := columns(recs)
	if len(cols) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = escapeCSVInjection(c)
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	for i, rec := range recs {
		for j, c := range cols {
			v, _ := rec.Get(c)
			row[j] = escapeCSVInjection(cellString(v))
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	return buf.String(), nil
}

// escapeCSVInjection prevents CSV formula injection by prefixing dangerous characters with a single quote.
// Numbers such as "-1.5" are left alone.
func escapeCSVInjection(s string) string {
	if s == "" {
		return s
	}

	trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
	if trimmed == "" {
		return s
	}

	first, _ := utf8.DecodeRuneInString(trimmed)
	switch first {
	case '=', '@':
		return "'" + s
	case '+', '-':
		if isNumeric(trimmed) {
			return s
		}
		return "'" + s
	}

	return s
}

func isNumeric(s string) bool {
	s = s[1:]
	if s == "" {
		return false
	}
	dot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
