package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// Format names an output encoding for domain records.
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONL    Format = "jsonl"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL, FormatCSV, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Formatter renders records to a string.
type Formatter interface {
	Format(recs []records.Record) (string, error)
}

// FormatterFor returns the formatter for f.
func FormatterFor(f Format) (Formatter, error) {
	switch f {
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatJSONL:
		return NewJSONLFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// columns returns the header shared by recs.
func columns(recs []records.Record) []string {
	if len(recs) == 0 {
		return nil
	}
	return recs[0].Columns()
}

// cellString renders a typed cell. Empty cells become "".
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// formatString returns "NA" if val is empty, otherwise returns val.
func formatString(val string) string {
	if val == "" {
		return "NA"
	}
	return val
}
