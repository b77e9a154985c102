package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// JSONFormatter renders records as an indented JSON array.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format encodes recs with keys in header order.
func (f *JSONFormatter) Format(recs []records.Record) (string, error) {
	if recs == nil {
		recs = []records.Record{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}
	return string(data) + "\n", nil
}

// JSONLFormatter renders one JSON object per line.
type JSONLFormatter struct{}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// Format encodes each record on its own line.
func (f *JSONLFormatter) Format(recs []records.Record) (string, error) {
	var sb strings.Builder

	for i, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("marshal record %d: %w", i, err)
		}
		sb.Write(data)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
