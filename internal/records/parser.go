package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NoLimit makes Parse materialize every row.
const NoLimit = -1

// Parse reads a header line from r followed by at most limit data rows.
// Reading stops once limit rows are collected; the rest of r is left unread.
// An empty input yields no records.
func Parse(r io.Reader, limit int) ([]Record, error) {
	if limit == 0 {
		return []Record{}, nil
	}

	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)

	var rows [][]string
	for limit < 0 || len(rows) < limit {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}

	return materialize(columns, rows), nil
}

func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_duplicated_%d", name, n-1)
		} else {
			seen[name] = 1
		}
		columns[i] = name
	}
	return columns
}

type columnType int

const (
	typeInt columnType = iota
	typeFloat
	typeString
)

// materialize converts rows into records, typing each column by the widest
// type any of its non-empty cells needs.
func materialize(columns []string, rows [][]string) []Record {
	types := make([]columnType, len(columns))
	for _, row := range rows {
		for i, cell := range row {
			if cell == "" || types[i] == typeString {
				continue
			}
			types[i] = widen(types[i], cell)
		}
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(columns))
		for i, name := range columns {
			rec[i] = Field{Name: name, Value: convert(row[i], types[i])}
		}
		out = append(out, rec)
	}
	return out
}

func widen(current columnType, cell string) columnType {
	if current == typeInt {
		if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return typeInt
		}
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return typeFloat
	}
	return typeString
}

func convert(cell string, t columnType) any {
	if cell == "" {
		return nil
	}
	switch t {
	case typeInt:
		v, _ := strconv.ParseInt(cell, 10, 64)
		return v
	case typeFloat:
		v, _ := strconv.ParseFloat(cell, 64)
		return v
	default:
		return cell
	}
}
