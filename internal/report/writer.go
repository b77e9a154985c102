package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// Writer handles writing reports to files and streams.
type Writer struct{}

// NewWriter creates a new report writer.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) render(format Format, recs []records.Record) (string, error) {
	formatter, err := FormatterFor(format)
	if err != nil {
		return "", err
	}
	content, err := formatter.Format(recs)
	if err != nil {
		return "", fmt.Errorf("format %s: %w", format, err)
	}
	return content, nil
}

// WriteFile renders recs and writes them to path with owner-only permissions.
func (w *Writer) WriteFile(ctx context.Context, path string, format Format, recs []records.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := w.render(format, recs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// Render writes recs to out.
func (w *Writer) Render(out io.Writer, format Format, recs []records.Record) error {
	content, err := w.render(format, recs)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, content); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}
