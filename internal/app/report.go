package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/config"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/connector"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/majestic"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/report"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/store"
)

// RecordsOptions holds options for the records command.
type RecordsOptions struct {
	// Limit caps the parsed rows. Negative means no limit.
	Limit  int
	Format string
	// Output is a base file path; a timestamp suffix is appended. Empty writes to out.
	Output string
	Save   bool
	// FromSnapshot renders the stored domain snapshot instead of fetching the feed.
	FromSnapshot bool
}

// Records runs get_domain_records, or reads the stored snapshot, and renders the result.
func Records(ctx context.Context, cfg *config.Config, conn *connector.Connector, st *store.Store, opts RecordsOptions, out io.Writer) error {
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	var recs []records.Record
	if opts.FromSnapshot {
		if opts.Save {
			return fmt.Errorf("--save cannot be combined with --from-snapshot")
		}
		recs, err = loadSnapshot(ctx, st, opts.Limit)
		if err != nil {
			return err
		}
	} else {
		recs, err = fetchRecords(ctx, cfg, conn, opts.Limit)
		if err != nil {
			return err
		}
	}

	if opts.Save {
		if st == nil {
			return fmt.Errorf("save snapshot: no store configured")
		}
		if err := st.SaveDomainSnapshot(ctx, recs); err != nil {
			return fmt.Errorf("save domain snapshot: %w", err)
		}
		slog.Info("saved domain snapshot", "count", len(recs))
	}

	writer := report.NewWriter()
	if opts.Output == "" {
		return writer.Render(out, format, recs)
	}

	outputPath := resolveOutputPath(opts.Output, time.Now().UTC())
	if err := writer.WriteFile(ctx, outputPath, format, recs); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	slog.Info("report generated successfully", "output", outputPath, "format", format)
	return nil
}

func fetchRecords(ctx context.Context, cfg *config.Config, conn *connector.Connector, limit int) ([]records.Record, error) {
	params := majestic.Params{}
	if limit >= 0 {
		params["limit"] = limit
	}

	result, err := conn.Dispatch(ctx, connector.OpGetDomainRecords, HostConfig(cfg), params)
	if err != nil {
		return nil, err
	}
	recs, _ := result.([]records.Record)

	slog.Info("fetched domain records", "count", len(recs))
	return recs, nil
}

func loadSnapshot(ctx context.Context, st *store.Store, limit int) ([]records.Record, error) {
	if st == nil {
		return nil, fmt.Errorf("load snapshot: no store configured")
	}
	recs, err := st.LoadDomainSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load domain snapshot: %w", err)
	}
	if limit >= 0 && limit < len(recs) {
		recs = recs[:limit]
	}

	slog.Info("loaded domain snapshot", "count", len(recs))
	return recs, nil
}

func resolveOutputPath(base string, now time.Time) string {
	if base == "" {
		return base
	}

	dir := filepath.Dir(base)
	filename := filepath.Base(base)
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	timestamp := now.Format("20060102T150405Z")

	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, timestamp, ext))
}
