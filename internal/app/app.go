package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/config"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/connector"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/majestic"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/metrics"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/store"
)

// NewConnector builds a connector wired to the store and metrics.
// st may be nil, in which case runs are not recorded.
func NewConnector(cfg *config.Config, st *store.Store, m *metrics.Metrics) *connector.Connector {
	opts := connector.Options{
		Endpoint:  cfg.Endpoint,
		TmpRoot:   cfg.TmpRoot,
		Logger:    slog.Default(),
		Metrics:   m,
		RateLimit: cfg.RateLimit,
		ClientOptions: []majestic.ClientOption{
			majestic.WithTimeouts(cfg.ConnectTimeout, cfg.ReadTimeout),
		},
	}
	if st != nil {
		opts.Recorder = &storeAdapter{st}
	}
	return connector.New(opts)
}

// HostConfig returns the per-call configuration the CLI and server hand to operations.
func HostConfig(cfg *config.Config) *majestic.Config {
	return &majestic.Config{VerifySSL: cfg.VerifySSL}
}

// Download runs download_domains_csv and prints the result as JSON.
func Download(ctx context.Context, cfg *config.Config, conn *connector.Connector, out io.Writer) error {
	result, err := conn.Dispatch(ctx, connector.OpDownloadDomainsCSV, HostConfig(cfg), nil)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// Health prints the check_health result for the loaded configuration.
func Health(cfg *config.Config, out io.Writer) error {
	healthy := connector.CheckHealth(HostConfig(cfg))
	if _, err := fmt.Fprintf(out, "healthy: %t\n", healthy); err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("connector is not healthy")
	}
	return nil
}

// History prints the most recent runs.
func History(ctx context.Context, st *store.Store, limit int, out io.Writer) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOPERATION\tSTATUS\tDURATION\tDETAIL")
	for _, r := range runs {
		detail := r.Summary
		if r.Status != "success" {
			detail = r.ErrorKind + ": " + r.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Operation, r.Status, r.Duration, detail)
	}
	return tw.Flush()
}

// PruneHistory deletes runs older than the configured retention period.
func PruneHistory(ctx context.Context, cfg *config.Config, st *store.Store) error {
	cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
	deleted, err := st.DeleteRunsOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	if deleted > 0 {
		slog.Info("deleted old runs", "count", deleted, "cutoff", cutoff)
	}
	return nil
}
