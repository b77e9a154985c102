package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/majestic"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// Operation names exposed to the host platform.
const (
	OpDownloadDomainsCSV = "download_domains_csv"
	OpGetDomainRecords   = "get_domain_records"
)

// ErrUnknownOperation is returned by Dispatch for names missing from the registry.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrMissingConfig is wrapped by operations invoked without a configuration.
var ErrMissingConfig = errors.New("connector configuration is required")

// OperationFunc is the signature every registered operation satisfies.
type OperationFunc func(ctx context.Context, cfg *majestic.Config, params majestic.Params) (any, error)

// Metrics receives connector measurements.
type Metrics interface {
	majestic.Observer
	ObserveOperation(operation, status string)
	AddDownloadedBytes(n int64)
	AddRecords(n int)
}

// Run describes one finished operation.
type Run struct {
	Operation string
	StartedAt time.Time
	Duration  time.Duration
	Err       *majestic.Error
	Summary   string
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// Options holds the connector's injected collaborators.
type Options struct {
	// Endpoint defaults to majestic.DefaultEndpoint.
	Endpoint string
	// TmpRoot is the directory downloads are written to. It must already exist.
	TmpRoot  string
	Logger   *slog.Logger
	Metrics  Metrics
	Recorder RunRecorder
	// RateLimit caps outbound requests per second across all operations. Zero disables it.
	RateLimit float64
	// ClientOptions are applied to every client the connector builds.
	ClientOptions []majestic.ClientOption
}

// Connector implements the feed operations.
type Connector struct {
	endpoint   string
	tmpRoot    string
	logger     *slog.Logger
	metrics    Metrics
	recorder   RunRecorder
	clientOpts []majestic.ClientOption

	mu sync.Mutex
	// clients holds one client per verify_ssl value so connections and the
	// limiter are shared between calls.
	clients map[bool]*majestic.Client
}

// New creates a connector from opts.
func New(opts Options) *Connector {
	c := &Connector{
		endpoint:   opts.Endpoint,
		tmpRoot:    opts.TmpRoot,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		recorder:   opts.Recorder,
		clientOpts: opts.ClientOptions,
		clients:    make(map[bool]*majestic.Client),
	}
	if opts.RateLimit > 0 {
		lim := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		c.clientOpts = append([]majestic.ClientOption{majestic.WithLimiter(lim)}, c.clientOpts...)
	}
	if c.endpoint == "" {
		c.endpoint = majestic.DefaultEndpoint
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	return c
}

// CheckHealth reports whether the host supplied a configuration.
func CheckHealth(cfg *majestic.Config) bool {
	return cfg != nil
}

// Operations returns the registry consumed by the host platform's dispatcher.
func (c *Connector) Operations() map[string]OperationFunc {
	return map[string]OperationFunc{
		OpDownloadDomainsCSV: func(ctx context.Context, cfg *majestic.Config, params majestic.Params) (any, error) {
			return c.DownloadDomainsCSV(ctx, cfg, params)
		},
		OpGetDomainRecords: func(ctx context.Context, cfg *majestic.Config, params majestic.Params) (any, error) {
			return c.GetDomainRecords(ctx, cfg, params)
		},
	}
}

// Dispatch runs the named operation and records its outcome.
func (c *Connector) Dispatch(ctx context.Context, name string, cfg *majestic.Config, params majestic.Params) (any, error) {
	op, ok := c.Operations()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	start := time.Now()
	result, err := op(ctx, cfg, params)
	c.finish(ctx, name, start, result, err)

	return result, err
}

func (c *Connector) finish(ctx context.Context, name string, start time.Time, result any, err error) {
	run := Run{
		Operation: name,
		StartedAt: start,
		Duration:  time.Since(start),
		Err:       majestic.AsError(err, majestic.KindUnknown),
		Summary:   summarize(result),
	}

	status := "success"
	if run.Err != nil {
		status = "error"
	}
	c.metrics.ObserveOperation(name, status)

	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRun(ctx, run); err != nil {
		c.logger.Warn("failed to record run", "operation", name, "error", err)
	}
}

func summarize(result any) string {
	switch r := result.(type) {
	case DownloadResult:
		return r.Path
	case []records.Record:
		return fmt.Sprintf("%d records", len(r))
	default:
		return ""
	}
}

func (c *Connector) client(cfg *majestic.Config) *majestic.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[cfg.VerifySSL]; ok {
		return client
	}

	opts := make([]majestic.ClientOption, 0, len(c.clientOpts)+2)
	opts = append(opts, majestic.WithLogger(c.logger), majestic.WithObserver(c.metrics))
	opts = append(opts, c.clientOpts...)
	client := majestic.NewClient(*cfg, opts...)
	c.clients[cfg.VerifySSL] = client
	return client
}

// Close releases idle connections held by the connector's clients.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.CloseIdleConnections()
	}
}

// fail logs err once and returns it as a classified error.
func (c *Connector) fail(operation string, err error, fallback majestic.Kind) *majestic.Error {
	ce := majestic.AsError(err, fallback)
	c.logger.Error("operation failed", "operation", operation, "kind", ce.Kind.String(), "error", ce.Message)
	return ce
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, string, time.Duration) {}
func (noopMetrics) ObserveOperation(string, string)              {}
func (noopMetrics) AddDownloadedBytes(int64)                     {}
func (noopMetrics) AddRecords(int)                               {}
