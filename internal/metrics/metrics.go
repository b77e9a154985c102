package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "majestic_million"

// Metrics holds the connector's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	downloadedBytes prometheus.Counter
	recordsParsed   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound feed requests by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time until response headers were received.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Connector operations by name and status.",
		}, []string{"operation", "status"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written by download_domains_csv.",
		}),
		recordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Rows materialized by get_domain_records.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.requestDuration, m.operations, m.downloadedBytes, m.recordsParsed} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// ObserveRequest records one outbound request.
func (m *Metrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveOperation records one operation run.
func (m *Metrics) ObserveOperation(operation, status string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) AddDownloadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadedBytes.Add(float64(n))
}

func (m *Metrics) AddRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsParsed.Add(float64(n))
}
