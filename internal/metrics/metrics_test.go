package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/metrics"
)

func TestMetricsRecordsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.ObserveRequest("GET", "ok", 20*time.Millisecond)
	m.ObserveRequest("GET", "ok", 30*time.Millisecond)
	m.ObserveRequest("GET", "read_timeout", time.Second)
	m.ObserveOperation("get_domain_records", "success")
	m.AddDownloadedBytes(1024)
	m.AddRecords(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	values := map[string]float64{}
	series := map[string]int{}
	for _, mf := range families {
		series[mf.GetName()] = len(mf.GetMetric())
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}

	if series["majestic_million_http_requests_total"] != 2 {
		t.Errorf("http_requests_total series = %d, want 2", series["majestic_million_http_requests_total"])
	}
	if values["majestic_million_http_requests_total"] != 3 {
		t.Errorf("http_requests_total = %v, want 3", values["majestic_million_http_requests_total"])
	}
	if values["majestic_million_downloaded_bytes_total"] != 1024 {
		t.Errorf("downloaded_bytes_total = %v, want 1024", values["majestic_million_downloaded_bytes_total"])
	}
	if values["majestic_million_records_parsed_total"] != 3 {
		t.Errorf("records_parsed_total = %v, want 3", values["majestic_million_records_parsed_total"])
	}
	if values["majestic_million_operations_total"] != 1 {
		t.Errorf("operations_total = %v, want 1", values["majestic_million_operations_total"])
	}
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := metrics.New(reg); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := metrics.New(reg); err == nil {
		t.Error("expected error registering collectors twice")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveRequest("GET", "ok", time.Millisecond)
	m.ObserveOperation("download_domains_csv", "error")
	m.AddDownloadedBytes(10)
	m.AddRecords(1)
}
