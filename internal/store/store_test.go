package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}
}

func TestRunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	runs := []store.Run{
		{
			Operation: "download_domains_csv",
			StartedAt: base,
			Duration:  1500 * time.Millisecond,
			Status:    "success",
			Summary:   "/tmp/majestic_million.csv",
		},
		{
			ID:           "fixed-id",
			Operation:    "get_domain_records",
			StartedAt:    base.Add(time.Minute),
			Duration:     200 * time.Millisecond,
			Status:       "error",
			ErrorKind:    "read_timeout",
			ErrorMessage: "The server did not send any data in the allotted amount of time",
		},
	}
	for _, r := range runs {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	got, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(got))
	}

	if got[0].ID != "fixed-id" || got[0].Operation != "get_domain_records" {
		t.Errorf("runs[0] = %+v, want most recent run first", got[0])
	}
	if got[0].ErrorKind != "read_timeout" {
		t.Errorf("runs[0].ErrorKind = %q, want %q", got[0].ErrorKind, "read_timeout")
	}
	if got[1].ID == "" {
		t.Error("runs[1].ID should be generated")
	}
	if got[1].Duration != 1500*time.Millisecond {
		t.Errorf("runs[1].Duration = %v, want 1.5s", got[1].Duration)
	}
	if !got[1].StartedAt.Equal(base) {
		t.Errorf("runs[1].StartedAt = %v, want %v", got[1].StartedAt, base)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(runs) = %d, want 1", len(limited))
	}
}

func TestDeleteRunsOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := store.Run{Operation: "download_domains_csv", StartedAt: now.AddDate(0, 0, -40), Status: "success"}
	recent := store.Run{Operation: "download_domains_csv", StartedAt: now, Status: "success"}
	for _, r := range []store.Run{old, recent} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	deleted, err := s.DeleteRunsOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteRunsOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	remaining, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("len(runs) = %d, want 1", len(remaining))
	}
}

func TestDomainSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []records.Record{
		{{Name: "GlobalRank", Value: int64(1)}, {Name: "Domain", Value: "google.com"}, {Name: "Score", Value: float64(2)}},
		{{Name: "GlobalRank", Value: int64(2)}, {Name: "Domain", Value: "facebook.com"}, {Name: "Score", Value: nil}},
	}
	if err := s.SaveDomainSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveDomainSnapshot() error = %v", err)
	}

	got, err := s.LoadDomainSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadDomainSnapshot() error = %v", err)
	}
	if len(got) != len(first) {
		t.Fatalf("len(snapshot) = %d, want %d", len(got), len(first))
	}
	for i := range first {
		for j, f := range first[i] {
			if got[i][j].Name != f.Name || got[i][j].Value != f.Value {
				t.Errorf("snapshot[%d][%d] = %#v, want %#v", i, j, got[i][j], f)
			}
		}
	}

	second := []records.Record{{{Name: "GlobalRank", Value: int64(9)}}}
	if err := s.SaveDomainSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveDomainSnapshot() error = %v", err)
	}
	got, err = s.LoadDomainSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadDomainSnapshot() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(snapshot) = %d, want 1 after replace", len(got))
	}
}
