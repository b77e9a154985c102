package app

import (
	"context"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/connector"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/store"
)

// storeAdapter adapts connector runs to store format.
type storeAdapter struct {
	st *store.Store
}

func (a *storeAdapter) RecordRun(ctx context.Context, run connector.Run) error {
	r := store.Run{
		Operation: run.Operation,
		StartedAt: run.StartedAt,
		Duration:  run.Duration,
		Status:    "success",
		Summary:   run.Summary,
	}
	if run.Err != nil {
		r.Status = "error"
		r.ErrorKind = run.Err.Kind.String()
		r.ErrorMessage = run.Err.Message
	}
	return a.st.SaveRun(ctx, r)
}
