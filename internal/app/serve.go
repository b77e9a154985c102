package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/config"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/connector"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/majestic"
)

const (
	maxRequestBodySize = 1 << 20
	shutdownTimeout    = 10 * time.Second
)

// operationRequest is the body accepted by POST /operations/{name}.
// A missing or null config is passed to the operation as nil.
type operationRequest struct {
	Config *majestic.Config `json:"config"`
	Params majestic.Params  `json:"params"`
}

type errorResponse struct {
	Error any    `json:"error"`
	Kind  string `json:"kind"`
}

// NewHandler returns the host-facing HTTP API.
func NewHandler(cfg *config.Config, conn *connector.Connector, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /operations/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		var req operationRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode request: %v", err), Kind: "bad_request"})
			return
		}

		result, err := conn.Dispatch(r.Context(), name, req.Config, req.Params)
		if err != nil {
			writeOperationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		healthy := connector.CheckHealth(HostConfig(cfg))
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]bool{"healthy": healthy})
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

// Serve runs the HTTP API until ctx is canceled.
func Serve(ctx context.Context, cfg *config.Config, conn *connector.Connector, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewHandler(cfg, conn, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func writeOperationError(w http.ResponseWriter, err error) {
	if errors.Is(err, connector.ErrUnknownOperation) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "unknown_operation"})
		return
	}

	ce := majestic.AsError(err, majestic.KindUnknown)
	writeJSON(w, statusForError(ce), errorResponse{Error: ce.Payload(), Kind: ce.Kind.String()})
}

func statusForError(ce *majestic.Error) int {
	switch {
	case errors.Is(ce, connector.ErrMissingConfig):
		return http.StatusBadRequest
	case ce.Kind == majestic.KindParse:
		return http.StatusBadRequest
	case ce.Kind == majestic.KindTLS, ce.Kind == majestic.KindConnectTimeout,
		ce.Kind == majestic.KindReadTimeout, ce.Kind == majestic.KindConnection,
		ce.Kind == majestic.KindHTTPClient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}
