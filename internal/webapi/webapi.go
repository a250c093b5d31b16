// Package webapi hosts the daemon's optional read-only HTTP surface:
// Prometheus /metrics and a /healthz readiness probe. It only ever reads
// from the store and the daemon; the telemetry loop never depends on it.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/oceanrelay/marinetelemetryd/internal/store"
	"go.uber.org/zap"
)

// HealthSource is the minimal view webapi needs of the daemon to answer
// /healthz; internal/daemon.Daemon satisfies it.
type HealthSource interface {
	IsTimeSynced() bool
}

type healthResponse struct {
	StoreHealthy bool `json:"store_healthy"`
	TimeSynced   bool `json:"time_synced"`
}

// Server hosts /healthz and /metrics on its own port, separate from the
// telemetry loop.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// New builds the HTTP handler; call Serve to actually listen.
func New(port int, registry *prometheus.Registry, st store.Store, health HealthSource, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			StoreHealthy: st.HealthCheck(ctx) == nil,
			TimeSynced:   health.IsTimeSynced(),
		}
		w.Header().Set("Content-Type", "application/json")
		if !resp.StoreHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	return &Server{
		httpServer: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux},
		log:        log,
	}
}

// Serve blocks until ctx is canceled, then shuts the HTTP server down.
func (s *Server) Serve(ctx context.Context) error {
	if s.log != nil {
		s.log.Info("webapi: listening", zap.String("addr", s.httpServer.Addr))
	}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
