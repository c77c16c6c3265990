package main

import (
	"context"
	"net/http"
	"time"

	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
)

// startAdminServer serves /health, /ready, /live, and /metrics on addr and
// returns a function that shuts it down gracefully.
func startAdminServer(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	logger := log.WithComponent("admin")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server exited unexpectedly")
		}
	}()
	logger.Info().Str("addr", addr).Msg("admin server listening")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
