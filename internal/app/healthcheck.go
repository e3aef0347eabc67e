package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// startHealthcheckServer serves a /health endpoint while the fleet runs,
// so container schedulers can probe long-lived launcher processes. The
// returned func shuts the server down gracefully.
func (a *App) startHealthcheckServer() func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.HealthcheckPort),
		Handler: mux,
	}

	go func() {
		a.logger.Info("Health check server starting.", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly.", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Health check server shutdown failed.", "error", err)
		}
	}
}
