// Package server exposes the HTTP surface: build submission, status,
// download, history, transition journal, health, and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apkerrors "git.home.luguber.info/inful/apkbuilder/internal/errors"
)

// Server manages the HTTP listener.
type Server struct {
	httpServer *http.Server
}

// New constructs the server with all routes wired.
func New(listen string, handlers *Handlers, registry *prom.Registry) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlers.HandleSubmit)
	mux.HandleFunc("GET /status/{id}", handlers.HandleStatus)
	mux.HandleFunc("GET /download/{id}/{filename}", handlers.HandleDownload)
	mux.HandleFunc("GET /logs", handlers.HandleLogs)
	mux.HandleFunc("GET /events/{id}", handlers.HandleEvents)
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	wrapped := chain(slog.Default(), apkerrors.NewHTTPErrorAdapter(slog.Default()), mux)

	return &Server{
		httpServer: &http.Server{
			Addr:              listen,
			Handler:           wrapped,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start runs the listener until it fails or is shut down.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
