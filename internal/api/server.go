package api

import (
	"context"
	"net/http"
	"time"

	"github.com/amaumene/reconarr/internal/api/handlers"
	"github.com/amaumene/reconarr/internal/api/middleware"
	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/scanner"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, scanners []scanner.Runnable, logger *logrus.Logger) *Server {
	s := &Server{
		logger: logger,
	}

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(scanners, logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
