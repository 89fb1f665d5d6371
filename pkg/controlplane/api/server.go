// Package api is the control-plane HTTP server: a thin REST layer over the
// checkpoint engine and the archive catalog, used by operators and tooling
// to trigger saves and restores and to inspect known archives.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/pkg/catalog"
	"github.com/marmos91/savepoint/pkg/checkpoint"
)

// Server is the control-plane HTTP server.
//
// The server is created in a stopped state; Start blocks until the context
// is cancelled or the listener fails, then shuts down gracefully.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a control-plane server for the given engine. The catalog
// may be nil, in which case the archive query endpoints are not mounted.
func NewServer(config APIConfig, engine *checkpoint.Engine, cat *catalog.Catalog) *Server {
	config.applyDefaults()

	router := NewRouter(engine, cat)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start serves requests until ctx is cancelled or the listener fails.
// Cancellation triggers graceful shutdown and returns its result.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Control-plane API listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Control-plane API shutdown signal received")
		// A fresh context: the cancelled one would abort the drain immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("control-plane API failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("control-plane API shutdown: %w", err)
			logger.Error("Control-plane API shutdown error", logger.Err(err))
		} else {
			logger.Info("Control-plane API stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
