package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/pkg/catalog"
	"github.com/marmos91/savepoint/pkg/checkpoint"
	"github.com/marmos91/savepoint/pkg/metrics"
)

// NewRouter creates the control-plane HTTP router.
//
// Routes:
//   - GET  /health           Liveness probe (alias: /healthz)
//   - GET  /health/ready     Readiness probe with executor queue depth
//   - GET  /metrics          Prometheus exposition (when metrics are enabled)
//   - POST /api/v1/save      Queue a save
//   - POST /api/v1/load      Queue a restore
//   - GET  /api/v1/slots     List quick-save slot archives
//   - GET  /api/v1/archives  List every catalog record
//   - POST /api/v1/verify    Re-hash an archive against its recorded digest
func NewRouter(engine *checkpoint.Engine, cat *catalog.Catalog) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", handleLiveness)
		r.Get("/ready", handleReadiness(engine))
	})
	// Kubernetes-style alias.
	r.Get("/healthz", handleLiveness)

	if metrics.IsEnabled() {
		r.Get("/metrics", promhttp.HandlerFor(
			metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		ch := NewCheckpointHandler(engine)
		r.Post("/save", ch.Save)
		r.Post("/load", ch.Load)

		if cat != nil {
			ca := NewCatalogHandler(cat)
			r.Get("/archives", ca.List)
			r.Post("/verify", ca.Verify)
			r.Get("/slots", NewSlotsHandler(engine, cat).List)
		}
	})

	return r
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	okResponse(w, map[string]string{"state": "alive"})
}

// handleReadiness reports the executor queue depth alongside readiness; a
// saturated queue still answers ready, callers decide what depth is too much.
func handleReadiness(engine *checkpoint.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		okResponse(w, map[string]any{
			"state":       "ready",
			"queue_depth": engine.QueueDepth(),
		})
	}
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		// Health probes log at DEBUG to keep orchestrator noise out of the logs.
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
			return
		}
		logger.Info("API request completed", logArgs...)
	})
}
