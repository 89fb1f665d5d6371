// Package service is the composition root for a checkpointing host: it
// wires the engine, the archive catalog, the slots watcher, the
// control-plane API, and telemetry together from one configuration. The
// process embedding the virtual machine creates a Service around its
// machine and component registry and calls Run.
package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/internal/telemetry"
	"github.com/marmos91/savepoint/pkg/catalog"
	"github.com/marmos91/savepoint/pkg/checkpoint"
	"github.com/marmos91/savepoint/pkg/config"
	"github.com/marmos91/savepoint/pkg/controlplane/api"
	"github.com/marmos91/savepoint/pkg/machine"
	"github.com/marmos91/savepoint/pkg/metrics"
	"github.com/marmos91/savepoint/pkg/state"
	"github.com/marmos91/savepoint/pkg/watcher"

	// Register the prometheus metrics constructor.
	_ "github.com/marmos91/savepoint/pkg/metrics/prometheus"
)

// Service owns every long-running piece of the checkpoint host.
type Service struct {
	cfg     *config.Config
	version string

	engine  *checkpoint.Engine
	catalog *catalog.Catalog
	watcher *watcher.Watcher
	server  *api.Server
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	version  string
	notifier machine.Notifier
	preview  func() []byte
}

// WithVersion sets the service version reported to telemetry backends.
func WithVersion(v string) Option {
	return func(o *serviceOptions) { o.version = v }
}

// WithNotifier routes user-facing checkpoint messages to n.
func WithNotifier(n machine.Notifier) Option {
	return func(o *serviceOptions) { o.notifier = n }
}

// WithPreview registers a preview-image capture for saves.
func WithPreview(capture func() []byte) Option {
	return func(o *serviceOptions) { o.preview = capture }
}

// New assembles a Service from configuration. Nothing starts running until
// Run is called.
func New(cfg *config.Config, m machine.Machine, reg *state.Registry, opts ...Option) (*Service, error) {
	o := serviceOptions{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.Slots.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating slots directory %s: %w", cfg.Slots.Dir, err)
	}

	s := &Service{cfg: cfg, version: o.version}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	if cfg.Catalog.Enabled {
		var err error
		if cfg.Catalog.Dir != "" {
			s.catalog, err = catalog.Open(cfg.Catalog.Dir)
		} else {
			s.catalog, err = catalog.OpenInMemory()
		}
		if err != nil {
			return nil, err
		}
	}

	engineCfg := checkpoint.Config{
		QueueSize:        cfg.Engine.QueueSize,
		WriteWorkers:     cfg.Engine.WriteWorkers,
		CompressionLevel: cfg.Engine.CompressionLevel,
		MaxStagedBytes:   cfg.Engine.MaxStagedBytes.Int64(),
		Slots: checkpoint.SlotConfig{
			Dir:       cfg.Slots.Dir,
			Prefix:    cfg.Slots.Prefix,
			Extension: cfg.Slots.Extension,
			Backup:    cfg.Slots.Backup,
		},
	}

	engineOpts := []checkpoint.Option{
		checkpoint.WithMetrics(metrics.NewCheckpointMetrics()),
	}
	if s.catalog != nil {
		engineOpts = append(engineOpts, checkpoint.WithObserver(s.catalog))
	}
	if o.notifier != nil {
		engineOpts = append(engineOpts, checkpoint.WithNotifier(o.notifier))
	}
	if o.preview != nil {
		engineOpts = append(engineOpts, checkpoint.WithPreview(o.preview))
	}

	s.engine = checkpoint.New(m, reg, engineCfg, engineOpts...)

	if cfg.Catalog.Watch && s.catalog != nil {
		w, err := watcher.New(cfg.Slots.Dir, cfg.Slots.Extension, s.catalog)
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	if cfg.ControlPlane.Enabled {
		s.server = api.NewServer(cfg.ControlPlane, s.engine, s.catalog)
	}

	return s, nil
}

// Engine returns the checkpoint engine for direct save/load calls.
func (s *Service) Engine() *checkpoint.Engine {
	return s.engine
}

// Catalog returns the archive catalog, or nil when disabled.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// everything down in reverse order. Queued saves are drained, not dropped.
func (s *Service) Run(ctx context.Context) error {
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        s.cfg.Telemetry.Enabled,
		ServiceName:    "savepoint",
		ServiceVersion: s.version,
		Endpoint:       s.cfg.Telemetry.Endpoint,
		Insecure:       s.cfg.Telemetry.Insecure,
		SampleRate:     s.cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        s.cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "savepoint",
		ServiceVersion: s.version,
		Endpoint:       s.cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   s.cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}

	s.engine.Start(ctx)
	if s.watcher != nil {
		s.watcher.Start(ctx)
	}

	serverErr := make(chan error, 1)
	if s.server != nil {
		go func() {
			serverErr <- s.server.Start(ctx)
		}()
	}

	logger.Info("Checkpoint service running",
		logger.Path(s.cfg.Slots.Dir),
		"api_enabled", s.server != nil,
		"catalog_enabled", s.catalog != nil)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = err
	}

	s.shutdown(telemetryShutdown, profilingShutdown)
	return runErr
}

func (s *Service) shutdown(telemetryShutdown func(context.Context) error, profilingShutdown func() error) {
	logger.Info("Checkpoint service shutting down")

	// The engine drains its queues so accepted saves still reach disk.
	s.engine.Stop(s.cfg.ShutdownTimeout)

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			logger.Warn("Watcher shutdown error", logger.Err(err))
		}
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Stop(shutdownCtx); err != nil {
			logger.Warn("API shutdown error", logger.Err(err))
		}
	}
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			logger.Warn("Catalog shutdown error", logger.Err(err))
		}
	}

	if err := profilingShutdown(); err != nil {
		logger.Warn("Profiling shutdown error", logger.Err(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetryShutdown(shutdownCtx); err != nil {
		logger.Warn("Telemetry shutdown error", logger.Err(err))
	}
}
