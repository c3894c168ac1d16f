// Package app wires the ferrum components together with fx.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/fxnlabs/ferrum/internal/config"
	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/library"
	"github.com/fxnlabs/ferrum/internal/logger"
	"github.com/fxnlabs/ferrum/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Module provides the logger, device manager, device, engine and metrics
// server from a *config.Config.
var Module = fx.Module("ferrum",
	fx.Provide(
		NewLogger,
		NewDeviceManager,
		NewDevice,
		NewEngine,
		NewMetricsServer,
	),
	fx.Invoke(func(*MetricsServer) {}),
)

// New builds an application from cfg. Extra options typically add an
// fx.Invoke or fx.Populate for the components the caller needs.
func New(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(Options(cfg, opts...))
}

// Options returns the application options without building it, for fxtest.
func Options(cfg *config.Config, opts ...fx.Option) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Options(opts...),
	)
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Logger.Verbosity)
}

func NewDeviceManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gpu.Manager, error) {
	m, err := gpu.NewManager(log, cfg.Device.Backend, gpu.HostOptions{
		MaxThreadsPerGroup: cfg.Device.Host.MaxThreadsPerGroup,
		MaxBufferLength:    cfg.Device.Host.MaxBufferLength,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return m.Release() },
	})
	return m, nil
}

func NewDevice(m *gpu.Manager) (gpu.Device, error) {
	return m.Device()
}

// EngineOptions maps the configuration onto engine.Options.
func EngineOptions(cfg *config.Config, log *zap.Logger) engine.Options {
	return engine.Options{
		Library: library.Options{
			Path:       cfg.Library.Path,
			EnvVar:     cfg.Library.EnvVar,
			DefaultDir: cfg.Library.DefaultDir,
			Logger:     log,
		},
		Strict: cfg.Engine.Strict,
		Policy: engine.DispatchPolicy(cfg.Dispatch.Policy),
		Logger: log,
	}
}

func NewEngine(lc fx.Lifecycle, cfg *config.Config, dev gpu.Device, log *zap.Logger) (*engine.Engine, error) {
	e, err := engine.New(dev, EngineOptions(cfg, log))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			e.Close()
			return nil
		},
	})
	return e, nil
}

// MetricsServer serves the prometheus registry while the application runs.
// It is idle when no listen address is configured.
type MetricsServer struct {
	log      *zap.Logger
	server   *http.Server
	listener net.Listener
}

func NewMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *MetricsServer {
	s := &MetricsServer{log: log.Named("metrics")}
	if cfg.Metrics.ListenAddress == "" {
		return s
	}
	s.server = &http.Server{Handler: metrics.Handler(cfg.Metrics.Path)}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.Metrics.ListenAddress)
			if err != nil {
				return err
			}
			s.listener = ln
			s.log.Info("Serving metrics", zap.String("address", ln.Addr().String()), zap.String("path", cfg.Metrics.Path))
			go func() {
				if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.server.Shutdown(ctx)
		},
	})
	return s
}

// Addr returns the address the server listens on, or "" when idle.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
