package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/janitor"
	"golang.org/x/sync/errgroup"
)

// ServiceOrchestrationConfig contains everything RunServicesWithShutdown starts.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Infra    *Infrastructure
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// It blocks until SIGINT/SIGTERM arrives or a service fails; the first failure
// cancels the rest.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config with app config and services is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		server, serr := NewHTTPServer(&HTTPServerConfig{
			Config:       cfg.Config,
			Services:     cfg.Services,
			HealthChecks: cfg.Infra.healthChecks(),
			Logger:       logger,
		})
		if serr != nil {
			return serr
		}
		g.Go(func() error {
			return serveHTTP(gctx, server, cfg.Config.HTTP.ShutdownTimeout, logger)
		})
	}

	if enabled[config.ServiceModeJanitor] {
		runner, rerr := newJanitorRunner(cfg, enabled[config.ServiceModeHTTP], logger)
		if rerr != nil {
			return rerr
		}
		g.Go(func() error { return runner.Run(gctx) })
	}

	err = g.Wait()
	if closeErr := cfg.Services.Observability.Close(); closeErr != nil {
		logger.Warn("close statsd client failed", "error", closeErr)
	}
	if err != nil {
		return err
	}
	logger.Info("all services stopped")
	return nil
}

// newJanitorRunner sweeps the in-process flow registry when the HTTP server
// runs here, and purges SQL sessions when the backend has no native expiry.
func newJanitorRunner(cfg *ServiceOrchestrationConfig, withFlows bool, logger *slog.Logger) (*janitor.Runner, error) {
	opts := janitor.RunnerOptions{
		Interval: cfg.Config.Janitor.Interval,
		Logger:   logger,
		Metrics:  cfg.Services.Observability.MetricsSink,
	}
	if withFlows {
		opts.Flows = cfg.Services.Flows
	}
	if cfg.Infra != nil && cfg.Infra.Purger != nil {
		opts.Sessions = cfg.Infra.Purger
	}
	runner, err := janitor.NewRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("janitor: %w", err)
	}
	return runner, nil
}
