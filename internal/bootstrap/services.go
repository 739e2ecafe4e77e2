package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/backend"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Backend    *backend.Client
	Catalog    *domainauth.CapabilityCatalog
	Sessions   *service.SessionManager
	Flows      *service.AuthFlowRegistry
	Signup     *service.SignupService
	Navigation *service.NavigationResolver
	Guard      *service.RouteGuard

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Metrics *metrics.Recorder
	// MetricsSink is nil when StatsD emission is disabled.
	MetricsSink statsd.Sink
	statsd      *statsd.Client
}

// Close flushes and closes the StatsD connection.
func (o ObservabilityContainer) Close() error {
	if o.statsd == nil {
		return nil
	}
	return o.statsd.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	Persistence ports.SessionPersistence
	Logger      *slog.Logger
}

// buildObservability configures the StatsD sink and the Prometheus-backed recorder.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	var out ObservabilityContainer
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.statsd = client
			out.MetricsSink = client
		}
	}
	out.Metrics = metrics.NewRecorder(out.MetricsSink)
	return out
}

// LoadCatalog returns the embedded capability catalog unless a file overrides it.
func LoadCatalog(path string) (*domainauth.CapabilityCatalog, error) {
	if path == "" {
		return domainauth.DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability catalog: %w", err)
	}
	catalog, err := domainauth.ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("parse capability catalog %s: %w", path, err)
	}
	return catalog, nil
}

// NewServices wires the backend client, the session manager and the services built on them.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	if deps.Persistence == nil {
		return nil, errors.New("session persistence is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(logger, cfg.Observability)

	catalog, err := LoadCatalog(cfg.Backend.CatalogPath)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
		Metrics: obs.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Persistence: deps.Persistence,
		DefaultTTL:  cfg.Session.TTL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	sessions.Subscribe(func(ev ports.SessionEvent) {
		obs.Metrics.SessionEvent(string(ev.Kind))
	})

	nav, err := service.NewNavigationResolver(client, cfg.Backend.NavigationExpr)
	if err != nil {
		return nil, fmt.Errorf("navigation resolver: %w", err)
	}

	return &ServiceContainer{
		Backend:  client,
		Catalog:  catalog,
		Sessions: sessions,
		Flows: service.NewAuthFlowRegistry(service.AuthFlowRegistryOptions{
			Backend:  client,
			Sessions: sessions,
			IdleTTL:  cfg.Session.FlowIdleTTL,
			MaxFlows: cfg.Session.MaxFlows,
			Logger:   logger,
			Metrics:  obs.Metrics,
		}),
		Signup: service.NewSignupService(service.SignupServiceOptions{
			Backend: client,
			Logger:  logger,
			Metrics: obs.Metrics,
		}),
		Navigation: nav,
		Guard: service.NewRouteGuard(service.RouteGuardOptions{
			Navigation: nav,
			Logger:     logger,
			Metrics:    obs.Metrics,
		}),
		Observability: obs,
	}, nil
}
