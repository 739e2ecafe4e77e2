package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-console/config"
	httpx "github.com/target/mmk-console/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config       *config.AppConfig
	Services     *ServiceContainer
	HealthChecks []httpx.HealthCheck
	Logger       *slog.Logger
}

// NewHTTPServer builds the console server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return nil, errors.New("http server config, app config and services are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	svcs := cfg.Services

	handler, err := httpx.NewRouter(httpx.RouterServices{
		Sessions:   svcs.Sessions,
		Flows:      svcs.Flows,
		Signup:     svcs.Signup,
		Navigation: svcs.Navigation,
		Guard:      svcs.Guard,
		Admin:      svcs.Backend,
		Catalog:    svcs.Catalog,
		Metrics:    svcs.Observability.Metrics,
		RateLimit: httpx.NewRateLimiter(httpx.RateLimitConfig{
			PerMinute:  appCfg.HTTP.LoginRatePerMinute,
			Burst:      appCfg.HTTP.LoginRateBurst,
			TrustProxy: appCfg.HTTP.TrustProxy,
		}),
		HealthChecks: cfg.HealthChecks,
		CookieDomain: appCfg.HTTP.CookieDomain,
		IsDev:        appCfg.IsDev,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// serveHTTP runs server until ctx is cancelled, then drains in-flight requests.
func serveHTTP(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	// The parent context is already cancelled; shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
