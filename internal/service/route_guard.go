package service

import (
	"context"
	"log/slog"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/ports"
)

// Redirect targets used by the guard.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Guard denial reasons, also used as metric tags.
const (
	ReasonNoSession         = "no_session"
	ReasonMissingCapability = "missing_capability"
	ReasonNavigationError   = "navigation_error"
)

// Route is a protected dashboard route. An empty Capability only requires a session.
type Route struct {
	Path       string
	Capability domainauth.CapabilityKey
}

// ProtectedRoutes lists the dashboard home plus one route per catalog entry.
func ProtectedRoutes(catalog *domainauth.CapabilityCatalog) []Route {
	routes := []Route{{Path: DashboardPath}}
	for _, c := range catalog.Capabilities {
		routes = append(routes, Route{Path: c.Route(), Capability: c.Key})
	}
	return routes
}

// Decision is the outcome of a guard check. Redirect is set when Allowed is false.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   string
}

// SessionView is the read side of a session the guard needs.
type SessionView interface {
	Current() *domainauth.Identity
	ports.TokenSource
}

// CapabilitySource returns the authoritative navigation list for a caller.
type CapabilitySource interface {
	FetchNavigation(ctx context.Context, tokens ports.TokenSource) ([]domainauth.NavigationItem, error)
}

// RouteGuardOptions groups dependencies for RouteGuard.
type RouteGuardOptions struct {
	Navigation CapabilitySource
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// RouteGuard runs the authentication gate and then the capability gate.
type RouteGuard struct {
	nav     CapabilitySource
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewRouteGuard constructs a RouteGuard.
func NewRouteGuard(opts RouteGuardOptions) *RouteGuard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteGuard{nav: opts.Navigation, logger: logger.With("component", "route_guard"), metrics: opts.Metrics}
}

// Check decides whether session may enter route. It fails closed: a navigation
// error denies feature routes.
func (g *RouteGuard) Check(ctx context.Context, session SessionView, route Route) Decision {
	if session == nil || session.Current() == nil {
		return g.deny(LoginPath, ReasonNoSession)
	}
	if route.Capability == "" {
		return Decision{Allowed: true}
	}
	if g.nav == nil {
		return g.deny(DashboardPath, ReasonNavigationError)
	}

	items, err := g.nav.FetchNavigation(ctx, session)
	if err != nil {
		g.logger.WarnContext(ctx, "navigation lookup failed; denying route",
			"path", route.Path, "capability", route.Capability, "error", err)
		return g.deny(DashboardPath, ReasonNavigationError)
	}
	if !HasCapability(items, route.Capability) {
		return g.deny(DashboardPath, ReasonMissingCapability)
	}
	return Decision{Allowed: true}
}

func (g *RouteGuard) deny(to, reason string) Decision {
	g.metrics.GuardDenied(reason)
	return Decision{Redirect: to, Reason: reason}
}
