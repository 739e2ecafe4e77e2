package httpx

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	console "github.com/target/mmk-console"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions   *service.SessionManager
	Flows      *service.AuthFlowRegistry
	Signup     *service.SignupService
	Navigation *service.NavigationResolver
	Guard      *service.RouteGuard
	Admin      ports.AdminBackend
	Catalog    *domainauth.CapabilityCatalog
	Metrics    *metrics.Recorder
	// RateLimit throttles credential submissions; nil disables it.
	RateLimit    *RateLimiter
	HealthChecks []HealthCheck
	CookieDomain string
	// TemplateFS overrides the template source; nil picks disk (dev) or the embedded tree.
	TemplateFS fs.FS
	IsDev      bool
	Logger     *slog.Logger
}

// NewRouter creates the BFF router with logging, panic recovery, CSRF protection and session loading.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := services.Catalog
	if catalog == nil {
		catalog = domainauth.DefaultCatalog()
	}

	templateFS, err := templateSource(services)
	if err != nil {
		return nil, err
	}
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create template renderer: %w", err)
	}

	auth := &AuthHandlers{
		T:            tr,
		Sessions:     services.Sessions,
		Flows:        services.Flows,
		Signup:       services.Signup,
		CookieDomain: services.CookieDomain,
		Logger:       logger,
	}
	ui := &UIHandlers{
		T:          tr,
		Navigation: services.Navigation,
		Admin:      services.Admin,
		Signup:     services.Signup,
		Catalog:    catalog,
		IsDev:      services.IsDev,
		Logger:     logger,
	}

	mux := http.NewServeMux()
	health := healthHandler(services.HealthChecks, logger)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	mux.Handle("GET /metrics", services.Metrics.Handler())

	registerAuthRoutes(mux, auth, services.RateLimit)
	registerDashboardRoutes(mux, ui, services.Guard)

	// Unmatched paths, including "/", land on the login page.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		Redirect(w, r, service.LoginPath)
	})

	var h http.Handler = mux
	h = LoadSession(services.Sessions, logger)(h)
	h = CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})(h)
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return h, nil
}

func templateSource(services RouterServices) (fs.FS, error) {
	if services.TemplateFS != nil {
		return services.TemplateFS, nil
	}
	if services.IsDev {
		return os.DirFS(TemplatePathFromRoot), nil
	}
	sub, err := fs.Sub(console.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}
	return sub, nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, limiter *RateLimiter) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.Handle("POST /login", limiter.Middleware(http.HandlerFunc(h.LoginSubmit)))
	mux.HandleFunc("POST /login/reset", h.LoginReset)
	mux.HandleFunc("GET /signup", h.SignupPage)
	mux.Handle("POST /signup", limiter.Middleware(http.HandlerFunc(h.SignupSubmit)))
	mux.HandleFunc("POST /logout", h.Logout)
}

// registerDashboardRoutes wires the shell plus one guarded route per catalog capability.
func registerDashboardRoutes(mux *http.ServeMux, h *UIHandlers, guard *service.RouteGuard) {
	session := RequireSession(guard)
	mux.Handle("GET /dashboard", session(http.HandlerFunc(h.Home)))
	mux.Handle("GET /dashboard/{$}", session(http.HandlerFunc(h.Home)))
	mux.Handle("POST /dashboard/role", session(http.HandlerFunc(h.SwitchRole)))

	for _, c := range h.Catalog.Capabilities {
		wrap := RequireRoute(guard, service.Route{Path: c.Route(), Capability: c.Key})
		mux.Handle("GET "+c.Route(), wrap(h.Feature(c)))
		for _, a := range adminActions(h, c.Key) {
			mux.Handle("POST "+c.Route()+a.suffix, wrap(http.HandlerFunc(a.handler)))
		}
	}
}

type adminAction struct {
	suffix  string
	handler http.HandlerFunc
}

// adminActions lists the form posts served under a base admin capability's route.
func adminActions(h *UIHandlers, key domainauth.CapabilityKey) []adminAction {
	switch key {
	case domainauth.CapabilityUserManagement:
		return []adminAction{
			{"", h.CreateUser},
			{"/{id}", h.UpdateUser},
			{"/{id}/roles", h.AssignUserRoles},
			{"/{id}/delete", h.DeleteUser},
		}
	case domainauth.CapabilityRoleManagement:
		return []adminAction{
			{"", h.CreateRole},
			{"/{id}", h.UpdateRole},
			{"/{id}/delete", h.DeleteRole},
		}
	case domainauth.CapabilityComponentManagement:
		return []adminAction{
			{"/assign", h.AssignComponent},
			{"/grants/{id}", h.UpdateGrant},
			{"/signup-config", h.UpdateSignupConfig},
		}
	default:
		return nil
	}
}
