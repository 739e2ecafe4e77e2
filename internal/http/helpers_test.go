package httpx

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	console "github.com/target/mmk-console"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	mockauth "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/service"
)

const (
	testCSRF  = "test-csrf-token"
	testToken = "tok-1"
)

type consoleFixture struct {
	backend     *mockauth.FakeBackend
	persistence *mockauth.MemoryPersistence
	sessions    *service.SessionManager
	flows       *service.AuthFlowRegistry
	metrics     *metrics.Recorder
	handler     http.Handler
}

type fixtureOption func(*RouterServices)

func withHealthChecks(checks ...HealthCheck) fixtureOption {
	return func(s *RouterServices) { s.HealthChecks = checks }
}

func withRateLimit(l *RateLimiter) fixtureOption {
	return func(s *RouterServices) { s.RateLimit = l }
}

func newConsoleFixture(t *testing.T, backend *mockauth.FakeBackend, opts ...fixtureOption) *consoleFixture {
	t.Helper()
	if backend == nil {
		backend = &mockauth.FakeBackend{}
	}
	persistence := mockauth.NewMemoryPersistence()
	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Persistence: persistence,
		DefaultTTL:  time.Hour,
	})
	require.NoError(t, err)

	rec := metrics.NewRecorder(nil)
	nav, err := service.NewNavigationResolver(backend, "")
	require.NoError(t, err)
	flows := service.NewAuthFlowRegistry(service.AuthFlowRegistryOptions{
		Backend:  backend,
		Sessions: sessions,
		Metrics:  rec,
	})

	templates, err := fs.Sub(console.TemplateFS, TemplatePathFromRoot)
	require.NoError(t, err)

	svcs := RouterServices{
		Sessions:   sessions,
		Flows:      flows,
		Signup:     service.NewSignupService(service.SignupServiceOptions{Backend: backend, Metrics: rec}),
		Navigation: nav,
		Guard:      service.NewRouteGuard(service.RouteGuardOptions{Navigation: nav, Metrics: rec}),
		Admin:      backend,
		Catalog:    domainauth.DefaultCatalog(),
		Metrics:    rec,
		TemplateFS: templates,
	}
	for _, opt := range opts {
		opt(&svcs)
	}
	h, err := NewRouter(svcs)
	require.NoError(t, err)

	return &consoleFixture{
		backend:     backend,
		persistence: persistence,
		sessions:    sessions,
		flows:       flows,
		metrics:     rec,
		handler:     h,
	}
}

// signIn persists a session for key as if the login flow had completed.
func (f *consoleFixture) signIn(t *testing.T, key string, id domainauth.Identity) {
	t.Helper()
	require.NoError(t, f.sessions.Signer(key).SignIn(context.Background(), id, testToken))
}

func (f *consoleFixture) persisted(t *testing.T, key string) (domainauth.Identity, bool) {
	t.Helper()
	rec, ok := f.persistence.Record(key)
	if !ok {
		return domainauth.Identity{}, false
	}
	var id domainauth.Identity
	require.NoError(t, json.Unmarshal([]byte(rec.CurrentUser), &id))
	return id, true
}

type requestOpts struct {
	sessionKey string
	form       url.Values
	htmx       bool
	noCSRF     bool
}

func (f *consoleFixture) do(t *testing.T, method, target string, o requestOpts) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if o.form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(o.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if !o.noCSRF {
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
		req.Header.Set(DefaultCSRFHeaderName, testCSRF)
	}
	if o.sessionKey != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: o.sessionKey})
	}
	if o.htmx {
		req.Header.Set("Hx-Request", "true")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func adminIdentity() domainauth.Identity {
	return domainauth.Identity{ID: 1, Email: "ada@example.com", FullName: "Ada Admin", Roles: []string{"admin", "user"}}
}

func navItem(key domainauth.CapabilityKey, label string) domainauth.NavigationItem {
	return domainauth.NavigationItem{Name: string(key), Label: label}
}
