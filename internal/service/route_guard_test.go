package service

import (
	"context"
	"errors"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	mocks "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
)

func signedInStore(t *testing.T) *SessionStore {
	t.Helper()
	mgr, _ := newTestManager(t, mocks.NewMemoryPersistence())
	store := openStore(t, mgr, "k1")
	require.NoError(t, store.SignIn(context.Background(), domainauth.Identity{ID: 1, Roles: []string{"user"}}, "tok"))
	return store
}

func newGuard(t *testing.T, backend *mocks.FakeBackend, rec *metrics.Recorder) *RouteGuard {
	t.Helper()
	nav, err := NewNavigationResolver(backend, "")
	require.NoError(t, err)
	return NewRouteGuard(RouteGuardOptions{Navigation: nav, Metrics: rec})
}

func TestRouteGuard_NoSessionRedirectsToLogin(t *testing.T) {
	backend := &mocks.FakeBackend{NavigationEnvelopeFunc: mocks.NavigationWith(domainauth.NavigationItem{Name: "NORMAL_CHAT"})}
	guard := newGuard(t, backend, nil)
	mgr, _ := newTestManager(t, mocks.NewMemoryPersistence())
	anonymous := openStore(t, mgr, "anon")

	routes := ProtectedRoutes(domainauth.DefaultCatalog())
	require.Greater(t, len(routes), 1)

	for _, route := range routes {
		t.Run(route.Path, func(t *testing.T) {
			d := guard.Check(context.Background(), anonymous, route)
			assert.False(t, d.Allowed)
			assert.Equal(t, LoginPath, d.Redirect)
			assert.Equal(t, ReasonNoSession, d.Reason)
		})
	}
	assert.Zero(t, backend.CallCount("NavigationEnvelope"), "no capability lookup without a session")

	d := guard.Check(context.Background(), nil, Route{Path: DashboardPath})
	assert.Equal(t, LoginPath, d.Redirect)
}

func TestRouteGuard_CapabilityGate(t *testing.T) {
	backend := &mocks.FakeBackend{NavigationEnvelopeFunc: mocks.NavigationWith(
		domainauth.NavigationItem{Name: "NORMAL_CHAT"},
		domainauth.NavigationItem{Name: "USER_MANAGEMENT"},
	)}
	rec := metrics.NewRecorder(nil)
	guard := newGuard(t, backend, rec)
	store := signedInStore(t)
	catalog := domainauth.DefaultCatalog()

	for _, route := range ProtectedRoutes(catalog) {
		t.Run(route.Path, func(t *testing.T) {
			d := guard.Check(context.Background(), store, route)
			switch route.Capability {
			case "", domainauth.CapabilityNormalChat, domainauth.CapabilityUserManagement:
				assert.True(t, d.Allowed)
				assert.Empty(t, d.Redirect)
			default:
				assert.False(t, d.Allowed)
				assert.Equal(t, DashboardPath, d.Redirect)
				assert.Equal(t, ReasonMissingCapability, d.Reason)
			}
		})
	}

	for _, tok := range backend.Tokens() {
		assert.Equal(t, "tok", tok)
	}
	n, err := promtestutil.GatherAndCount(rec.Registry(), "console_route_guard_denials_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "denials are recorded under a single reason")
}

func TestRouteGuard_FailsClosed(t *testing.T) {
	backend := &mocks.FakeBackend{NavigationEnvelopeFunc: func(context.Context) (any, error) {
		return nil, errors.New("backend down")
	}}
	guard := newGuard(t, backend, nil)
	store := signedInStore(t)

	d := guard.Check(context.Background(), store, Route{Path: "/dashboard/chat", Capability: domainauth.CapabilityNormalChat})
	assert.False(t, d.Allowed)
	assert.Equal(t, DashboardPath, d.Redirect)
	assert.Equal(t, ReasonNavigationError, d.Reason)

	home := guard.Check(context.Background(), store, Route{Path: DashboardPath})
	assert.True(t, home.Allowed, "home only needs a session")
}

func TestRouteGuard_NoNavigationSource(t *testing.T) {
	guard := NewRouteGuard(RouteGuardOptions{})
	d := guard.Check(context.Background(), signedInStore(t), Route{Path: "/dashboard/rag", Capability: domainauth.CapabilityAgenticRAG})
	assert.False(t, d.Allowed)
	assert.Equal(t, DashboardPath, d.Redirect)
}
