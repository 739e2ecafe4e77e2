package httpx

import (
	"context"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/service"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session store.
// If store is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, store *service.SessionStore) context.Context {
	if store == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, store)
}

// GetSessionFromContext returns the session store loaded for this request and whether one was present.
func GetSessionFromContext(ctx context.Context) (*service.SessionStore, bool) {
	store, ok := ctx.Value(sessionKey{}).(*service.SessionStore)
	return store, ok && store != nil
}

// CurrentIdentity returns a copy of the signed-in identity, or nil for anonymous requests.
func CurrentIdentity(ctx context.Context) *domainauth.Identity {
	store, ok := GetSessionFromContext(ctx)
	if !ok {
		return nil
	}
	return store.Current()
}

// sessionView converts the request's store into a guard view. A missing store
// yields an untyped nil so the guard sees "no session".
func sessionView(ctx context.Context) service.SessionView {
	store, ok := GetSessionFromContext(ctx)
	if !ok {
		return nil
	}
	return store
}
