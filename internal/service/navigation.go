package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

// DefaultNavigationExpr selects the item list from the navigation envelope.
const DefaultNavigationExpr = "navigation"

// NavigationResolver fetches the navigation items the backend allows for the
// caller. It performs no filtering or caching.
type NavigationResolver struct {
	backend ports.NavigationBackend
	expr    string
}

// NewNavigationResolver validates expr (empty means DefaultNavigationExpr).
func NewNavigationResolver(backend ports.NavigationBackend, expr string) (*NavigationResolver, error) {
	if backend == nil {
		return nil, fmt.Errorf("navigation backend is required")
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultNavigationExpr
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid navigation expression %q: %w", expr, err)
	}
	return &NavigationResolver{backend: backend, expr: expr}, nil
}

// FetchNavigation calls the backend with tokens and unwraps the envelope.
// A missing or null list yields an empty slice.
func (r *NavigationResolver) FetchNavigation(ctx context.Context, tokens ports.TokenSource) ([]domainauth.NavigationItem, error) {
	envelope, err := r.backend.NavigationEnvelope(ports.WithTokenSource(ctx, tokens))
	if err != nil {
		return nil, err
	}

	raw, err := jmespath.Search(r.expr, envelope)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTransport, "Unexpected navigation response")
	}
	if raw == nil {
		return []domainauth.NavigationItem{}, nil
	}
	if _, ok := raw.([]any); !ok {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrCodeTransport,
			Message: "Unexpected navigation response",
			Cause:   fmt.Errorf("navigation list has type %T", raw),
		}
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode navigation list: %w", err)
	}
	items := []domainauth.NavigationItem{}
	if err := json.Unmarshal(buf, &items); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTransport, "Unexpected navigation response")
	}
	return items, nil
}

// HasCapability reports whether items contain an entry named key.
func HasCapability(items []domainauth.NavigationItem, key domainauth.CapabilityKey) bool {
	for _, it := range items {
		if it.Name == string(key) {
			return true
		}
	}
	return false
}

// MenuEntry is a navigation item paired with its dashboard route.
// Route is empty for keys missing from the catalog.
type MenuEntry struct {
	domainauth.NavigationItem
	Route string
}

// BuildMenu maps items to routes through catalog, keeping backend order.
// Unknown keys are kept without a route.
func BuildMenu(items []domainauth.NavigationItem, catalog *domainauth.CapabilityCatalog) []MenuEntry {
	out := make([]MenuEntry, 0, len(items))
	for _, it := range items {
		entry := MenuEntry{NavigationItem: it}
		if capability, ok := catalog.Lookup(it.Name); ok {
			entry.Route = capability.Route()
		}
		out = append(out, entry)
	}
	return out
}
