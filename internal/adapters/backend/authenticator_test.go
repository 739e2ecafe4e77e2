package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/ports"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func captureAuth(t *testing.T, a *Authenticator, ctx context.Context) string {
	t.Helper()
	var got string
	a.Base = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Get("Authorization")
		return httptest.NewRecorder().Result(), nil
	})
	req := httptest.NewRequest(http.MethodGet, "http://backend/api/x", nil).WithContext(ctx)
	resp, err := a.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Empty(t, req.Header.Get("Authorization"), "caller request must not be mutated")
	return got
}

func TestAuthenticator(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		source ports.TokenSource
		ctx    context.Context
		want   string
	}{
		{name: "no source", ctx: ctx, want: ""},
		{name: "empty token", source: ports.StaticToken(""), ctx: ctx, want: ""},
		{name: "default source", source: ports.StaticToken("abc"), ctx: ctx, want: "Bearer abc"},
		{
			name:   "context source wins",
			source: ports.StaticToken("abc"),
			ctx:    ports.WithTokenSource(ctx, ports.StaticToken("xyz")),
			want:   "Bearer xyz",
		},
		{
			name:   "empty context token sends nothing",
			source: ports.StaticToken("abc"),
			ctx:    ports.WithTokenSource(ctx, ports.StaticToken("")),
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Authenticator{Source: tt.source}
			assert.Equal(t, tt.want, captureAuth(t, a, tt.ctx))
		})
	}
}
