package backend

import (
	"net/http"

	"github.com/target/mmk-console/internal/ports"
	"golang.org/x/oauth2"
)

// Authenticator is an http.RoundTripper that attaches "Authorization: Bearer <token>"
// when a token is available. A token source on the request context takes
// precedence over Source. With no token the request is forwarded unmodified.
type Authenticator struct {
	Source ports.TokenSource
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	tok := a.token(req)
	if tok == "" {
		return a.base().RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}).SetAuthHeader(clone)
	return a.base().RoundTrip(clone)
}

func (a *Authenticator) token(req *http.Request) string {
	if ts, ok := ports.TokenSourceFromContext(req.Context()); ok {
		return ts.Token()
	}
	if a.Source != nil {
		return a.Source.Token()
	}
	return ""
}

func (a *Authenticator) base() http.RoundTripper {
	if a.Base != nil {
		return a.Base
	}
	return http.DefaultTransport
}
