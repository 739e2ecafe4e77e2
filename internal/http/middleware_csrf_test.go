package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func csrfEcho() http.Handler {
	return CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetCSRFToken(r)))
	}))
}

func TestCSRFProtection_IssuesCookieOnGet(t *testing.T) {
	w := httptest.NewRecorder()
	csrfEcho().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == DefaultCSRFCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected csrf cookie")
	}
	if cookie.HttpOnly {
		t.Error("csrf cookie must be readable by htmx")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("expected SameSite=Strict, got %v", cookie.SameSite)
	}
	if w.Body.String() != cookie.Value {
		t.Error("handler should see the issued token")
	}
}

func TestCSRFProtection_RejectsPostWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "abc"})
	w := httptest.NewRecorder()

	csrfEcho().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCSRFProtection_RejectsMismatchedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "abc"})
	req.Header.Set(DefaultCSRFHeaderName, "abd")
	w := httptest.NewRecorder()

	csrfEcho().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCSRFProtection_AcceptsFormField(t *testing.T) {
	form := url.Values{DefaultCSRFCookieName: {"abc"}, "email": {"ada@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "abc"})
	w := httptest.NewRecorder()

	csrfEcho().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCSRFProtection_RejectsJSONBodyWithoutHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"csrf_token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "abc"})
	w := httptest.NewRecorder()

	csrfEcho().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestIsSecureRequest(t *testing.T) {
	cases := map[string]bool{
		"":            false,
		"http":        false,
		"https":       true,
		"http, HTTPS": true,
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("X-Forwarded-Proto", header)
		}
		if got := isSecureRequest(r); got != want {
			t.Errorf("X-Forwarded-Proto %q: got %v, want %v", header, got, want)
		}
	}
}
