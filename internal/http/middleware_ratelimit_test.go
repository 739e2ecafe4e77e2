package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiterAllow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(RateLimitConfig{PerMinute: 6, Burst: 2, Now: clock.Now})
	require.NotNil(t, l)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "clients are independent")

	clock.Advance(10 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refills every 10s")
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(RateLimitConfig{PerMinute: 1, Now: clock.Now})

	l.Allow("a")
	clock.Advance(11 * time.Minute)
	l.Allow("b")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "a")
	assert.Contains(t, l.clients, "b")
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{})
	assert.Nil(t, l)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	l.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiterClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.RemoteAddr = "192.0.2.7:5123"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	direct := NewRateLimiter(RateLimitConfig{PerMinute: 1})
	assert.Equal(t, "192.0.2.7", direct.clientKey(r))

	proxied := NewRateLimiter(RateLimitConfig{PerMinute: 1, TrustProxy: true})
	assert.Equal(t, "203.0.113.9", proxied.clientKey(r))
}

func TestLoginSubmissionsAreThrottled(t *testing.T) {
	f := newConsoleFixture(t, loginBackend(), withRateLimit(NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 1})))

	form := url.Values{"email": {"ghost@example.com"}}
	first := f.do(t, http.MethodPost, "/login", requestOpts{sessionKey: "k1", form: form})
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, http.MethodPost, "/login", requestOpts{sessionKey: "k1", form: form})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, 1, f.backend.CallCount("CheckEmail"))

	page := f.do(t, http.MethodGet, "/login", requestOpts{})
	assert.Equal(t, http.StatusOK, page.Code, "page loads are never throttled")
}
