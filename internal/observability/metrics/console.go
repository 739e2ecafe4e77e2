// Package metrics records console-level events to StatsD and Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultPending = "pending"
)

// Recorder fans console events out to an optional StatsD sink and a Prometheus
// registry. A nil *Recorder drops everything.
type Recorder struct {
	sink     statsd.Sink
	registry *prometheus.Registry

	authAttempts  *prometheus.CounterVec
	guardDenials  *prometheus.CounterVec
	sessionEvents *prometheus.CounterVec
	backendCalls  *prometheus.HistogramVec
}

// NewRecorder builds a Recorder with its own Prometheus registry.
// sink may be nil when StatsD is disabled.
func NewRecorder(sink statsd.Sink) *Recorder {
	r := &Recorder{
		sink:     sink,
		registry: prometheus.NewRegistry(),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Name:      "auth_attempts_total",
			Help:      "Login, OTP and signup attempts by step and result.",
		}, []string{"step", "result", "error_class"}),
		guardDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Name:      "route_guard_denials_total",
			Help:      "Route guard redirects by reason.",
		}, []string{"reason"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Name:      "session_events_total",
			Help:      "Session store publications by event.",
		}, []string{"event"}),
		backendCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "console",
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of REST backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	r.registry.MustRegister(r.authAttempts, r.guardDenials, r.sessionEvents, r.backendCalls)
	return r
}

// Handler serves the Prometheus exposition for this recorder.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and additional collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// AuthAttempt records the outcome of a login step ("check_email", "login", "otp", "signup").
func (r *Recorder) AuthAttempt(step, result string, err error) {
	if r == nil {
		return
	}
	class := ErrorClass(err)
	r.authAttempts.WithLabelValues(step, result, class).Inc()
	r.count("auth.attempt", map[string]string{"step": step, "result": result, "error_class": class})
}

// GuardDenied records a route guard redirect.
func (r *Recorder) GuardDenied(reason string) {
	if r == nil {
		return
	}
	r.guardDenials.WithLabelValues(reason).Inc()
	r.count("route_guard.denied", map[string]string{"reason": reason})
}

// SessionEvent records a session store publication ("sign_in", "sign_out", "role_change", "restore").
func (r *Recorder) SessionEvent(event string) {
	if r == nil {
		return
	}
	r.sessionEvents.WithLabelValues(event).Inc()
	r.count("session.event", map[string]string{"event": event})
}

// BackendCall records one REST call; status 0 means no response was received.
func (r *Recorder) BackendCall(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	code := strconv.Itoa(status)
	if status == 0 {
		code = "none"
	}
	r.backendCalls.WithLabelValues(method, code).Observe(d.Seconds())
	if r.sink != nil {
		r.sink.Timing("backend.request", d, map[string]string{"method": method, "status": code})
	}
}

func (r *Recorder) count(name string, tags map[string]string) {
	if r.sink != nil {
		r.sink.Count(name, 1, tags)
	}
}

// ErrorClass maps an error to its application error code for tagging.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	return "unknown"
}
