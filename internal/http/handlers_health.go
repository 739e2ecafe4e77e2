package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency of the console (session persistence, database).
type HealthCheck interface {
	Name() string
	Health(ctx context.Context) error
}

// healthHandler reports liveness plus the state of every registered check.
// Any failing check turns the answer into 503 so load balancers stop routing here.
func healthHandler(checks []HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok"}
		if len(checks) > 0 {
			results := make(map[string]string, len(checks))
			for _, c := range checks {
				if err := c.Health(ctx); err != nil {
					logger.WarnContext(ctx, "health check failed", "check", c.Name(), "error", err)
					results[c.Name()] = "unavailable"
					status = http.StatusServiceUnavailable
					body["status"] = "degraded"
					continue
				}
				results[c.Name()] = "ok"
			}
			body["checks"] = results
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			return
		}
		WriteJSON(w, status, body)
	}
}
