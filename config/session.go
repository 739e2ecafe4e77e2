package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionBackend selects where signed-in sessions are persisted.
type SessionBackend string

const (
	// SessionBackendRedis stores sessions in Redis with native key expiry.
	SessionBackendRedis SessionBackend = "redis"
	// SessionBackendPostgres stores sessions in the console_sessions table.
	SessionBackendPostgres SessionBackend = "postgres"
	// SessionBackendFile stores sessions in a local JSON file (single replica, development).
	SessionBackendFile SessionBackend = "file"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "postgres", "file":
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: redis, postgres, file)", v)
	}
}

const (
	defaultSessionTTL  = 8 * time.Hour
	defaultFlowIdleTTL = 10 * time.Minute
	defaultMaxFlows    = 10000
)

// SessionConfig groups session persistence and login flow settings.
type SessionConfig struct {
	// Backend determines which persistence adapter is used.
	Backend SessionBackend `env:"BACKEND" envDefault:"redis"`

	// TTL applies when the access token carries no exp claim.
	TTL time.Duration `env:"TTL" envDefault:"8h"`

	// FlowIdleTTL is how long an untouched login flow is kept in memory.
	FlowIdleTTL time.Duration `env:"FLOW_IDLE_TTL" envDefault:"10m"`

	// MaxFlows caps in-memory login flows; the least recently used is evicted beyond it.
	MaxFlows int `env:"MAX_FLOWS" envDefault:"10000"`

	// RedisPrefix namespaces session keys when Backend=redis.
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"console:session:"`

	// FilePath is the session file when Backend=file. Empty uses the user config directory.
	FilePath string `env:"FILE_PATH"`
}

// Sanitize applies guardrails to session settings.
func (c *SessionConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = SessionBackendRedis
	}
	if c.TTL <= 0 {
		c.TTL = defaultSessionTTL
	}
	if c.FlowIdleTTL <= 0 {
		c.FlowIdleTTL = defaultFlowIdleTTL
	}
	if c.MaxFlows <= 0 {
		c.MaxFlows = defaultMaxFlows
	}
	c.FilePath = strings.TrimSpace(c.FilePath)
}
