package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/ports"
)

const (
	// DefaultFlowIdleTTL is how long an untouched login flow is kept.
	DefaultFlowIdleTTL = 10 * time.Minute
	// DefaultMaxFlows bounds the registry when no limit is configured.
	DefaultMaxFlows = 10000
)

// SignerFactory hands out a SessionSigner bound to a session key.
type SignerFactory interface {
	Signer(key string) SessionSigner
}

// AuthFlowRegistryOptions groups dependencies for AuthFlowRegistry.
type AuthFlowRegistryOptions struct {
	Backend  ports.AuthBackend
	Sessions SignerFactory
	IdleTTL  time.Duration
	MaxFlows int
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Now      func() time.Time
}

type flowEntry struct {
	flow     *AuthFlow
	lastUsed time.Time
}

// AuthFlowRegistry keeps one AuthFlow per browser session key. Flows live in
// process memory, so a deployment needs sticky sessions when it runs more than
// one replica. Idle flows are swept on insert at most once per idle TTL, and
// the registry never holds more than maxFlows entries.
type AuthFlowRegistry struct {
	backend  ports.AuthBackend
	sessions SignerFactory
	idleTTL  time.Duration
	maxFlows int
	logger   *slog.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	mu        sync.Mutex
	flows     map[string]*flowEntry
	lastSweep time.Time
}

// NewAuthFlowRegistry constructs an empty registry.
func NewAuthFlowRegistry(opts AuthFlowRegistryOptions) *AuthFlowRegistry {
	r := &AuthFlowRegistry{
		backend:  opts.Backend,
		sessions: opts.Sessions,
		idleTTL:  opts.IdleTTL,
		maxFlows: opts.MaxFlows,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		flows:    make(map[string]*flowEntry),
	}
	if r.idleTTL <= 0 {
		r.idleTTL = DefaultFlowIdleTTL
	}
	if r.maxFlows <= 0 {
		r.maxFlows = DefaultMaxFlows
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.lastSweep = r.now()
	return r
}

// Get returns the flow for key, creating it on first use.
func (r *AuthFlowRegistry) Get(key string) *AuthFlow {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.flows[key]; ok && now.Sub(e.lastUsed) < r.idleTTL {
		e.lastUsed = now
		return e.flow
	}
	r.makeRoomLocked(now)
	flow := NewAuthFlow(AuthFlowOptions{
		Backend: r.backend,
		Signer:  r.sessions.Signer(key),
		Logger:  r.logger,
		Metrics: r.metrics,
	})
	r.flows[key] = &flowEntry{flow: flow, lastUsed: now}
	return flow
}

// Lookup returns the live flow for key without creating one.
func (r *AuthFlowRegistry) Lookup(key string) (*AuthFlow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.flows[key]
	if !ok || now.Sub(e.lastUsed) >= r.idleTTL {
		return nil, false
	}
	e.lastUsed = now
	return e.flow, true
}

// makeRoomLocked sweeps idle flows when due or when full, then evicts the least
// recently used flow if the registry is still at capacity.
func (r *AuthFlowRegistry) makeRoomLocked(now time.Time) {
	if now.Sub(r.lastSweep) >= r.idleTTL || len(r.flows) >= r.maxFlows {
		r.sweepLocked(now)
	}
	if len(r.flows) < r.maxFlows {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, e := range r.flows {
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = key, e.lastUsed
		}
	}
	delete(r.flows, oldestKey)
	r.logger.Warn("login flow registry full; evicted oldest flow", "max_flows", r.maxFlows)
}

// Drop forgets the flow for key.
func (r *AuthFlowRegistry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, key)
}

// Len reports how many flows are held.
func (r *AuthFlowRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Sweep drops flows idle for longer than the idle TTL and returns how many were removed.
func (r *AuthFlowRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sweepLocked(r.now())
}

func (r *AuthFlowRegistry) sweepLocked(now time.Time) int {
	r.lastSweep = now
	n := 0
	for key, e := range r.flows {
		if now.Sub(e.lastUsed) >= r.idleTTL {
			delete(r.flows, key)
			n++
		}
	}
	return n
}
