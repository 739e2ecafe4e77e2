package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-console/internal/observability/statsd"
)

// DefaultJanitorInterval is how often idle flows and expired sessions are cleared.
const DefaultJanitorInterval = time.Minute

// ExpiredSessionPurger removes persisted sessions whose expiry has passed.
type ExpiredSessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// FlowSweeper drops idle login flows.
type FlowSweeper interface {
	Sweep() int
}

// JanitorServiceOptions groups dependencies for JanitorService.
type JanitorServiceOptions struct {
	Flows    FlowSweeper          // Optional: login flow registry
	Sessions ExpiredSessionPurger // Optional: only SQL persistence needs purging
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// JanitorService periodically drops idle login flows and purges expired
// sessions from storage that has no native expiry.
type JanitorService struct {
	flows    FlowSweeper
	sessions ExpiredSessionPurger
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewJanitorService constructs a JanitorService.
func NewJanitorService(opts JanitorServiceOptions) (*JanitorService, error) {
	if opts.Flows == nil && opts.Sessions == nil {
		return nil, errors.New("janitor needs at least one of flows or sessions")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JanitorService{
		flows:    opts.Flows,
		sessions: opts.Sessions,
		interval: interval,
		logger:   logger.With("component", "janitor_service"),
		metrics:  opts.Metrics,
	}, nil
}

// Run cleans up at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown.
func (s *JanitorService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting janitor", "interval", s.interval)

	// Replicas started together should not purge in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && !isContextCancellation(err) {
			s.logger.ErrorContext(ctx, "janitor cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "janitor stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single cleanup pass.
func (s *JanitorService) RunOnce(ctx context.Context) error {
	start := time.Now()
	var flows int
	if s.flows != nil {
		flows = s.flows.Sweep()
		if flows > 0 {
			s.logger.DebugContext(ctx, "dropped idle login flows", "count", flows)
		}
	}

	var (
		purged int64
		err    error
	)
	if s.sessions != nil {
		purged, err = s.sessions.PurgeExpired(ctx)
		if err != nil {
			err = fmt.Errorf("purge expired sessions: %w", err)
		} else if purged > 0 {
			s.logger.InfoContext(ctx, "purged expired sessions", "count", purged)
		}
	}

	s.emit(flows, purged, err, time.Since(start))
	return err
}

func (s *JanitorService) emit(flows int, purged int64, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	tags := map[string]string{"result": result}
	s.metrics.Count("janitor.flows_dropped", int64(flows), tags)
	s.metrics.Count("janitor.sessions_purged", purged, tags)
	s.metrics.Timing("janitor.duration", elapsed, tags)
}

// waitWithJitter sleeps up to 10% of the interval.
func (s *JanitorService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
