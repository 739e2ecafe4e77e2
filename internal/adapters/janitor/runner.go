// Package janitor provides an adapter for running the session janitor.
package janitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-console/internal/data"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/service"
)

// Runner constructs the janitor service and runs its loop.
type Runner struct {
	janitor *service.JanitorService
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	// DB enables purging of the console_sessions table. Nil when sessions live in Redis or memory.
	DB       *sql.DB
	Flows    service.FlowSweeper
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink

	// Sessions overrides the purger built from DB.
	Sessions service.ExpiredSessionPurger
}

// NewRunner creates a new janitor runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Flows == nil && opts.DB == nil && opts.Sessions == nil {
		return nil, errors.New("janitor runner has nothing to clean")
	}

	purger := opts.Sessions
	if purger == nil && opts.DB != nil {
		purger = data.NewSessionRepo(opts.DB)
	}

	svc, err := service.NewJanitorService(service.JanitorServiceOptions{
		Flows:    opts.Flows,
		Sessions: purger,
		Interval: opts.Interval,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire janitor service: %w", err)
	}
	return &Runner{janitor: svc, logger: opts.Logger}, nil
}

// Run starts the janitor loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting janitor runner")
	return r.janitor.Run(ctx)
}
