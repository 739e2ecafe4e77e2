package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct{ n int }

func (c *countingSweeper) Sweep() int { c.n++; return 0 }

func TestNewRunner_RequiresWork(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	r, err := NewRunner(RunnerOptions{Flows: sweeper, Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err = r.Run(ctx)
	// The first pass runs once jitter ends, even when the deadline cut it short.
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, sweeper.n)
}
