package ports_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/target/mmk-console/internal/adapters/backend"
	"github.com/target/mmk-console/internal/adapters/filestore"
	redisadapter "github.com/target/mmk-console/internal/adapters/redis"
	mocks "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/ports"
)

// This test only verifies that adapters and doubles conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.SessionPersistence = (*mocks.MemoryPersistence)(nil)
	var _ ports.SessionPersistence = (*redisadapter.SessionPersistence)(nil)
	var _ ports.SessionPersistence = (*filestore.SessionFile)(nil)
	var _ ports.Backend = (*backend.Client)(nil)
	var _ ports.Backend = (*mocks.FakeBackend)(nil)
}

func TestTokenSourceContext(t *testing.T) {
	ctx := context.Background()
	_, ok := ports.TokenSourceFromContext(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, ports.WithTokenSource(ctx, nil))

	ctx = ports.WithTokenSource(ctx, ports.StaticToken("abc"))
	ts, ok := ports.TokenSourceFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", ts.Token())
}
