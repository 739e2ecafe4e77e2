package httpx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mockauth "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/service"
)

func TestSessionContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := GetSessionFromContext(ctx)
	assert.False(t, ok)
	assert.Nil(t, CurrentIdentity(ctx))
	assert.Nil(t, sessionView(ctx), "guard must see an untyped nil")
	assert.Equal(t, ctx, SetSessionInContext(ctx, nil))

	mgr, err := service.NewSessionManager(service.SessionManagerOptions{
		Persistence: mockauth.NewMemoryPersistence(),
		DefaultTTL:  time.Hour,
	})
	require.NoError(t, err)
	store, err := mgr.Open(ctx, "k1")
	require.NoError(t, err)

	ctx = SetSessionInContext(ctx, store)
	got, ok := GetSessionFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, store, got)
	assert.Nil(t, CurrentIdentity(ctx), "anonymous store")

	require.NoError(t, store.SignIn(ctx, adminIdentity(), testToken))
	id := CurrentIdentity(ctx)
	require.NotNil(t, id)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.NotNil(t, sessionView(ctx))
}
