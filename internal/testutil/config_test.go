package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, "55432", cfg.Port)
		assert.Equal(t, "console", cfg.User)
		assert.Equal(t, "console", cfg.DBName)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_PORT", "5432")
		t.Setenv("DB_SSL_MODE", "")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "5432", cfg.Port)
		assert.Contains(t, cfg.DSN(), ":5432/")
		assert.Contains(t, cfg.DSN(), "sslmode=disable")
	})
}

func TestTokenWithExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := TokenWithExpiry(t, exp)

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	require.NoError(t, err)
	got, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))

	claims = jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(TokenWithExpiry(t, time.Time{}), claims)
	require.NoError(t, err)
	_, hasExp := claims["exp"]
	assert.False(t, hasExp)
}
