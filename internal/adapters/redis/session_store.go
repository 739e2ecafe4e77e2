package redis

// Package redis provides Redis-based adapters for the console.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/ports"
)

// DefaultPrefix namespaces session hashes in a shared Redis.
const DefaultPrefix = "console:session:"

// SessionPersistence stores each session as a Redis hash holding the
// access_token and currentUser fields, so both are written and cleared together.
type SessionPersistence struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionPersistence creates a Redis-backed session persistence with the default prefix.
func NewSessionPersistence(client redis.UniversalClient) *SessionPersistence {
	return NewSessionPersistenceWithPrefix(client, DefaultPrefix)
}

// NewSessionPersistenceWithPrefix creates a Redis session persistence with a custom key prefix.
func NewSessionPersistenceWithPrefix(client redis.UniversalClient, prefix string) *SessionPersistence {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionPersistence{client: client, prefix: prefix}
}

// Save replaces the hash atomically and applies ttl when positive.
func (s *SessionPersistence) Save(ctx context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}

	k := s.prefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k,
			domainauth.TokenKey, rec.AccessToken,
			domainauth.CurrentUserKey, rec.CurrentUser,
		)
		if ttl > 0 {
			pipe.Expire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// updateScript rewrites both fields only while the hash still exists.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], ARGV[3], ARGV[4])
if tonumber(ARGV[5]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

// Update rewrites the hash only if it still exists, so a concurrent Delete wins.
func (s *SessionPersistence) Update(ctx context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	if key == "" {
		return ports.ErrSessionNotFound
	}

	n, err := updateScript.Run(ctx, s.client, []string{s.prefix + key},
		domainauth.TokenKey, rec.AccessToken,
		domainauth.CurrentUserKey, rec.CurrentUser,
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis update session: %w", err)
	}
	if n == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

// Load returns ports.ErrSessionNotFound when the hash does not exist or holds no token.
func (s *SessionPersistence) Load(ctx context.Context, key string) (ports.SessionRecord, error) {
	if key == "" {
		return ports.SessionRecord{}, ports.ErrSessionNotFound
	}

	vals, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return ports.SessionRecord{}, fmt.Errorf("redis load session: %w", err)
	}
	if len(vals) == 0 {
		return ports.SessionRecord{}, ports.ErrSessionNotFound
	}

	return ports.SessionRecord{
		AccessToken: vals[domainauth.TokenKey],
		CurrentUser: vals[domainauth.CurrentUserKey],
	}, nil
}

// Delete removes the hash. Missing keys are not an error.
func (s *SessionPersistence) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
