package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

// DefaultSessionTTL applies when the access token carries no usable exp claim.
const DefaultSessionTTL = 8 * time.Hour

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Persistence ports.SessionPersistence
	// DefaultTTL is used when the token has no exp claim. Zero means DefaultSessionTTL.
	DefaultTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// SessionManager opens SessionStores over a shared persistence and fans their
// publications out to process-wide observers.
type SessionManager struct {
	persistence ports.SessionPersistence
	defaultTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.RWMutex
	observers []ports.SessionObserver
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Persistence == nil {
		return nil, errors.New("session persistence is required")
	}
	m := &SessionManager{
		persistence: opts.Persistence,
		defaultTTL:  opts.DefaultTTL,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if m.defaultTTL <= 0 {
		m.defaultTTL = DefaultSessionTTL
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Subscribe registers an observer for every store opened by m.
func (m *SessionManager) Subscribe(obs ports.SessionObserver) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

func (m *SessionManager) notify(ev ports.SessionEvent) {
	m.mu.RLock()
	obs := slices.Clone(m.observers)
	m.mu.RUnlock()
	for _, fn := range obs {
		fn(ev)
	}
}

// Open loads the session stored under key. A missing record yields a
// signed-out store. A corrupt record is cleared as if SignOut were called and
// is never reported as an error; only persistence failures are returned.
// Open is called per request and publishes nothing for a healthy record.
func (m *SessionManager) Open(ctx context.Context, key string) (*SessionStore, error) {
	if key == "" {
		return nil, apperrors.ValidationField("session_key", "session key is required")
	}
	s := &SessionStore{key: key, mgr: m, subs: map[int]func(*domainauth.Identity){}}

	rec, err := m.persistence.Load(ctx, key)
	if errors.Is(err, ports.ErrSessionNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	identity, ok := decodeIdentity(rec)
	if !ok {
		m.logger.WarnContext(ctx, "discarding unreadable session", "session_key", redactKey(key))
		if err := s.SignOut(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.identity = identity
	s.token = rec.AccessToken
	return s, nil
}

// Restore opens key once at process start and publishes SessionRestored when
// a signed-in session was found.
func (m *SessionManager) Restore(ctx context.Context, key string) (*SessionStore, error) {
	s, err := m.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	if id := s.Current(); id != nil {
		m.notify(ports.SessionEvent{Key: key, Kind: ports.SessionRestored, Identity: id})
	}
	return s, nil
}

// Signer returns a SessionSigner that opens the store for key on each sign-in.
func (m *SessionManager) Signer(key string) SessionSigner {
	return keyedSigner{mgr: m, key: key}
}

type keyedSigner struct {
	mgr *SessionManager
	key string
}

func (k keyedSigner) SignIn(ctx context.Context, identity domainauth.Identity, token string) error {
	store, err := k.mgr.Open(ctx, k.key)
	if err != nil {
		return err
	}
	return store.SignIn(ctx, identity, token)
}

// ttlFor derives the persistence TTL from the token's exp claim. The token is
// not verified; the backend remains the authority on validity.
func (m *SessionManager) ttlFor(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return m.defaultTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return m.defaultTTL
	}
	ttl := exp.Sub(m.now())
	if ttl <= 0 {
		return m.defaultTTL
	}
	return ttl
}

// SessionSigner stores a freshly authenticated identity.
type SessionSigner interface {
	SignIn(ctx context.Context, identity domainauth.Identity, token string) error
}

// SessionStore holds one browser's (or the CLI's) identity and bearer token.
// Mutations persist first, then update memory, then publish. Publications from
// one store are delivered in mutation order.
type SessionStore struct {
	key string
	mgr *SessionManager

	// pub serialises persist+mutate+publish so observers see mutations in order
	// while still being free to call Current.
	pub sync.Mutex

	mu       sync.RWMutex
	identity *domainauth.Identity
	token    string
	subs     map[int]func(*domainauth.Identity)
	nextSub  int
}

var _ ports.TokenSource = (*SessionStore)(nil)

// Key returns the persistence key of this store.
func (s *SessionStore) Key() string { return s.key }

// Current returns a copy of the signed-in identity, or nil.
func (s *SessionStore) Current() *domainauth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneIdentity(s.identity)
}

// Token returns the bearer token, or "" when signed out.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether an identity is present.
func (s *SessionStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// Subscribe registers fn for every publication of this store and returns a
// function that removes it. fn must not mutate the store.
func (s *SessionStore) Subscribe(fn func(*domainauth.Identity)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// SignIn stamps the active role (admin when granted, else the first role),
// persists token and identity together, then publishes.
func (s *SessionStore) SignIn(ctx context.Context, identity domainauth.Identity, token string) error {
	if token == "" {
		return apperrors.ValidationField("access_token", "access token is required")
	}
	if len(identity.Roles) == 0 {
		return apperrors.ValidationField("roles", "identity has no roles")
	}

	next := identity.Clone()
	next.ActiveRole = domainauth.ResolveActiveRole(next.Roles)
	rec, err := encodeRecord(&next, token)
	if err != nil {
		return err
	}

	s.pub.Lock()
	defer s.pub.Unlock()

	if err := s.mgr.persistence.Save(ctx, s.key, rec, s.mgr.ttlFor(token)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.apply(&next, token, ports.SessionSignedIn)
	return nil
}

// SignOut clears both persisted keys and memory, then publishes nil. Idempotent.
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	if err := s.mgr.persistence.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.apply(nil, "", ports.SessionSignedOut)
	return nil
}

// SetActiveRole switches the active role. Roles the identity was not granted
// are ignored without error, as is a call while signed out. The read and the
// write happen under one lock, and persistence only rewrites a record that
// still exists: a session cleared by another request stays signed out.
func (s *SessionStore) SetActiveRole(ctx context.Context, role string) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.RLock()
	cur := cloneIdentity(s.identity)
	token := s.token
	s.mu.RUnlock()

	if cur == nil || !cur.HasRole(role) {
		return nil
	}
	cur.ActiveRole = role
	rec, err := encodeRecord(cur, token)
	if err != nil {
		return err
	}

	err = s.mgr.persistence.Update(ctx, s.key, rec, s.mgr.ttlFor(token))
	if errors.Is(err, ports.ErrSessionNotFound) {
		s.apply(nil, "", ports.SessionSignedOut)
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.apply(cur, token, ports.SessionRoleChanged)
	return nil
}

func encodeRecord(identity *domainauth.Identity, token string) (ports.SessionRecord, error) {
	payload, err := json.Marshal(identity)
	if err != nil {
		return ports.SessionRecord{}, fmt.Errorf("encode identity: %w", err)
	}
	return ports.SessionRecord{AccessToken: token, CurrentUser: string(payload)}, nil
}

// apply updates memory and publishes. Callers hold pub.
func (s *SessionStore) apply(identity *domainauth.Identity, token string, kind ports.SessionEventKind) {
	s.mu.Lock()
	s.identity = identity
	s.token = token
	subs := s.subscribers()
	s.mu.Unlock()

	s.publish(subs, kind, identity)
}

// subscribers must be called with mu held.
func (s *SessionStore) subscribers() []func(*domainauth.Identity) {
	out := make([]func(*domainauth.Identity), 0, len(s.subs))
	for i := range s.nextSub {
		if fn, ok := s.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (s *SessionStore) publish(subs []func(*domainauth.Identity), kind ports.SessionEventKind, identity *domainauth.Identity) {
	for _, fn := range subs {
		fn(cloneIdentity(identity))
	}
	s.mgr.notify(ports.SessionEvent{Key: s.key, Kind: kind, Identity: cloneIdentity(identity)})
}

// decodeIdentity accepts a record only when the token is present and the
// identity parses with at least one role. A missing or foreign active role is
// re-resolved.
func decodeIdentity(rec ports.SessionRecord) (*domainauth.Identity, bool) {
	if rec.AccessToken == "" || rec.CurrentUser == "" {
		return nil, false
	}
	var id domainauth.Identity
	if err := json.Unmarshal([]byte(rec.CurrentUser), &id); err != nil {
		return nil, false
	}
	if len(id.Roles) == 0 {
		return nil, false
	}
	if !id.HasRole(id.ActiveRole) {
		id.ActiveRole = domainauth.ResolveActiveRole(id.Roles)
	}
	return &id, true
}

func cloneIdentity(id *domainauth.Identity) *domainauth.Identity {
	if id == nil {
		return nil
	}
	c := id.Clone()
	return &c
}

// redactKey keeps log lines from carrying usable session keys.
func redactKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "..."
}
