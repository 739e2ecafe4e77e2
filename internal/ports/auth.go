package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// ErrSessionNotFound is returned by SessionPersistence when no record exists for a key.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the raw persisted pairing of bearer token and serialized identity.
// CurrentUser is kept as the stored text so that a malformed payload can be detected
// and handled by the session store rather than the storage adapter.
type SessionRecord struct {
	AccessToken string
	CurrentUser string
}

// SessionPersistence stores session records durably.
type SessionPersistence interface {
	Load(ctx context.Context, key string) (SessionRecord, error)
	// Save writes both fields together. A non-positive ttl means no expiry.
	Save(ctx context.Context, key string, rec SessionRecord, ttl time.Duration) error
	// Update rewrites an existing record and never creates one. A missing or
	// expired key yields ErrSessionNotFound.
	Update(ctx context.Context, key string, rec SessionRecord, ttl time.Duration) error
	// Delete is idempotent; a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// TokenSource yields the bearer token to attach to outgoing backend requests.
// An empty token means the request is sent without credentials.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() string { return string(s) }

type tokenSourceKey struct{}

// WithTokenSource returns a child context whose backend calls authenticate with ts.
func WithTokenSource(ctx context.Context, ts TokenSource) context.Context {
	if ts == nil {
		return ctx
	}
	return context.WithValue(ctx, tokenSourceKey{}, ts)
}

// TokenSourceFromContext returns the token source attached by WithTokenSource.
func TokenSourceFromContext(ctx context.Context) (TokenSource, bool) {
	ts, ok := ctx.Value(tokenSourceKey{}).(TokenSource)
	return ts, ok && ts != nil
}

// LoginInput groups credentials for a password login.
type LoginInput struct {
	Email    string
	Password string
	Role     string
}

// OTPInput groups the fields for second-factor verification.
type OTPInput struct {
	Email string
	OTP   string
	Role  string
}

// SignupInput groups self-service registration fields.
type SignupInput struct {
	Email    string
	Password string
	Role     string
	FullName string
}

// AuthBackend is the unauthenticated part of the backend used by the login and signup flows.
type AuthBackend interface {
	CheckEmail(ctx context.Context, email string) (domainauth.EmailCheck, error)
	Login(ctx context.Context, in LoginInput) (domainauth.AuthResult, error)
	VerifyOTP(ctx context.Context, in OTPInput) (domainauth.AuthResult, error)
	Signup(ctx context.Context, in SignupInput) (domainauth.AuthResult, error)
	SignupConfig(ctx context.Context) (domainauth.AuthConfig, error)
}

// NavigationBackend returns the raw navigation envelope for the authenticated caller.
type NavigationBackend interface {
	NavigationEnvelope(ctx context.Context) (any, error)
}

// AdminBackend covers the authenticated admin screens.
type AdminBackend interface {
	Me(ctx context.Context) (domainauth.Identity, error)
	UpdateSignupConfig(ctx context.Context, enabled bool) (domainauth.AuthConfig, error)

	ListUsers(ctx context.Context) ([]domainauth.User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (domainauth.User, error)
	UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (domainauth.User, error)
	DeleteUser(ctx context.Context, id int64) error

	ListRoles(ctx context.Context) ([]domainauth.Role, error)
	GetRole(ctx context.Context, id int64) (domainauth.Role, error)
	CreateRole(ctx context.Context, in RoleInput) (domainauth.Role, error)
	UpdateRole(ctx context.Context, id int64, in RoleInput) (domainauth.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	AssignRoles(ctx context.Context, userID int64, roleNames []string) error

	ListComponents(ctx context.Context) (domainauth.ComponentList, error)
	UserComponents(ctx context.Context) ([]string, error)
	RoleComponents(ctx context.Context, role string) ([]string, error)
	ComponentAccess(ctx context.Context, id int64) ([]domainauth.ComponentAccess, error)
	UpdateComponentAccess(ctx context.Context, id int64, in domainauth.ComponentAccess) (domainauth.ComponentAccess, error)
	AssignComponent(ctx context.Context, role, component string, hasAccess bool) (domainauth.ComponentAccess, error)
}

// Backend is the full REST surface consumed by the console.
type Backend interface {
	AuthBackend
	NavigationBackend
	AdminBackend
}

// CreateUserInput groups fields for creating a user from the admin screens.
type CreateUserInput struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
	FullName string   `json:"full_name,omitempty"`
}

// UpdateUserInput groups mutable user fields. Nil fields are left unchanged.
type UpdateUserInput struct {
	FullName *string  `json:"full_name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// RoleInput groups role fields for create and update.
type RoleInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// SessionEventKind names what caused a session publication.
type SessionEventKind string

const (
	SessionSignedIn    SessionEventKind = "sign_in"
	SessionSignedOut   SessionEventKind = "sign_out"
	SessionRoleChanged SessionEventKind = "role_change"
	SessionRestored    SessionEventKind = "restore"
)

// SessionEvent is delivered to SessionObservers. Identity is nil after sign-out.
type SessionEvent struct {
	Key      string
	Kind     SessionEventKind
	Identity *domainauth.Identity
}

// SessionObserver receives every publication from every session store of a manager.
type SessionObserver func(SessionEvent)
