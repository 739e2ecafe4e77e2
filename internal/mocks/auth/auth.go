package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionPersistence = (*MemoryPersistence)(nil)
	_ ports.Backend            = (*FakeBackend)(nil)
)

// ErrNotConfigured is returned by FakeBackend methods without a configured func.
var ErrNotConfigured = errors.New("fake backend: method not configured")

// MemoryPersistence is an in-memory SessionPersistence with failure injection.
type MemoryPersistence struct {
	mu      sync.Mutex
	records map[string]ports.SessionRecord
	ttls    map[string]time.Duration

	// SaveErr, UpdateErr and DeleteErr, when set, are returned instead of mutating state.
	SaveErr   error
	UpdateErr error
	DeleteErr error
	LoadErr   error

	SaveCalls   int
	UpdateCalls int
	DeleteCalls int
}

// NewMemoryPersistence creates an empty MemoryPersistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		records: make(map[string]ports.SessionRecord),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *MemoryPersistence) Load(_ context.Context, key string) (ports.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return ports.SessionRecord{}, m.LoadErr
	}
	rec, ok := m.records[key]
	if !ok {
		return ports.SessionRecord{}, ports.ErrSessionNotFound
	}
	return rec, nil
}

func (m *MemoryPersistence) Save(_ context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.ensure()
	m.records[key] = rec
	m.ttls[key] = ttl
	return nil
}

func (m *MemoryPersistence) Update(_ context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.records[key]; !ok {
		return ports.ErrSessionNotFound
	}
	m.records[key] = rec
	m.ttls[key] = ttl
	return nil
}

func (m *MemoryPersistence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.records, key)
	delete(m.ttls, key)
	return nil
}

// Put seeds a raw record, bypassing SaveErr and call counting.
func (m *MemoryPersistence) Put(key string, rec ports.SessionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()
	m.records[key] = rec
}

// Record returns the stored record for key.
func (m *MemoryPersistence) Record(key string) (ports.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok
}

// TTL returns the ttl passed to the last Save for key.
func (m *MemoryPersistence) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MemoryPersistence) ensure() {
	if m.records == nil {
		m.records = make(map[string]ports.SessionRecord)
	}
	if m.ttls == nil {
		m.ttls = make(map[string]time.Duration)
	}
}

// FakeBackend is a func-field double for ports.Backend. Every call records the
// bearer token visible on the context so tests can assert authentication.
type FakeBackend struct {
	CheckEmailFunc   func(ctx context.Context, email string) (domainauth.EmailCheck, error)
	LoginFunc        func(ctx context.Context, in ports.LoginInput) (domainauth.AuthResult, error)
	VerifyOTPFunc    func(ctx context.Context, in ports.OTPInput) (domainauth.AuthResult, error)
	SignupFunc       func(ctx context.Context, in ports.SignupInput) (domainauth.AuthResult, error)
	SignupConfigFunc func(ctx context.Context) (domainauth.AuthConfig, error)

	NavigationEnvelopeFunc func(ctx context.Context) (any, error)

	MeFunc                 func(ctx context.Context) (domainauth.Identity, error)
	UpdateSignupConfigFunc func(ctx context.Context, enabled bool) (domainauth.AuthConfig, error)
	ListUsersFunc          func(ctx context.Context) ([]domainauth.User, error)
	CreateUserFunc         func(ctx context.Context, in ports.CreateUserInput) (domainauth.User, error)
	UpdateUserFunc         func(ctx context.Context, id int64, in ports.UpdateUserInput) (domainauth.User, error)
	DeleteUserFunc         func(ctx context.Context, id int64) error
	ListRolesFunc          func(ctx context.Context) ([]domainauth.Role, error)
	GetRoleFunc            func(ctx context.Context, id int64) (domainauth.Role, error)
	CreateRoleFunc         func(ctx context.Context, in ports.RoleInput) (domainauth.Role, error)
	UpdateRoleFunc         func(ctx context.Context, id int64, in ports.RoleInput) (domainauth.Role, error)
	DeleteRoleFunc         func(ctx context.Context, id int64) error
	AssignRolesFunc        func(ctx context.Context, userID int64, roleNames []string) error
	ListComponentsFunc     func(ctx context.Context) (domainauth.ComponentList, error)
	UserComponentsFunc     func(ctx context.Context) ([]string, error)
	RoleComponentsFunc     func(ctx context.Context, role string) ([]string, error)
	ComponentAccessFunc    func(ctx context.Context, id int64) ([]domainauth.ComponentAccess, error)
	UpdateComponentFunc    func(ctx context.Context, id int64, in domainauth.ComponentAccess) (domainauth.ComponentAccess, error)
	AssignComponentFunc    func(ctx context.Context, role, component string, hasAccess bool) (domainauth.ComponentAccess, error)

	mu     sync.Mutex
	calls  []string
	tokens []string
}

// NavigationWith returns a NavigationEnvelopeFunc that answers {"navigation": items}.
func NavigationWith(items ...domainauth.NavigationItem) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		list := make([]any, 0, len(items))
		for _, it := range items {
			list = append(list, map[string]any{
				"name":        it.Name,
				"label":       it.Label,
				"icon":        it.Icon,
				"description": it.Description,
				"admin_only":  it.AdminOnly,
			})
		}
		return map[string]any{"navigation": list}, nil
	}
}

func (f *FakeBackend) record(ctx context.Context, name string) {
	tok := ""
	if ts, ok := ports.TokenSourceFromContext(ctx); ok {
		tok = ts.Token()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.tokens = append(f.tokens, tok)
}

// Calls returns the method names invoked so far, in order.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Tokens returns the bearer token seen by each call, in order; "" means none.
func (f *FakeBackend) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

// CallCount returns how many times method name was invoked.
func (f *FakeBackend) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeBackend) CheckEmail(ctx context.Context, email string) (domainauth.EmailCheck, error) {
	f.record(ctx, "CheckEmail")
	if f.CheckEmailFunc == nil {
		return domainauth.EmailCheck{}, ErrNotConfigured
	}
	return f.CheckEmailFunc(ctx, email)
}

func (f *FakeBackend) Login(ctx context.Context, in ports.LoginInput) (domainauth.AuthResult, error) {
	f.record(ctx, "Login")
	if f.LoginFunc == nil {
		return domainauth.AuthResult{}, ErrNotConfigured
	}
	return f.LoginFunc(ctx, in)
}

func (f *FakeBackend) VerifyOTP(ctx context.Context, in ports.OTPInput) (domainauth.AuthResult, error) {
	f.record(ctx, "VerifyOTP")
	if f.VerifyOTPFunc == nil {
		return domainauth.AuthResult{}, ErrNotConfigured
	}
	return f.VerifyOTPFunc(ctx, in)
}

func (f *FakeBackend) Signup(ctx context.Context, in ports.SignupInput) (domainauth.AuthResult, error) {
	f.record(ctx, "Signup")
	if f.SignupFunc == nil {
		return domainauth.AuthResult{}, ErrNotConfigured
	}
	return f.SignupFunc(ctx, in)
}

func (f *FakeBackend) SignupConfig(ctx context.Context) (domainauth.AuthConfig, error) {
	f.record(ctx, "SignupConfig")
	if f.SignupConfigFunc == nil {
		return domainauth.AuthConfig{SignupEnabled: true}, nil
	}
	return f.SignupConfigFunc(ctx)
}

func (f *FakeBackend) NavigationEnvelope(ctx context.Context) (any, error) {
	f.record(ctx, "NavigationEnvelope")
	if f.NavigationEnvelopeFunc == nil {
		return map[string]any{"navigation": []any{}}, nil
	}
	return f.NavigationEnvelopeFunc(ctx)
}

func (f *FakeBackend) Me(ctx context.Context) (domainauth.Identity, error) {
	f.record(ctx, "Me")
	if f.MeFunc == nil {
		return domainauth.Identity{}, ErrNotConfigured
	}
	return f.MeFunc(ctx)
}

func (f *FakeBackend) UpdateSignupConfig(ctx context.Context, enabled bool) (domainauth.AuthConfig, error) {
	f.record(ctx, "UpdateSignupConfig")
	if f.UpdateSignupConfigFunc == nil {
		return domainauth.AuthConfig{SignupEnabled: enabled}, nil
	}
	return f.UpdateSignupConfigFunc(ctx, enabled)
}

func (f *FakeBackend) ListUsers(ctx context.Context) ([]domainauth.User, error) {
	f.record(ctx, "ListUsers")
	if f.ListUsersFunc == nil {
		return nil, nil
	}
	return f.ListUsersFunc(ctx)
}

func (f *FakeBackend) CreateUser(ctx context.Context, in ports.CreateUserInput) (domainauth.User, error) {
	f.record(ctx, "CreateUser")
	if f.CreateUserFunc == nil {
		return domainauth.User{}, ErrNotConfigured
	}
	return f.CreateUserFunc(ctx, in)
}

func (f *FakeBackend) UpdateUser(ctx context.Context, id int64, in ports.UpdateUserInput) (domainauth.User, error) {
	f.record(ctx, "UpdateUser")
	if f.UpdateUserFunc == nil {
		return domainauth.User{}, ErrNotConfigured
	}
	return f.UpdateUserFunc(ctx, id, in)
}

func (f *FakeBackend) DeleteUser(ctx context.Context, id int64) error {
	f.record(ctx, "DeleteUser")
	if f.DeleteUserFunc == nil {
		return nil
	}
	return f.DeleteUserFunc(ctx, id)
}

func (f *FakeBackend) ListRoles(ctx context.Context) ([]domainauth.Role, error) {
	f.record(ctx, "ListRoles")
	if f.ListRolesFunc == nil {
		return nil, nil
	}
	return f.ListRolesFunc(ctx)
}

func (f *FakeBackend) GetRole(ctx context.Context, id int64) (domainauth.Role, error) {
	f.record(ctx, "GetRole")
	if f.GetRoleFunc == nil {
		return domainauth.Role{}, ErrNotConfigured
	}
	return f.GetRoleFunc(ctx, id)
}

func (f *FakeBackend) CreateRole(ctx context.Context, in ports.RoleInput) (domainauth.Role, error) {
	f.record(ctx, "CreateRole")
	if f.CreateRoleFunc == nil {
		return domainauth.Role{}, ErrNotConfigured
	}
	return f.CreateRoleFunc(ctx, in)
}

func (f *FakeBackend) UpdateRole(ctx context.Context, id int64, in ports.RoleInput) (domainauth.Role, error) {
	f.record(ctx, "UpdateRole")
	if f.UpdateRoleFunc == nil {
		return domainauth.Role{}, ErrNotConfigured
	}
	return f.UpdateRoleFunc(ctx, id, in)
}

func (f *FakeBackend) DeleteRole(ctx context.Context, id int64) error {
	f.record(ctx, "DeleteRole")
	if f.DeleteRoleFunc == nil {
		return nil
	}
	return f.DeleteRoleFunc(ctx, id)
}

func (f *FakeBackend) AssignRoles(ctx context.Context, userID int64, roleNames []string) error {
	f.record(ctx, "AssignRoles")
	if f.AssignRolesFunc == nil {
		return nil
	}
	return f.AssignRolesFunc(ctx, userID, roleNames)
}

func (f *FakeBackend) ListComponents(ctx context.Context) (domainauth.ComponentList, error) {
	f.record(ctx, "ListComponents")
	if f.ListComponentsFunc == nil {
		return domainauth.ComponentList{}, nil
	}
	return f.ListComponentsFunc(ctx)
}

func (f *FakeBackend) UserComponents(ctx context.Context) ([]string, error) {
	f.record(ctx, "UserComponents")
	if f.UserComponentsFunc == nil {
		return nil, nil
	}
	return f.UserComponentsFunc(ctx)
}

func (f *FakeBackend) RoleComponents(ctx context.Context, role string) ([]string, error) {
	f.record(ctx, "RoleComponents")
	if f.RoleComponentsFunc == nil {
		return nil, nil
	}
	return f.RoleComponentsFunc(ctx, role)
}

func (f *FakeBackend) ComponentAccess(ctx context.Context, id int64) ([]domainauth.ComponentAccess, error) {
	f.record(ctx, "ComponentAccess")
	if f.ComponentAccessFunc == nil {
		return nil, nil
	}
	return f.ComponentAccessFunc(ctx, id)
}

func (f *FakeBackend) UpdateComponentAccess(
	ctx context.Context,
	id int64,
	in domainauth.ComponentAccess,
) (domainauth.ComponentAccess, error) {
	f.record(ctx, "UpdateComponentAccess")
	if f.UpdateComponentFunc == nil {
		return in, nil
	}
	return f.UpdateComponentFunc(ctx, id, in)
}

func (f *FakeBackend) AssignComponent(
	ctx context.Context,
	role, component string,
	hasAccess bool,
) (domainauth.ComponentAccess, error) {
	f.record(ctx, "AssignComponent")
	if f.AssignComponentFunc == nil {
		return domainauth.ComponentAccess{Role: role, ComponentName: component, HasAccess: hasAccess}, nil
	}
	return f.AssignComponentFunc(ctx, role, component, hasAccess)
}
