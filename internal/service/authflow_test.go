package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	gomocks "github.com/target/mmk-console/internal/mocks"
	mocks "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/ports"
	"go.uber.org/mock/gomock"
)

type flowFixture struct {
	flow    *AuthFlow
	backend *mocks.FakeBackend
	mem     *mocks.MemoryPersistence
	mgr     *SessionManager
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	mem := mocks.NewMemoryPersistence()
	mgr, _ := newTestManager(t, mem)
	backend := &mocks.FakeBackend{}
	return &flowFixture{
		flow:    NewAuthFlow(AuthFlowOptions{Backend: backend, Signer: mgr.Signer("k1")}),
		backend: backend,
		mem:     mem,
		mgr:     mgr,
	}
}

func knownEmail(roles ...string) func(context.Context, string) (domainauth.EmailCheck, error) {
	return func(context.Context, string) (domainauth.EmailCheck, error) {
		return domainauth.EmailCheck{Exists: true, Roles: roles}, nil
	}
}

func successfulLogin(context.Context, ports.LoginInput) (domainauth.AuthResult, error) {
	return domainauth.AuthResult{
		Identity: domainauth.Identity{ID: 1, Email: "a@x.com", Roles: []string{"user", "admin"}},
		Token:    "tok",
	}, nil
}

func TestAuthFlow_UnknownEmail(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = func(context.Context, string) (domainauth.EmailCheck, error) {
		return domainauth.EmailCheck{Exists: false}, nil
	}

	err := fx.flow.CheckEmail(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	view := fx.flow.View()
	assert.Equal(t, StateEnteringEmail, view.State)
	assert.Equal(t, MsgEmailNotFound, view.Error)
	assert.False(t, view.Loading)
}

func TestAuthFlow_UnknownEmail_404(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = func(context.Context, string) (domainauth.EmailCheck, error) {
		return domainauth.EmailCheck{}, apperrors.FromStatus(404, "")
	}

	require.Error(t, fx.flow.CheckEmail(context.Background(), "a@x.com"))
	assert.Equal(t, MsgEmailNotFound, fx.flow.View().Error)
	assert.Equal(t, StateEnteringEmail, fx.flow.View().State)
}

func TestAuthFlow_CheckEmailTransportError(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = func(context.Context, string) (domainauth.EmailCheck, error) {
		return domainauth.EmailCheck{}, apperrors.MapTransportError(errors.New("connection refused"))
	}

	err := fx.flow.CheckEmail(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
	assert.Equal(t, MsgCheckEmailError, fx.flow.View().Error)
	assert.Equal(t, StateEnteringEmail, fx.flow.View().State)
}

func TestAuthFlow_CheckEmailValidation(t *testing.T) {
	for _, email := range []string{"", "   ", "plain", "@x.com", "a@", "a@.com", "a@x.", "a b@x.com", "a@b@c"} {
		t.Run(email, func(t *testing.T) {
			fx := newFlowFixture(t)
			fx.backend.CheckEmailFunc = knownEmail("user")

			err := fx.flow.CheckEmail(context.Background(), email)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Zero(t, fx.backend.CallCount("CheckEmail"))
			assert.NotEmpty(t, fx.flow.View().Error)
		})
	}
}

func TestAuthFlow_CheckEmailOnlyOnce(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	err := fx.flow.CheckEmail(ctx, "b@x.com")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 1, fx.backend.CallCount("CheckEmail"))
	assert.Equal(t, "a@x.com", fx.flow.View().Email)
}

func TestAuthFlow_PasswordLogin(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user", "admin")
	var sent ports.LoginInput
	fx.backend.LoginFunc = func(ctx context.Context, in ports.LoginInput) (domainauth.AuthResult, error) {
		sent = in
		return successfulLogin(ctx, in)
	}
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	view := fx.flow.View()
	assert.Equal(t, StateEmailChecked, view.State)
	assert.Equal(t, "admin", view.SelectedRole)
	assert.Equal(t, []string{"user", "admin"}, view.OfferedRoles)

	fx.flow.SetPassword("secret")
	require.NoError(t, fx.flow.Submit(ctx))

	assert.Equal(t, ports.LoginInput{Email: "a@x.com", Password: "secret", Role: "admin"}, sent)
	assert.Equal(t, StateAuthenticated, fx.flow.View().State)

	store := openStore(t, fx.mgr, "k1")
	require.NotNil(t, store.Current())
	assert.Equal(t, "admin", store.Current().ActiveRole)
	assert.Equal(t, "admin", persistedIdentity(t, fx.mem, "k1").ActiveRole)
	assert.Zero(t, fx.backend.CallCount("VerifyOTP"))
}

func TestAuthFlow_SelectedRoleIsSentAsIs(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user", "admin")
	var sent ports.LoginInput
	fx.backend.LoginFunc = func(ctx context.Context, in ports.LoginInput) (domainauth.AuthResult, error) {
		sent = in
		return successfulLogin(ctx, in)
	}
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	fx.flow.SelectRole("auditor")
	fx.flow.SetPassword("secret")
	require.NoError(t, fx.flow.Submit(ctx))
	assert.Equal(t, "auditor", sent.Role)
}

func TestAuthFlow_LoginRequiresPassword(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	err := fx.flow.Submit(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, fx.backend.CallCount("Login"))
	assert.Equal(t, StateEmailChecked, fx.flow.View().State)
}

func TestAuthFlow_LoginFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "backend message", err: apperrors.FromStatus(401, "Invalid credentials"), want: "Invalid credentials"},
		{name: "no message", err: apperrors.FromStatus(401, ""), want: MsgLoginFailed},
		{name: "transport", err: apperrors.MapTransportError(errors.New("reset")), want: MsgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFlowFixture(t)
			fx.backend.CheckEmailFunc = knownEmail("user")
			fx.backend.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.AuthResult, error) {
				return domainauth.AuthResult{}, tt.err
			}
			ctx := context.Background()

			require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
			fx.flow.SetPassword("wrong")
			require.Error(t, fx.flow.Submit(ctx))

			view := fx.flow.View()
			assert.Equal(t, tt.want, view.Error)
			assert.Equal(t, StateEmailChecked, view.State)
			_, ok := fx.mem.Record("k1")
			assert.False(t, ok)
		})
	}
}

func TestAuthFlow_SecondFactor(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user", "admin")
	fx.backend.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{RequiresSecondFactor: true}, nil
	}
	var verified ports.OTPInput
	fx.backend.VerifyOTPFunc = func(ctx context.Context, in ports.OTPInput) (domainauth.AuthResult, error) {
		verified = in
		return successfulLogin(ctx, ports.LoginInput{})
	}
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	fx.flow.SetPassword("secret")
	require.NoError(t, fx.flow.Submit(ctx))

	view := fx.flow.View()
	assert.Equal(t, StateOTPPending, view.State)
	assert.Equal(t, MsgOTPSent, view.Info)
	_, ok := fx.mem.Record("k1")
	assert.False(t, ok, "must not sign in before the second factor")

	fx.flow.SetOTP("12345")
	err := fx.flow.Submit(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, fx.backend.CallCount("VerifyOTP"))
	assert.Equal(t, StateOTPPending, fx.flow.View().State)

	fx.flow.SetOTP("123456")
	require.NoError(t, fx.flow.Submit(ctx))
	assert.Equal(t, 1, fx.backend.CallCount("VerifyOTP"))
	assert.Equal(t, ports.OTPInput{Email: "a@x.com", OTP: "123456", Role: "admin"}, verified)
	assert.Equal(t, StateAuthenticated, fx.flow.View().State)
	assert.Equal(t, "admin", persistedIdentity(t, fx.mem, "k1").ActiveRole)
}

func TestAuthFlow_ShortOTPNeverReachesBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := gomocks.NewMockAuthBackend(ctrl)
	mem := mocks.NewMemoryPersistence()
	mgr, _ := newTestManager(t, mem)
	flow := NewAuthFlow(AuthFlowOptions{Backend: backend, Signer: mgr.Signer("k1")})
	ctx := context.Background()

	gomock.InOrder(
		backend.EXPECT().CheckEmail(gomock.Any(), "a@x.com").
			Return(domainauth.EmailCheck{Exists: true, Roles: []string{"user"}}, nil),
		backend.EXPECT().Login(gomock.Any(), ports.LoginInput{Email: "a@x.com", Password: "secret", Role: "user"}).
			Return(domainauth.AuthResult{RequiresSecondFactor: true}, nil),
	)
	backend.EXPECT().VerifyOTP(gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, flow.CheckEmail(ctx, "a@x.com"))
	flow.SetPassword("secret")
	require.NoError(t, flow.Submit(ctx))
	require.Equal(t, StateOTPPending, flow.View().State)

	flow.SetOTP("12345")
	err := flow.Submit(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, StateOTPPending, flow.View().State)
	_, ok := mem.Record("k1")
	assert.False(t, ok)
}

func TestAuthFlow_InvalidOTP(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	fx.backend.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{RequiresSecondFactor: true, Message: "Check your inbox"}, nil
	}
	fx.backend.VerifyOTPFunc = func(context.Context, ports.OTPInput) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{}, apperrors.FromStatus(401, "")
	}
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	fx.flow.SetPassword("secret")
	require.NoError(t, fx.flow.Submit(ctx))
	assert.Equal(t, "Check your inbox", fx.flow.View().Info)

	fx.flow.SetOTP("000000")
	require.Error(t, fx.flow.Submit(ctx))
	assert.Equal(t, MsgInvalidOTP, fx.flow.View().Error)
	assert.Equal(t, StateOTPPending, fx.flow.View().State)
}

func TestAuthFlow_SubmitInEnteringEmailChecksEmail(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	fx.flow.SetEmail("a@x.com")

	require.NoError(t, fx.flow.Submit(context.Background()))
	assert.Equal(t, StateEmailChecked, fx.flow.View().State)
	assert.Equal(t, "user", fx.flow.View().SelectedRole)
}

func TestAuthFlow_Reset(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	fx.flow.SetPassword("secret")
	fx.flow.Reset()

	assert.Equal(t, FlowView{State: StateEnteringEmail, OfferedRoles: nil}, fx.flow.View())

	// The email becomes editable again.
	require.NoError(t, fx.flow.CheckEmail(ctx, "b@x.com"))
	assert.Equal(t, "b@x.com", fx.flow.View().Email)
}

func TestAuthFlow_StaleCheckEmailAfterReset(t *testing.T) {
	fx := newFlowFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fx.backend.CheckEmailFunc = func(context.Context, string) (domainauth.EmailCheck, error) {
		close(started)
		<-release
		return domainauth.EmailCheck{Exists: true, Roles: []string{"admin"}}, nil
	}

	done := make(chan error, 1)
	go func() { done <- fx.flow.CheckEmail(context.Background(), "a@x.com") }()

	<-started
	assert.True(t, fx.flow.View().Loading)
	fx.flow.Reset()
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("CheckEmail did not return")
	}

	view := fx.flow.View()
	assert.Equal(t, StateEnteringEmail, view.State)
	assert.Empty(t, view.Email)
	assert.Empty(t, view.SelectedRole)
	assert.False(t, view.Loading)
}

func TestAuthFlow_StaleLoginDoesNotSignIn(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	started := make(chan struct{})
	release := make(chan struct{})
	fx.backend.LoginFunc = func(ctx context.Context, in ports.LoginInput) (domainauth.AuthResult, error) {
		close(started)
		<-release
		return successfulLogin(ctx, in)
	}
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	fx.flow.SetPassword("secret")

	done := make(chan error, 1)
	go func() { done <- fx.flow.Submit(ctx) }()
	<-started

	// A second submit while the first is in flight is ignored.
	require.NoError(t, fx.flow.Submit(ctx))

	fx.flow.Reset()
	close(release)
	require.ErrorIs(t, <-done, ErrStaleResponse)

	assert.Equal(t, 1, fx.backend.CallCount("Login"))
	_, ok := fx.mem.Record("k1")
	assert.False(t, ok)
	assert.Equal(t, StateEnteringEmail, fx.flow.View().State)
}

func TestAuthFlow_SignInFailure(t *testing.T) {
	fx := newFlowFixture(t)
	fx.backend.CheckEmailFunc = knownEmail("user")
	fx.backend.LoginFunc = successfulLogin
	fx.mem.SaveErr = errors.New("disk full")
	ctx := context.Background()

	require.NoError(t, fx.flow.CheckEmail(ctx, "a@x.com"))
	fx.flow.SetPassword("secret")
	require.Error(t, fx.flow.Submit(ctx))

	assert.Equal(t, MsgLoginFailed, fx.flow.View().Error)
	assert.Equal(t, StateEmailChecked, fx.flow.View().State)
}

func TestAuthFlowRegistry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mgr, _ := newTestManager(t, mocks.NewMemoryPersistence())
	reg := NewAuthFlowRegistry(AuthFlowRegistryOptions{
		Backend:  &mocks.FakeBackend{},
		Sessions: mgr,
		IdleTTL:  time.Minute,
		Now:      clock,
	})

	a := reg.Get("a")
	assert.Same(t, a, reg.Get("a"))
	b := reg.Get("b")
	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, reg.Len())

	now = now.Add(45 * time.Second)
	reg.Get("a")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, a, reg.Get("a"))

	now = now.Add(2 * time.Minute)
	assert.NotSame(t, a, reg.Get("a"), "an idle flow is replaced on access")

	reg.Drop("a")
	assert.Zero(t, reg.Len())
}

func TestAuthFlowRegistry_SweepsIdleFlowsOnInsert(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _ := newTestManager(t, mocks.NewMemoryPersistence())
	reg := NewAuthFlowRegistry(AuthFlowRegistryOptions{
		Backend:  &mocks.FakeBackend{},
		Sessions: mgr,
		IdleTTL:  time.Minute,
		Now:      func() time.Time { return now },
	})

	reg.Get("a")
	reg.Get("b")
	now = now.Add(2 * time.Minute)
	reg.Get("c")

	assert.Equal(t, 1, reg.Len(), "idle flows go without a janitor")
}

func TestAuthFlowRegistry_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _ := newTestManager(t, mocks.NewMemoryPersistence())
	reg := NewAuthFlowRegistry(AuthFlowRegistryOptions{
		Backend:  &mocks.FakeBackend{},
		Sessions: mgr,
		IdleTTL:  time.Hour,
		MaxFlows: 2,
		Now:      func() time.Time { return now },
	})

	a := reg.Get("a")
	now = now.Add(time.Second)
	reg.Get("b")
	now = now.Add(time.Second)
	reg.Get("a")
	now = now.Add(time.Second)
	reg.Get("c")

	assert.Equal(t, 2, reg.Len())
	_, ok := reg.Lookup("b")
	assert.False(t, ok, "b was least recently used")
	got, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestAuthFlowRegistry_LookupNeverCreates(t *testing.T) {
	mgr, _ := newTestManager(t, mocks.NewMemoryPersistence())
	reg := NewAuthFlowRegistry(AuthFlowRegistryOptions{Backend: &mocks.FakeBackend{}, Sessions: mgr})

	_, ok := reg.Lookup("unknown")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}
