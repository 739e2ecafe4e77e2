package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/ports"
)

// FlowState is a state of the login state machine.
type FlowState string

const (
	StateEnteringEmail FlowState = "entering-email"
	// StateEmailChecked is also the password-entry state.
	StateEmailChecked  FlowState = "email-checked"
	StateOTPPending    FlowState = "otp-pending"
	StateAuthenticated FlowState = "authenticated"
)

// MinOTPLength is the shortest one-time password accepted locally.
const MinOTPLength = 6

// User-facing flow messages.
const (
	MsgEmailNotFound   = "Email not found. Please sign up."
	MsgCheckEmailError = "Error checking email"
	MsgLoginFailed     = "Login failed"
	MsgInvalidOTP      = "Invalid OTP"
	MsgOTPSent         = "A verification code was sent to your email."
)

// ErrStaleResponse is returned when a backend answer arrives after the flow was reset.
var ErrStaleResponse = errors.New("auth flow was reset while the request was in flight")

// AuthFlowOptions groups dependencies for AuthFlow.
type AuthFlowOptions struct {
	Backend ports.AuthBackend
	Signer  SessionSigner
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// FlowView is an immutable snapshot of an AuthFlow for rendering.
type FlowView struct {
	State        FlowState
	Email        string
	OfferedRoles []string
	SelectedRole string
	Error        string
	Info         string
	Loading      bool
}

// AuthFlow drives the login screen. It is safe for concurrent use; the mutex is
// never held across a backend call, and each call captures a generation so a
// response that lands after Reset is discarded.
type AuthFlow struct {
	id      string
	backend ports.AuthBackend
	signer  SessionSigner
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu           sync.Mutex
	gen          uint64
	state        FlowState
	email        string
	password     string
	otp          string
	selectedRole string
	offered      []string
	errMsg       string
	info         string
	loading      bool
}

// NewAuthFlow constructs an AuthFlow in the entering-email state.
func NewAuthFlow(opts AuthFlowOptions) *AuthFlow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &AuthFlow{
		id:      id,
		backend: opts.Backend,
		signer:  opts.Signer,
		logger:  logger.With("component", "auth_flow", "flow_id", id),
		metrics: opts.Metrics,
		state:   StateEnteringEmail,
	}
}

// InitialFlowView is the email step shown before any flow exists.
func InitialFlowView() FlowView {
	return FlowView{State: StateEnteringEmail}
}

// ID identifies the flow in logs.
func (f *AuthFlow) ID() string { return f.id }

// View returns a snapshot of the flow.
func (f *AuthFlow) View() FlowView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FlowView{
		State:        f.state,
		Email:        f.email,
		OfferedRoles: slices.Clone(f.offered),
		SelectedRole: f.selectedRole,
		Error:        f.errMsg,
		Info:         f.info,
		Loading:      f.loading,
	}
}

// SetEmail updates the email while it is still editable.
func (f *AuthFlow) SetEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateEnteringEmail {
		f.email = strings.TrimSpace(email)
	}
}

// SetPassword stores the password for the next Submit.
func (f *AuthFlow) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
}

// SetOTP stores the one-time password for the next Submit.
func (f *AuthFlow) SetOTP(otp string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otp = strings.TrimSpace(otp)
}

// SelectRole changes the requested role. The backend validates it.
func (f *AuthFlow) SelectRole(role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectedRole = role
}

// Reset returns the flow to entering-email and invalidates in-flight calls.
func (f *AuthFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.state = StateEnteringEmail
	f.email = ""
	f.password = ""
	f.otp = ""
	f.selectedRole = ""
	f.offered = nil
	f.errMsg = ""
	f.info = ""
	f.loading = false
}

// CheckEmail asks the backend whether email is registered.
func (f *AuthFlow) CheckEmail(ctx context.Context, email string) error {
	f.SetEmail(email)
	return f.checkEmail(ctx)
}

// Submit advances the flow according to its current state. A call made while a
// request is already in flight is ignored.
func (f *AuthFlow) Submit(ctx context.Context) error {
	f.mu.Lock()
	state, busy := f.state, f.loading
	f.mu.Unlock()

	if busy {
		return nil
	}
	switch state {
	case StateEnteringEmail:
		return f.checkEmail(ctx)
	case StateEmailChecked:
		return f.login(ctx)
	case StateOTPPending:
		return f.verifyOTP(ctx)
	default:
		return nil
	}
}

func (f *AuthFlow) checkEmail(ctx context.Context) error {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return nil
	}
	if f.state != StateEnteringEmail {
		f.mu.Unlock()
		return apperrors.ValidationField("email", "Email already checked")
	}
	email := f.email
	if err := validateEmail(email); err != nil {
		f.errMsg = err.Message
		f.mu.Unlock()
		return err
	}
	gen := f.begin()
	f.mu.Unlock()

	check, err := f.backend.CheckEmail(ctx, email)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return ErrStaleResponse
	}
	f.loading = false

	switch {
	case err == nil && check.Exists:
		f.state = StateEmailChecked
		f.offered = slices.Clone(check.Roles)
		f.selectedRole = domainauth.ResolveActiveRole(check.Roles)
		f.metrics.AuthAttempt("check_email", metrics.ResultSuccess, nil)
		return nil
	case err == nil || apperrors.IsNotFound(err):
		f.errMsg = MsgEmailNotFound
		f.metrics.AuthAttempt("check_email", metrics.ResultError, err)
		return apperrors.NotFound(MsgEmailNotFound)
	default:
		f.errMsg = MsgCheckEmailError
		f.logger.WarnContext(ctx, "check email failed", "error", err)
		f.metrics.AuthAttempt("check_email", metrics.ResultError, err)
		return err
	}
}

func (f *AuthFlow) login(ctx context.Context) error {
	f.mu.Lock()
	if f.password == "" {
		f.errMsg = "Password is required"
		f.mu.Unlock()
		return apperrors.ValidationField("password", "Password is required")
	}
	if len(f.offered) > 0 && f.selectedRole == "" {
		f.errMsg = "Please select a role"
		f.mu.Unlock()
		return apperrors.ValidationField("role", "Please select a role")
	}
	in := ports.LoginInput{Email: f.email, Password: f.password, Role: f.selectedRole}
	gen := f.begin()
	f.mu.Unlock()

	res, err := f.backend.Login(ctx, in)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return ErrStaleResponse
	}
	f.loading = false
	f.password = ""

	if err != nil {
		f.errMsg = apperrors.BackendMessage(err, MsgLoginFailed)
		f.metrics.AuthAttempt("login", metrics.ResultError, err)
		return err
	}
	if res.RequiresSecondFactor {
		f.state = StateOTPPending
		f.info = res.Message
		if f.info == "" {
			f.info = MsgOTPSent
		}
		f.metrics.AuthAttempt("login", metrics.ResultPending, nil)
		return nil
	}
	return f.complete(ctx, "login", res, MsgLoginFailed)
}

func (f *AuthFlow) verifyOTP(ctx context.Context) error {
	f.mu.Lock()
	if len(f.otp) < MinOTPLength {
		f.errMsg = "OTP must be at least 6 characters"
		f.mu.Unlock()
		return apperrors.ValidationField("otp", "OTP must be at least 6 characters")
	}
	in := ports.OTPInput{Email: f.email, OTP: f.otp, Role: f.selectedRole}
	gen := f.begin()
	f.mu.Unlock()

	res, err := f.backend.VerifyOTP(ctx, in)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return ErrStaleResponse
	}
	f.loading = false
	f.otp = ""

	if err != nil {
		f.errMsg = apperrors.BackendMessage(err, MsgInvalidOTP)
		f.metrics.AuthAttempt("otp", metrics.ResultError, err)
		return err
	}
	return f.complete(ctx, "otp", res, MsgInvalidOTP)
}

// complete signs in with res. Must be called with mu held so a concurrent
// Reset cannot interleave between the generation check and the sign-in.
func (f *AuthFlow) complete(ctx context.Context, step string, res domainauth.AuthResult, fallback string) error {
	if err := f.signer.SignIn(ctx, res.Identity, res.Token); err != nil {
		f.errMsg = fallback
		f.logger.ErrorContext(ctx, "sign in failed", "step", step, "error", err)
		f.metrics.AuthAttempt(step, metrics.ResultError, err)
		return err
	}
	f.state = StateAuthenticated
	f.info = ""
	f.metrics.AuthAttempt(step, metrics.ResultSuccess, nil)
	return nil
}

// begin marks a request in flight and returns its generation. Must be called with mu held.
func (f *AuthFlow) begin() uint64 {
	f.loading = true
	f.errMsg = ""
	return f.gen
}

// validateEmail accepts addresses shaped local@domain.
func validateEmail(email string) *apperrors.AppError {
	if email == "" {
		return apperrors.ValidationField("email", "Email is required")
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(email, " \t") ||
		strings.Contains(domain, "@") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return apperrors.ValidationField("email", "Please enter a valid email address")
	}
	return nil
}
