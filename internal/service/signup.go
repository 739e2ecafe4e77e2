package service

import (
	"context"
	"log/slog"
	"strings"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/ports"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// MsgRegistrationFailed is shown when the backend rejects a signup without a message.
const MsgRegistrationFailed = "Registration failed"

// SignupForm is the self-service registration form.
type SignupForm struct {
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
}

// Validate checks the form locally. No backend call is made for an invalid form.
func (f SignupForm) Validate() error {
	if err := validateEmail(strings.TrimSpace(f.Email)); err != nil {
		return err
	}
	if strings.TrimSpace(f.FullName) == "" {
		return apperrors.ValidationField("full_name", "Full name is required")
	}
	if len(f.Password) < MinPasswordLength {
		return apperrors.ValidationField("password", "Password must be at least 6 characters")
	}
	if f.Password != f.ConfirmPassword {
		return apperrors.ValidationField("confirm_password", "Passwords do not match")
	}
	return nil
}

// ValidateNewUser checks an account created from the admin screens.
func ValidateNewUser(in ports.CreateUserInput) error {
	if err := validateEmail(strings.TrimSpace(in.Email)); err != nil {
		return err
	}
	if len(in.Password) < MinPasswordLength {
		return apperrors.ValidationField("password", "Password must be at least 6 characters")
	}
	return nil
}

// SignupServiceOptions groups dependencies for SignupService.
type SignupServiceOptions struct {
	Backend ports.AuthBackend
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// SignupService registers new users and reports whether signup is offered.
type SignupService struct {
	backend ports.AuthBackend
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewSignupService constructs a SignupService.
func NewSignupService(opts SignupServiceOptions) *SignupService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SignupService{
		backend: opts.Backend,
		logger:  logger.With("component", "signup_service"),
		metrics: opts.Metrics,
	}
}

// Enabled reports whether the backend currently allows self-service signup.
// Any failure is treated as disabled.
func (s *SignupService) Enabled(ctx context.Context) bool {
	cfg, err := s.backend.SignupConfig(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "signup config unavailable", "error", err)
		return false
	}
	return cfg.SignupEnabled
}

// Register creates the account with role "user" and signs it in through signer.
// The returned error's message (see UserMessage) is safe to show.
func (s *SignupService) Register(ctx context.Context, signer SessionSigner, form SignupForm) error {
	if err := form.Validate(); err != nil {
		return err
	}

	res, err := s.backend.Signup(ctx, ports.SignupInput{
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
		Role:     domainauth.RoleUser,
		FullName: strings.TrimSpace(form.FullName),
	})
	if err != nil {
		s.metrics.AuthAttempt("signup", metrics.ResultError, err)
		code := apperrors.GetCode(err)
		if code == "" {
			code = apperrors.ErrCodeTransport
		}
		return &apperrors.AppError{
			Code:    code,
			Message: apperrors.BackendMessage(err, MsgRegistrationFailed),
			Cause:   err,
		}
	}

	if err := signer.SignIn(ctx, res.Identity, res.Token); err != nil {
		s.logger.ErrorContext(ctx, "sign in after signup failed", "error", err)
		s.metrics.AuthAttempt("signup", metrics.ResultError, err)
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, MsgRegistrationFailed)
	}
	s.metrics.AuthAttempt("signup", metrics.ResultSuccess, nil)
	return nil
}
