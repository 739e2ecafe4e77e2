package backend

import (
	"context"
	"net/http"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/ports"
)

// CheckEmail asks whether an account exists and which roles it holds.
func (c *Client) CheckEmail(ctx context.Context, email string) (domainauth.EmailCheck, error) {
	var resp checkEmailResponse
	if err := c.do(ctx, http.MethodPost, "/auth/check-email", emailRequest{Email: email}, &resp); err != nil {
		return domainauth.EmailCheck{}, err
	}
	roles := resp.Roles
	if len(roles) == 0 && resp.Role != "" {
		roles = []string{resp.Role}
	}
	return domainauth.EmailCheck{Exists: resp.Exists, Roles: roles}, nil
}

// Login submits password credentials. The result may require a second factor.
func (c *Client) Login(ctx context.Context, in ports.LoginInput) (domainauth.AuthResult, error) {
	return c.authCall(ctx, "/auth/login", loginRequest{Email: in.Email, Password: in.Password, Role: in.Role})
}

// VerifyOTP completes a login that returned requires_2fa.
func (c *Client) VerifyOTP(ctx context.Context, in ports.OTPInput) (domainauth.AuthResult, error) {
	return c.authCall(ctx, "/auth/verify-otp", otpRequest{Email: in.Email, OTP: in.OTP, Role: in.Role})
}

// Signup registers a new account and returns its first session.
func (c *Client) Signup(ctx context.Context, in ports.SignupInput) (domainauth.AuthResult, error) {
	role := in.Role
	if role == "" {
		role = domainauth.RoleUser
	}
	return c.authCall(ctx, "/auth/signup", signupRequest{
		Email:    in.Email,
		Password: in.Password,
		Role:     role,
		FullName: in.FullName,
	})
}

// SignupConfig reports whether public registration is enabled.
func (c *Client) SignupConfig(ctx context.Context) (domainauth.AuthConfig, error) {
	var cfg domainauth.AuthConfig
	if err := c.do(ctx, http.MethodGet, "/auth/config/signup", nil, &cfg); err != nil {
		return domainauth.AuthConfig{}, err
	}
	return cfg, nil
}

// UpdateSignupConfig toggles public registration. Admin only.
func (c *Client) UpdateSignupConfig(ctx context.Context, enabled bool) (domainauth.AuthConfig, error) {
	var cfg domainauth.AuthConfig
	if err := c.do(ctx, http.MethodPost, "/auth/config/signup", signupConfigRequest{Enabled: enabled}, &cfg); err != nil {
		return domainauth.AuthConfig{}, err
	}
	return cfg, nil
}

// Me returns the identity bound to the caller's token.
func (c *Client) Me(ctx context.Context) (domainauth.Identity, error) {
	var u userDTO
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return domainauth.Identity{}, err
	}
	return u.identity(), nil
}

// NavigationEnvelope returns the decoded body of GET /components/navigation
// without interpreting it.
func (c *Client) NavigationEnvelope(ctx context.Context) (any, error) {
	var env any
	if err := c.do(ctx, http.MethodGet, "/components/navigation", nil, &env); err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) authCall(ctx context.Context, path string, body any) (domainauth.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return domainauth.AuthResult{}, err
	}
	return resp.result(), nil
}
