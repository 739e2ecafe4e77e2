package backend

import domainauth "github.com/target/mmk-console/internal/domain/auth"

// userDTO accepts both the current and legacy backend field names.
type userDTO struct {
	ID                int64    `json:"id"`
	UserID            int64    `json:"user_id"`
	Email             string   `json:"email"`
	FullName          *string  `json:"full_name"`
	Name              string   `json:"name"`
	Roles             []string `json:"roles"`
	Role              string   `json:"role"`
	FileUploadEnabled bool     `json:"file_upload_enabled"`
	TwoFactorEnabled  bool     `json:"two_factor_auth_enabled"`
	CreatedAt         string   `json:"created_at"`
}

func (u userDTO) identity() domainauth.Identity {
	id := u.ID
	if id == 0 {
		id = u.UserID
	}
	name := u.Name
	if u.FullName != nil && *u.FullName != "" {
		name = *u.FullName
	}
	roles := u.Roles
	if len(roles) == 0 && u.Role != "" {
		roles = []string{u.Role}
	}
	return domainauth.Identity{
		ID:                id,
		Email:             u.Email,
		FullName:          name,
		Roles:             roles,
		FileUploadEnabled: u.FileUploadEnabled,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		CreatedAt:         u.CreatedAt,
	}
}

func (u userDTO) user() domainauth.User {
	id := u.identity()
	return domainauth.User{
		ID:        id.ID,
		Email:     id.Email,
		FullName:  id.FullName,
		Roles:     id.Roles,
		CreatedAt: id.CreatedAt,
	}
}

// authResponse is returned by login, verify-otp and signup.
type authResponse struct {
	AccessToken string   `json:"access_token"`
	User        *userDTO `json:"user"`
	Requires2FA bool     `json:"requires_2fa"`
	Message     string   `json:"message"`
	Email       string   `json:"email"`
}

func (r authResponse) result() domainauth.AuthResult {
	out := domainauth.AuthResult{
		Token:                r.AccessToken,
		RequiresSecondFactor: r.Requires2FA,
		Message:              r.Message,
	}
	if r.User != nil {
		out.Identity = r.User.identity()
	}
	if out.Identity.Email == "" {
		out.Identity.Email = r.Email
	}
	return out
}

type emailRequest struct {
	Email string `json:"email"`
}

type checkEmailResponse struct {
	Exists bool     `json:"exists"`
	Roles  []string `json:"roles"`
	Role   string   `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Role  string `json:"role,omitempty"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
}

type signupConfigRequest struct {
	Enabled bool `json:"enabled"`
}

type assignRolesRequest struct {
	UserID    int64    `json:"user_id"`
	RoleNames []string `json:"role_names"`
}

type assignComponentRequest struct {
	Role          string `json:"role"`
	ComponentName string `json:"component_name"`
	HasAccess     bool   `json:"has_access"`
}

type componentsEnvelope struct {
	Components []string `json:"components"`
}

// errorBody is the backend's error shape; either field may be present.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
