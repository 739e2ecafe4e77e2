package auth

// Package auth contains domain-level types for authentication, sessions and navigation.
// It is pure and free of framework/adapter concerns.

import "slices"

// RoleAdmin is the role name preferred when choosing an active role.
const RoleAdmin = "admin"

// RoleUser is the role requested for self-service signups.
const RoleUser = "user"

// Well-known keys under which a session record is persisted.
// Both keys are written and cleared together.
const (
	TokenKey       = "access_token"
	CurrentUserKey = "currentUser"
)

// Identity is the authenticated user's profile and role grants for the current session.
// JSON tags match the shape persisted under CurrentUserKey.
type Identity struct {
	ID                int64    `json:"id"`
	Email             string   `json:"email"`
	FullName          string   `json:"full_name,omitempty"`
	Roles             []string `json:"roles"`
	ActiveRole        string   `json:"activeRole,omitempty"`
	FileUploadEnabled bool     `json:"file_upload_enabled,omitempty"`
	TwoFactorEnabled  bool     `json:"two_factor_auth_enabled,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
}

// HasRole reports whether role is one of the identity's granted roles.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// IsAdmin reports whether the identity was granted the admin role.
func (i Identity) IsAdmin() bool { return i.HasRole(RoleAdmin) }

// DisplayName returns the full name when set, otherwise the email.
func (i Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.Email
}

// Clone returns a deep copy so callers cannot mutate shared role slices.
func (i Identity) Clone() Identity {
	out := i
	out.Roles = slices.Clone(i.Roles)
	return out
}

// ResolveActiveRole picks "admin" when granted, otherwise the first granted role.
// Returns "" for an empty role list.
func ResolveActiveRole(roles []string) string {
	if slices.Contains(roles, RoleAdmin) {
		return RoleAdmin
	}
	if len(roles) == 0 {
		return ""
	}
	return roles[0]
}

// AuthResult is what the backend returns from login, OTP verification and signup.
// When RequiresSecondFactor is set, Identity and Token are empty and an OTP must be verified.
type AuthResult struct {
	Identity             Identity
	Token                string
	RequiresSecondFactor bool
	Message              string
}

// EmailCheck is the backend's answer to an email existence probe.
type EmailCheck struct {
	Exists bool
	Roles  []string
}

// NavigationItem is a backend-declared menu entry. Name matches a capability key.
type NavigationItem struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	AdminOnly   bool   `json:"admin_only"`
}

// AuthConfig holds backend-controlled authentication settings.
type AuthConfig struct {
	SignupEnabled bool `json:"enabled"`
}

// User is a backend user record as listed by the user management screens.
type User struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	FullName  string   `json:"full_name,omitempty"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// Role is a backend role record.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ComponentList is the set of component keys known to the backend.
type ComponentList struct {
	Assignable []string `json:"assignable"`
	AdminOnly  []string `json:"admin_only"`
}

// ComponentAccess is a per-role component grant.
type ComponentAccess struct {
	ID            int64  `json:"id"`
	Role          string `json:"role"`
	ComponentName string `json:"component_name"`
	HasAccess     bool   `json:"has_access"`
}
