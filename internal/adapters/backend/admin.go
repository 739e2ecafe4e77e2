package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/ports"
)

// ListUsers returns every user. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]domainauth.User, error) {
	var dtos []userDTO
	if err := c.do(ctx, http.MethodGet, "/users", nil, &dtos); err != nil {
		return nil, err
	}
	users := make([]domainauth.User, 0, len(dtos))
	for _, d := range dtos {
		users = append(users, d.user())
	}
	return users, nil
}

// CreateUser creates an account on behalf of an admin.
func (c *Client) CreateUser(ctx context.Context, in ports.CreateUserInput) (domainauth.User, error) {
	var d userDTO
	if err := c.do(ctx, http.MethodPost, "/users", in, &d); err != nil {
		return domainauth.User{}, err
	}
	return d.user(), nil
}

// UpdateUser changes a user's name or roles.
func (c *Client) UpdateUser(ctx context.Context, id int64, in ports.UpdateUserInput) (domainauth.User, error) {
	var d userDTO
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), in, &d); err != nil {
		return domainauth.User{}, err
	}
	return d.user(), nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

// ListRoles returns every role.
func (c *Client) ListRoles(ctx context.Context) ([]domainauth.Role, error) {
	var roles []domainauth.Role
	if err := c.do(ctx, http.MethodGet, "/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole returns one role by id.
func (c *Client) GetRole(ctx context.Context, id int64) (domainauth.Role, error) {
	var role domainauth.Role
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/roles/%d", id), nil, &role); err != nil {
		return domainauth.Role{}, err
	}
	return role, nil
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, in ports.RoleInput) (domainauth.Role, error) {
	var role domainauth.Role
	if err := c.do(ctx, http.MethodPost, "/roles", in, &role); err != nil {
		return domainauth.Role{}, err
	}
	return role, nil
}

// UpdateRole renames or re-describes a role.
func (c *Client) UpdateRole(ctx context.Context, id int64, in ports.RoleInput) (domainauth.Role, error) {
	var role domainauth.Role
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/roles/%d", id), in, &role); err != nil {
		return domainauth.Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/roles/%d", id), nil, nil)
}

// AssignRoles replaces a user's roles with roleNames.
func (c *Client) AssignRoles(ctx context.Context, userID int64, roleNames []string) error {
	return c.do(ctx, http.MethodPost, "/roles/assign", assignRolesRequest{UserID: userID, RoleNames: roleNames}, nil)
}

// ListComponents returns the assignable and admin-only component keys.
func (c *Client) ListComponents(ctx context.Context) (domainauth.ComponentList, error) {
	var list domainauth.ComponentList
	if err := c.do(ctx, http.MethodGet, "/components", nil, &list); err != nil {
		return domainauth.ComponentList{}, err
	}
	return list, nil
}

// UserComponents returns the component keys available to the caller's active role.
func (c *Client) UserComponents(ctx context.Context) ([]string, error) {
	var env componentsEnvelope
	if err := c.do(ctx, http.MethodGet, "/components/user", nil, &env); err != nil {
		return nil, err
	}
	return env.Components, nil
}

// RoleComponents returns the component keys granted to role.
func (c *Client) RoleComponents(ctx context.Context, role string) ([]string, error) {
	var env componentsEnvelope
	if err := c.do(ctx, http.MethodGet, "/components/role/"+url.PathEscape(role), nil, &env); err != nil {
		return nil, err
	}
	return env.Components, nil
}

// ComponentAccess returns the per-role grants for a component.
func (c *Client) ComponentAccess(ctx context.Context, id int64) ([]domainauth.ComponentAccess, error) {
	var grants []domainauth.ComponentAccess
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/components/%d", id), nil, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// UpdateComponentAccess updates one grant.
func (c *Client) UpdateComponentAccess(
	ctx context.Context,
	id int64,
	in domainauth.ComponentAccess,
) (domainauth.ComponentAccess, error) {
	var out domainauth.ComponentAccess
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/components/%d", id), in, &out); err != nil {
		return domainauth.ComponentAccess{}, err
	}
	return out, nil
}

// AssignComponent grants or revokes component for role.
func (c *Client) AssignComponent(
	ctx context.Context,
	role, component string,
	hasAccess bool,
) (domainauth.ComponentAccess, error) {
	var out domainauth.ComponentAccess
	req := assignComponentRequest{Role: role, ComponentName: component, HasAccess: hasAccess}
	if err := c.do(ctx, http.MethodPost, "/components/assign", req, &out); err != nil {
		return domainauth.ComponentAccess{}, err
	}
	if out.ComponentName == "" {
		out = domainauth.ComponentAccess{Role: role, ComponentName: component, HasAccess: hasAccess}
	}
	return out, nil
}
