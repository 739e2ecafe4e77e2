package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// Home renders the dashboard shell with one card per navigation entry.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: "Dashboard", PageTitle: "Dashboard", CurrentPage: PageHome},
		Fetch: func(ctx context.Context, data map[string]any) error {
			data["Menu"] = []service.MenuEntry{}
			store, ok := GetSessionFromContext(ctx)
			if !ok {
				return nil
			}
			items, err := h.Navigation.FetchNavigation(ctx, store)
			if err != nil {
				return err
			}
			data["Menu"] = service.BuildMenu(items, h.Catalog)
			return nil
		},
	})
}

// Feature returns the child view for a capability: the base admin screens for the
// management keys and a placeholder leaf view for pluggable features.
func (h *UIHandlers) Feature(c domainauth.Capability) http.HandlerFunc {
	switch c.Key {
	case domainauth.CapabilityUserManagement:
		return h.Users
	case domainauth.CapabilityRoleManagement:
		return h.Roles
	case domainauth.CapabilityComponentManagement:
		return h.Components
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h.Page(w, r, PageSpec{
			Meta: PageMeta{Title: c.Title, PageTitle: c.Title, CurrentPage: PageFeature},
			Fetch: func(_ context.Context, data map[string]any) error {
				data["Capability"] = c
				return nil
			},
		})
	}
}

// SwitchRole changes the active role and returns to the dashboard home. htmx
// clients also receive a session-changed event carrying the resulting role.
// A role the identity was not granted is ignored by the store.
func (h *UIHandlers) SwitchRole(w http.ResponseWriter, r *http.Request) {
	store, ok := GetSessionFromContext(r.Context())
	if !ok {
		Redirect(w, r, service.LoginPath)
		return
	}
	role := strings.TrimSpace(r.PostFormValue("role"))
	if err := store.SetActiveRole(r.Context(), role); err != nil {
		h.logger().ErrorContext(r.Context(), "role switch failed", "role", role, "error", err)
	}
	if id := store.Current(); id != nil {
		SetHXTrigger(w, "session-changed", map[string]string{"role": id.ActiveRole})
	}
	Redirect(w, r, service.DashboardPath)
}

func (h *UIHandlers) routeFor(key domainauth.CapabilityKey) string {
	if c, ok := h.Catalog.Lookup(string(key)); ok {
		return c.Route()
	}
	return service.DashboardPath
}

func (h *UIHandlers) titleFor(key domainauth.CapabilityKey) string {
	if c, ok := h.Catalog.Lookup(string(key)); ok {
		return c.Title
	}
	return string(key)
}

// finishAction redirects back to the view on success and re-renders it with the
// error otherwise. An expired token ends the session instead.
func (h *UIHandlers) finishAction(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	redirect string,
	rerender func(http.ResponseWriter, *http.Request, error),
) {
	switch {
	case err == nil:
		Redirect(w, r, redirect)
	case apperrors.IsUnauthorized(err):
		h.expireSession(w, r)
	default:
		h.logger().WarnContext(r.Context(), "admin action failed", "path", r.URL.Path, "error", err)
		rerender(w, r, err)
	}
}

func withActionError(data map[string]any, err error) {
	if err == nil {
		return
	}
	data["Error"] = true
	data["ErrorMessage"] = apperrors.UserMessage(err, msgUnexpected)
	if field := apperrors.GetField(err); field != "" {
		data["ErrorField"] = field
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationField("id", "Invalid id")
	}
	return id, nil
}

// Users lists users and roles for the user management view.
func (h *UIHandlers) Users(w http.ResponseWriter, r *http.Request) { h.renderUsers(w, r, nil) }

func (h *UIHandlers) renderUsers(w http.ResponseWriter, r *http.Request, actionErr error) {
	title := h.titleFor(domainauth.CapabilityUserManagement)
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: title, PageTitle: title, CurrentPage: PageUsers},
		Fetch: func(ctx context.Context, data map[string]any) error {
			withActionError(data, actionErr)
			users, err := h.Admin.ListUsers(ctx)
			if err != nil {
				return err
			}
			roles, err := h.Admin.ListRoles(ctx)
			if err != nil {
				return err
			}
			data["Users"] = users
			data["Roles"] = roles
			return nil
		},
	})
}

// CreateUser adds a user from the admin form.
func (h *UIHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	in := ports.CreateUserInput{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Roles:    r.PostForm["roles"],
	}
	err := service.ValidateNewUser(in)
	if err == nil {
		_, err = h.Admin.CreateUser(backendContext(r), in)
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityUserManagement), h.renderUsers)
}

// UpdateUser edits a user's display name and, when the form carries them, role grants.
func (h *UIHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		_ = r.ParseForm()
		var in ports.UpdateUserInput
		if _, ok := r.PostForm["full_name"]; ok {
			name := strings.TrimSpace(r.PostFormValue("full_name"))
			in.FullName = &name
		}
		if roles, ok := r.PostForm["roles"]; ok {
			in.Roles = roles
		}
		_, err = h.Admin.UpdateUser(backendContext(r), id, in)
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityUserManagement), h.renderUsers)
}

// AssignUserRoles replaces a user's role grants.
func (h *UIHandlers) AssignUserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		_ = r.ParseForm()
		err = h.Admin.AssignRoles(backendContext(r), id, r.PostForm["roles"])
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityUserManagement), h.renderUsers)
}

// DeleteUser removes a user. Deleting the signed-in account is refused locally.
func (h *UIHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		if me := CurrentIdentity(r.Context()); me != nil && me.ID == id {
			err = apperrors.Validation("You cannot delete your own account")
		} else {
			err = h.Admin.DeleteUser(backendContext(r), id)
		}
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityUserManagement), h.renderUsers)
}

// Roles lists roles for the role management view.
func (h *UIHandlers) Roles(w http.ResponseWriter, r *http.Request) { h.renderRoles(w, r, nil) }

func (h *UIHandlers) renderRoles(w http.ResponseWriter, r *http.Request, actionErr error) {
	title := h.titleFor(domainauth.CapabilityRoleManagement)
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: title, PageTitle: title, CurrentPage: PageRoles},
		Fetch: func(ctx context.Context, data map[string]any) error {
			withActionError(data, actionErr)
			roles, err := h.Admin.ListRoles(ctx)
			if err != nil {
				return err
			}
			data["Roles"] = roles
			return nil
		},
	})
}

// CreateRole adds a role.
func (h *UIHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	in := ports.RoleInput{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}
	var err error
	if in.Name == "" {
		err = apperrors.ValidationField("name", "Role name is required")
	} else {
		_, err = h.Admin.CreateRole(backendContext(r), in)
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityRoleManagement), h.renderRoles)
}

// UpdateRole changes a role's description. The current role is read first so the
// update carries its stored name.
func (h *UIHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		ctx := backendContext(r)
		var role domainauth.Role
		role, err = h.Admin.GetRole(ctx, id)
		if err == nil {
			_, err = h.Admin.UpdateRole(ctx, id, ports.RoleInput{
				Name:        role.Name,
				Description: strings.TrimSpace(r.PostFormValue("description")),
			})
		}
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityRoleManagement), h.renderRoles)
}

// DeleteRole removes a role.
func (h *UIHandlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = h.Admin.DeleteRole(backendContext(r), id)
	}
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityRoleManagement), h.renderRoles)
}

// ComponentRow is one line of the component access matrix for the selected role.
type ComponentRow struct {
	Name      string
	AdminOnly bool
	Granted   bool
}

// Components shows component grants for a role plus the signup toggle.
func (h *UIHandlers) Components(w http.ResponseWriter, r *http.Request) {
	h.renderComponents(w, r, nil)
}

func (h *UIHandlers) renderComponents(w http.ResponseWriter, r *http.Request, actionErr error) {
	title := h.titleFor(domainauth.CapabilityComponentManagement)
	selected := strings.TrimSpace(r.FormValue("role"))
	componentID, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("grants")), 10, 64)
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: title, PageTitle: title, CurrentPage: PageComponents},
		Fetch: func(ctx context.Context, data map[string]any) error {
			withActionError(data, actionErr)
			list, err := h.Admin.ListComponents(ctx)
			if err != nil {
				return err
			}
			roles, err := h.Admin.ListRoles(ctx)
			if err != nil {
				return err
			}
			if selected == "" && len(roles) > 0 {
				selected = roles[0].Name
			}
			granted := map[string]bool{}
			if selected != "" {
				names, err := h.Admin.RoleComponents(ctx, selected)
				if err != nil {
					return err
				}
				for _, n := range names {
					granted[n] = true
				}
			}
			data["Roles"] = roles
			data["SelectedRole"] = selected
			data["Rows"] = componentRows(list, granted)
			data["SignupEnabled"] = h.Signup != nil && h.Signup.Enabled(ctx)
			if componentID > 0 {
				grants, err := h.Admin.ComponentAccess(ctx, componentID)
				if err != nil {
					return err
				}
				data["ComponentID"] = componentID
				data["Grants"] = grants
			}
			return nil
		},
	})
}

func componentRows(list domainauth.ComponentList, granted map[string]bool) []ComponentRow {
	rows := make([]ComponentRow, 0, len(list.Assignable)+len(list.AdminOnly))
	for _, n := range list.Assignable {
		rows = append(rows, ComponentRow{Name: n, Granted: granted[n]})
	}
	for _, n := range list.AdminOnly {
		rows = append(rows, ComponentRow{Name: n, AdminOnly: true, Granted: granted[n]})
	}
	return rows
}

// AssignComponent grants or revokes one component for a role.
func (h *UIHandlers) AssignComponent(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.PostFormValue("role"))
	component := strings.TrimSpace(r.PostFormValue("component"))
	hasAccess := formBool(r.PostFormValue("has_access"))

	var err error
	if role == "" || component == "" {
		err = apperrors.Validation("Role and component are required")
	} else {
		_, err = h.Admin.AssignComponent(backendContext(r), role, component, hasAccess)
	}
	redirect := h.routeFor(domainauth.CapabilityComponentManagement)
	if role != "" {
		redirect += "?role=" + url.QueryEscape(role)
	}
	h.finishAction(w, r, err, redirect, h.renderComponents)
}

// UpdateGrant flips one existing grant row by id and returns to that component's grant list.
func (h *UIHandlers) UpdateGrant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	in := domainauth.ComponentAccess{
		ID:            id,
		Role:          strings.TrimSpace(r.PostFormValue("role")),
		ComponentName: strings.TrimSpace(r.PostFormValue("component")),
		HasAccess:     formBool(r.PostFormValue("has_access")),
	}
	if err == nil {
		if in.Role == "" || in.ComponentName == "" {
			err = apperrors.Validation("Role and component are required")
		} else {
			_, err = h.Admin.UpdateComponentAccess(backendContext(r), id, in)
		}
	}
	redirect := h.routeFor(domainauth.CapabilityComponentManagement)
	if c := strings.TrimSpace(r.PostFormValue("component_id")); c != "" {
		redirect += "?grants=" + url.QueryEscape(c)
	}
	h.finishAction(w, r, err, redirect, h.renderComponents)
}

// UpdateSignupConfig toggles self-service signup.
func (h *UIHandlers) UpdateSignupConfig(w http.ResponseWriter, r *http.Request) {
	_, err := h.Admin.UpdateSignupConfig(backendContext(r), formBool(r.PostFormValue("enabled")))
	h.finishAction(w, r, err, h.routeFor(domainauth.CapabilityComponentManagement), h.renderComponents)
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
