package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// authed wraps a RunE so it only runs with a stored session.
func authed(a *app, run func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := a.requireSession(); err != nil {
			return err
		}
		return run(cmd.Context(), args)
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func usersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage users"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: authed(a, func(ctx context.Context, _ []string) error {
			users, err := a.client.ListUsers(ctx)
			if err != nil {
				return a.backendError(ctx, err)
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			if err = writeln(w, "ID\tEmail\tName\tRoles"); err != nil {
				return err
			}
			for _, u := range users {
				if err = writef(w, "%d\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, strings.Join(u.Roles, ",")); err != nil {
					return fmt.Errorf("write user %d: %w", u.ID, err)
				}
			}
			return w.Flush()
		}),
	})

	var create struct {
		Email, Password, Name, Roles string
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: authed(a, func(ctx context.Context, _ []string) error {
			in := ports.CreateUserInput{
				Email:    strings.TrimSpace(create.Email),
				Password: create.Password,
				FullName: strings.TrimSpace(create.Name),
				Roles:    splitList(create.Roles),
			}
			if err := service.ValidateNewUser(in); err != nil {
				return err
			}
			u, err := a.client.CreateUser(ctx, in)
			if err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "Created user %d (%s)\n", u.ID, u.Email)
		}),
	}
	createCmd.Flags().StringVar(&create.Email, "email", "", "Email address")
	createCmd.Flags().StringVar(&create.Password, "password", "", "Initial password")
	createCmd.Flags().StringVar(&create.Name, "name", "", "Full name")
	createCmd.Flags().StringVar(&create.Roles, "roles", "", "Comma separated role names")
	cmd.AddCommand(createCmd)

	var rename string
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user's name",
		Args:  cobra.ExactArgs(1),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			name := strings.TrimSpace(rename)
			if _, err = a.client.UpdateUser(ctx, id, ports.UpdateUserInput{FullName: &name}); err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "Updated user %d\n", id)
		}),
	}
	updateCmd.Flags().StringVar(&rename, "name", "", "New full name")
	_ = updateCmd.MarkFlagRequired("name")
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "assign-roles <id> <role>[,<role>...]",
		Short: "Replace a user's roles",
		Args:  cobra.ExactArgs(2),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			roles := splitList(args[1])
			if err = a.client.AssignRoles(ctx, id, roles); err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "User %d roles: %s\n", id, strings.Join(roles, ", "))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if cur := a.store.Current(); cur != nil && cur.ID == id {
				return errors.New("you cannot delete your own account")
			}
			if err = a.client.DeleteUser(ctx, id); err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "Deleted user %d\n", id)
		}),
	})
	return cmd
}

func rolesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "roles", Short: "Manage roles"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: authed(a, func(ctx context.Context, _ []string) error {
			roles, err := a.client.ListRoles(ctx)
			if err != nil {
				return a.backendError(ctx, err)
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			if err = writeln(w, "ID\tName\tDescription"); err != nil {
				return err
			}
			for _, r := range roles {
				if err = writef(w, "%d\t%s\t%s\n", r.ID, r.Name, r.Description); err != nil {
					return fmt.Errorf("write role %d: %w", r.ID, err)
				}
			}
			return w.Flush()
		}),
	})

	var description string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("role name is required")
			}
			role, err := a.client.CreateRole(ctx, ports.RoleInput{Name: name, Description: strings.TrimSpace(description)})
			if err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "Created role %d (%s)\n", role.ID, role.Name)
		}),
	}
	createCmd.Flags().StringVar(&description, "description", "", "Role description")
	cmd.AddCommand(createCmd)

	var newDescription string
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a role's description",
		Args:  cobra.ExactArgs(1),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err = a.client.UpdateRole(ctx, id, ports.RoleInput{Description: strings.TrimSpace(newDescription)}); err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "Updated role %d\n", id)
		}),
	}
	updateCmd.Flags().StringVar(&newDescription, "description", "", "New description")
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(1),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err = a.client.DeleteRole(ctx, id); err != nil {
				return a.backendError(ctx, err)
			}
			return writef(a.out, "Deleted role %d\n", id)
		}),
	})
	return cmd
}

func componentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "components", Short: "Manage per-role module access"}

	var role string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List modules and which ones a role can open",
		Args:  cobra.NoArgs,
		RunE: authed(a, func(ctx context.Context, _ []string) error {
			list, err := a.client.ListComponents(ctx)
			if err != nil {
				return a.backendError(ctx, err)
			}
			var granted []string
			if role = strings.TrimSpace(role); role != "" {
				if granted, err = a.client.RoleComponents(ctx, role); err != nil {
					return a.backendError(ctx, err)
				}
			} else if granted, err = a.client.UserComponents(ctx); err != nil {
				return a.backendError(ctx, err)
			}
			return printComponents(a, list, granted)
		}),
	}
	listCmd.Flags().StringVar(&role, "role", "", "Role to inspect (default: your own access)")
	cmd.AddCommand(listCmd)

	var revoke bool
	assignCmd := &cobra.Command{
		Use:   "assign <role> <component>",
		Short: "Grant or revoke a module for a role",
		Args:  cobra.ExactArgs(2),
		RunE: authed(a, func(ctx context.Context, args []string) error {
			r, c := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if r == "" || c == "" {
				return errors.New("role and component are required")
			}
			grant, err := a.client.AssignComponent(ctx, r, c, !revoke)
			if err != nil {
				return a.backendError(ctx, err)
			}
			verb := "Granted"
			if !grant.HasAccess {
				verb = "Revoked"
			}
			return writef(a.out, "%s %s for role %s\n", verb, grant.ComponentName, grant.Role)
		}),
	}
	assignCmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke instead of grant")
	cmd.AddCommand(assignCmd)
	return cmd
}

func printComponents(a *app, list domainauth.ComponentList, granted []string) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Component\tAccess"); err != nil {
		return err
	}
	for _, name := range list.Assignable {
		access := "no"
		if slices.Contains(granted, name) {
			access = "yes"
		}
		if err := writef(w, "%s\t%s\n", name, access); err != nil {
			return fmt.Errorf("write component %s: %w", name, err)
		}
	}
	for _, name := range list.AdminOnly {
		if err := writef(w, "%s\t%s\n", name, "admin only"); err != nil {
			return fmt.Errorf("write component %s: %w", name, err)
		}
	}
	return w.Flush()
}

func signupConfigCmd(a *app) *cobra.Command {
	var enable, disable bool
	cmd := &cobra.Command{
		Use:   "signup-config",
		Short: "Show or toggle public registration",
		Args:  cobra.NoArgs,
		RunE: authed(a, func(ctx context.Context, _ []string) error {
			var (
				cfg domainauth.AuthConfig
				err error
			)
			switch {
			case enable && disable:
				return errors.New("--enable and --disable are mutually exclusive")
			case enable || disable:
				cfg, err = a.client.UpdateSignupConfig(ctx, enable)
			default:
				cfg, err = a.client.SignupConfig(ctx)
			}
			if err != nil {
				return a.backendError(ctx, err)
			}
			state := "disabled"
			if cfg.SignupEnabled {
				state = "enabled"
			}
			return writef(a.out, "Signup is %s.\n", state)
		}),
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable public registration")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable public registration")
	return cmd
}
