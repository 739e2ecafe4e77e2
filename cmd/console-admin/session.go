package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/service"
)

type loginOptions struct {
	Email    string
	Password string
	Role     string
	OTP      string
}

func loginCmd(a *app) *cobra.Command {
	var opts loginOptions
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.login(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "Account email (prompted when empty)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Account password (prompted when empty)")
	cmd.Flags().StringVar(&opts.Role, "role", "", "Role to sign in as (default: admin when granted)")
	cmd.Flags().StringVar(&opts.OTP, "otp", "", "One-time code when two-factor is enabled (prompted when needed)")
	return cmd
}

func (a *app) login(ctx context.Context, opts loginOptions) error {
	flow := service.NewAuthFlow(service.AuthFlowOptions{
		Backend: a.client,
		Signer:  a.sessions.Signer(cliSessionKey),
		Logger:  a.logger,
	})

	email, err := valueOrPrompt(a, opts.Email, "Email")
	if err != nil {
		return err
	}
	if err = flow.CheckEmail(ctx, email); err != nil {
		return flowError(flow, err)
	}

	view := flow.View()
	if opts.Role != "" {
		if len(view.OfferedRoles) > 0 && !slices.Contains(view.OfferedRoles, opts.Role) {
			return fmt.Errorf("role %q is not granted; choose one of %s", opts.Role, strings.Join(view.OfferedRoles, ", "))
		}
		flow.SelectRole(opts.Role)
	}

	password, err := valueOrPrompt(a, opts.Password, "Password")
	if err != nil {
		return err
	}
	flow.SetPassword(password)
	if err = flow.Submit(ctx); err != nil {
		return flowError(flow, err)
	}

	if view = flow.View(); view.State == service.StateOTPPending {
		if err = writeln(a.out, view.Info); err != nil {
			return err
		}
		otp, perr := valueOrPrompt(a, opts.OTP, "Code")
		if perr != nil {
			return perr
		}
		flow.SetOTP(otp)
		if err = flow.Submit(ctx); err != nil {
			return flowError(flow, err)
		}
	}

	if err = a.reload(ctx); err != nil {
		return err
	}
	id, err := a.requireSession()
	if err != nil {
		return err
	}
	return writef(a.out, "Signed in as %s (%s)\n", id.DisplayName(), id.ActiveRole)
}

// flowError prefers the message the flow would show on screen.
func flowError(flow *service.AuthFlow, err error) error {
	if msg := flow.View().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func valueOrPrompt(a *app, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.prompt(label)
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("sign out: %w", err)
			}
			return writeln(a.out, "Signed out")
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	var (
		watch  bool
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if remote {
				return a.whoamiRemote(ctx)
			}
			if err := printIdentity(a, a.store.Current()); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return a.watchSession(ctx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and print the identity whenever the session file changes")
	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the backend who the stored token belongs to")
	return cmd
}

func (a *app) whoamiRemote(ctx context.Context) error {
	if _, err := a.requireSession(); err != nil {
		return err
	}
	id, err := a.client.Me(ctx)
	if err != nil {
		return a.backendError(ctx, err)
	}
	id.ActiveRole = a.store.Current().ActiveRole
	return printIdentity(a, &id)
}

// watchSession reprints the identity on every session file change until interrupted.
func (a *app) watchSession(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.file.Watch(ctx, func() {
		if err := a.reload(ctx); err != nil {
			a.logger.WarnContext(ctx, "reload session failed", "error", err)
			return
		}
		if err := printIdentity(a, a.store.Current()); err != nil {
			a.logger.WarnContext(ctx, "print identity failed", "error", err)
		}
	})
}

func printIdentity(a *app, id *domainauth.Identity) error {
	if id == nil {
		return writeln(a.out, "Not signed in")
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Name", id.DisplayName()},
		{"Email", id.Email},
		{"Active role", id.ActiveRole},
		{"Roles", strings.Join(id.Roles, ", ")},
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write identity: %w", err)
		}
	}
	return w.Flush()
}

func roleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role <name>",
		Short: "Switch the active role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.requireSession()
			if err != nil {
				return err
			}
			role := strings.TrimSpace(args[0])
			if !id.HasRole(role) {
				return fmt.Errorf("role %q is not granted; choose one of %s", role, strings.Join(id.Roles, ", "))
			}
			if err = a.store.SetActiveRole(cmd.Context(), role); err != nil {
				return fmt.Errorf("switch role: %w", err)
			}
			// Another process may have logged out meanwhile.
			if _, err = a.requireSession(); err != nil {
				return err
			}
			return writef(a.out, "Active role: %s\n", role)
		},
	}
}

func navCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "List the modules available to the active role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.requireSession(); err != nil {
				return err
			}
			items, err := a.nav.FetchNavigation(ctx, a.store)
			if err != nil {
				if apperrors.IsUnauthorized(err) {
					return a.backendError(ctx, err)
				}
				return errors.New(apperrors.UserMessage(err, "Navigation unavailable"))
			}
			menu := service.BuildMenu(items, a.catalog)
			if len(menu) == 0 {
				return writeln(a.out, "No modules are available for your role.")
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			if err = writeln(w, "Key\tLabel\tRoute"); err != nil {
				return err
			}
			for _, m := range menu {
				route := m.Route
				if route == "" {
					route = "-"
				}
				if err = writef(w, "%s\t%s\t%s\n", m.Name, m.Label, route); err != nil {
					return fmt.Errorf("write menu entry: %w", err)
				}
			}
			return w.Flush()
		},
	}
}
