// Command console-admin drives the console services from a terminal. The
// session is kept in a local file so consecutive invocations share one login.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/backend"
	"github.com/target/mmk-console/internal/adapters/filestore"
	"github.com/target/mmk-console/internal/bootstrap"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// cliSessionKey is the single key the CLI stores its session under.
const cliSessionKey = "cli"

var errSessionExpired = errors.New("session expired; run console-admin login")

func main() {
	logger := bootstrap.InitLogger()
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

type rootOptions struct {
	SessionFile string
	BackendURL  string
}

// app is built once per invocation by the root command's pre-run hook.
type app struct {
	cfg      config.AppConfig
	logger   *slog.Logger
	file     *filestore.SessionFile
	sessions *service.SessionManager
	store    *service.SessionStore
	client   *backend.Client
	catalog  *domainauth.CapabilityCatalog
	nav      *service.NavigationResolver

	in  *bufio.Reader
	out io.Writer
}

func newRootCmd() *cobra.Command {
	var (
		opts rootOptions
		a    = &app{}
	)

	cmd := &cobra.Command{
		Use:           "console-admin",
		Short:         "Administer the console from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.SessionFile, "session-file", "", "Session file path (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.BackendURL, "backend-url", "", "Backend API base URL (default: BACKEND_BASE_URL)")

	cmd.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		roleCmd(a),
		navCmd(a),
		usersCmd(a),
		rolesCmd(a),
		componentsCmd(a),
		signupConfigCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command, opts rootOptions) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetLogLevel(cfg.Observability.LogLevel)
	if opts.BackendURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BackendURL), "/")
	}

	path := opts.SessionFile
	if path == "" {
		path = cfg.Session.FilePath
	}
	if path == "" {
		if path, err = filestore.DefaultPath(); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = slog.Default().With("component", "console_admin")
	a.file = filestore.NewSessionFile(path)
	a.in = bufio.NewReader(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()

	if a.catalog, err = bootstrap.LoadCatalog(cfg.Backend.CatalogPath); err != nil {
		return err
	}
	a.sessions, err = service.NewSessionManager(service.SessionManagerOptions{
		Persistence: a.file,
		DefaultTTL:  cfg.Session.TTL,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}
	a.sessions.Subscribe(func(ev ports.SessionEvent) {
		a.logger.Debug("session event", "kind", ev.Kind)
	})
	if a.store, err = a.sessions.Restore(cmd.Context(), cliSessionKey); err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	base, err := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		CookieJar: true,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}
	a.client = base.WithTokenSource(a)

	a.nav, err = service.NewNavigationResolver(a.client, cfg.Backend.NavigationExpr)
	if err != nil {
		return fmt.Errorf("navigation resolver: %w", err)
	}
	return nil
}

// Token reads the current store so the client follows logins made mid-command.
func (a *app) Token() string {
	if a.store == nil {
		return ""
	}
	return a.store.Token()
}

// reload reopens the store from the session file.
func (a *app) reload(ctx context.Context) error {
	store, err := a.sessions.Open(ctx, cliSessionKey)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	a.store = store
	return nil
}

// requireSession returns the signed-in identity or an error telling the user to log in.
func (a *app) requireSession() (*domainauth.Identity, error) {
	id := a.store.Current()
	if id == nil {
		return nil, errors.New("not signed in; run console-admin login")
	}
	return id, nil
}

// backendError clears the stored session when the backend rejects the token.
func (a *app) backendError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsUnauthorized(err) {
		if serr := a.store.SignOut(ctx); serr != nil {
			a.logger.WarnContext(ctx, "clear expired session failed", "error", serr)
		}
		return errSessionExpired
	}
	return errors.New(apperrors.BackendMessage(err, apperrors.UserMessage(err, "Backend request failed")))
}

// prompt writes label and reads one trimmed line from the command's input.
func (a *app) prompt(label string) (string, error) {
	if err := writef(a.out, "%s: ", label); err != nil {
		return "", err
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, text string) error {
	_, err := fmt.Fprintln(w, text)
	return err
}
