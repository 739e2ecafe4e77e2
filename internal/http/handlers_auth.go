package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/service"
)

// AuthHandlers serves the login, signup and logout pages.
type AuthHandlers struct {
	T        *TemplateRenderer
	Sessions *service.SessionManager
	Flows    *service.AuthFlowRegistry
	Signup   *service.SignupService
	// CookieDomain scopes the session cookie; empty means host-only.
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// LoginPage renders the email step. Each visit issues a fresh session key so a key
// planted before sign-in is never promoted to an authenticated session. No flow
// is created until the first submit.
// GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if id := CurrentIdentity(r.Context()); id != nil {
		Redirect(w, r, service.DashboardPath)
		return
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		h.Flows.Drop(c.Value)
	}
	key := uuid.NewString()
	h.setSessionCookie(w, r, key)
	h.renderLogin(w, r, service.InitialFlowView())
}

// LoginSubmit advances the caller's auth flow by one step.
// POST /login.
func (h *AuthHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if key == "" {
		Redirect(w, r, service.LoginPath)
		return
	}
	flow := h.Flows.Get(key)

	var err error
	switch flow.View().State {
	case service.StateEnteringEmail:
		err = flow.CheckEmail(r.Context(), r.PostFormValue("email"))
	case service.StateEmailChecked:
		if role := strings.TrimSpace(r.PostFormValue("role")); role != "" {
			flow.SelectRole(role)
		}
		flow.SetPassword(r.PostFormValue("password"))
		err = flow.Submit(r.Context())
	case service.StateOTPPending:
		flow.SetOTP(r.PostFormValue("otp"))
		err = flow.Submit(r.Context())
	}
	h.logStep(r.Context(), flow, err)

	view := flow.View()
	if view.State == service.StateAuthenticated {
		h.Flows.Drop(key)
		Redirect(w, r, service.DashboardPath)
		return
	}
	h.renderLogin(w, r, view)
}

// LoginReset returns the flow to the email step.
// POST /login/reset.
func (h *AuthHandlers) LoginReset(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if key == "" {
		Redirect(w, r, service.LoginPath)
		return
	}
	flow, ok := h.Flows.Lookup(key)
	if !ok {
		h.renderLogin(w, r, service.InitialFlowView())
		return
	}
	flow.Reset()
	h.renderLogin(w, r, flow.View())
}

func (h *AuthHandlers) logStep(ctx context.Context, flow *service.AuthFlow, err error) {
	switch {
	case err == nil:
	case errors.Is(err, service.ErrStaleResponse):
		h.logger().DebugContext(ctx, "auth flow response discarded", "flow_id", flow.ID())
	case apperrors.IsValidation(err), apperrors.IsNotFound(err), apperrors.IsUnauthorized(err):
		h.logger().DebugContext(ctx, "auth flow step rejected", "flow_id", flow.ID(), "error", err)
	default:
		h.logger().WarnContext(ctx, "auth flow step failed", "flow_id", flow.ID(), "error", err)
	}
}

func (h *AuthHandlers) renderLogin(w http.ResponseWriter, r *http.Request, view service.FlowView) {
	data := basePageData(r, PageMeta{Title: "Sign in", PageTitle: "Sign in", CurrentPage: PageLogin})
	data["Flow"] = view
	data["SignupEnabled"] = h.Signup != nil && h.Signup.Enabled(r.Context())
	h.render(w, r, data)
}

// SignupPage renders the registration form, or sends the caller back to /login
// when signup is disabled.
// GET /signup.
func (h *AuthHandlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	if CurrentIdentity(r.Context()) != nil {
		Redirect(w, r, service.DashboardPath)
		return
	}
	if h.Signup == nil || !h.Signup.Enabled(r.Context()) {
		Redirect(w, r, service.LoginPath)
		return
	}
	key := uuid.NewString()
	h.setSessionCookie(w, r, key)
	h.renderSignup(w, r, service.SignupForm{}, nil)
}

// SignupSubmit registers the account and signs it in.
// POST /signup.
func (h *AuthHandlers) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if key == "" || h.Signup == nil {
		Redirect(w, r, service.LoginPath)
		return
	}
	form := service.SignupForm{
		Email:           r.PostFormValue("email"),
		FullName:        r.PostFormValue("full_name"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	if err := h.Signup.Register(r.Context(), h.Sessions.Signer(key), form); err != nil {
		if !apperrors.IsValidation(err) {
			h.logger().WarnContext(r.Context(), "signup failed", "error", err)
		}
		h.renderSignup(w, r, form, err)
		return
	}
	Redirect(w, r, service.DashboardPath)
}

func (h *AuthHandlers) renderSignup(w http.ResponseWriter, r *http.Request, form service.SignupForm, err error) {
	data := basePageData(r, PageMeta{Title: "Sign up", PageTitle: "Create account", CurrentPage: PageSignup})
	form.Password, form.ConfirmPassword = "", ""
	data["Form"] = form
	if err != nil {
		data["Error"] = true
		data["ErrorMessage"] = apperrors.UserMessage(err, service.MsgRegistrationFailed)
		data["ErrorField"] = apperrors.GetField(err)
	}
	h.render(w, r, data)
}

// Logout signs the session out, clears the cookie and returns to /login.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if store, ok := GetSessionFromContext(r.Context()); ok {
		if err := store.SignOut(r.Context()); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
		h.Flows.Drop(store.Key())
	}
	h.clearCookie(w, r, SessionCookieName)
	Redirect(w, r, service.LoginPath)
}

func (h *AuthHandlers) render(w http.ResponseWriter, r *http.Request, data map[string]any) {
	var err error
	if WantsPartial(r) {
		err = h.T.RenderPartial(w, r, data)
	} else {
		err = h.T.RenderFull(w, r, data)
	}
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func sessionKeyFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSessionCookie writes the browser-session cookie. The server-side record
// carries the real expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    key,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie expires a cookie, mirroring the attributes used when it was set.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
