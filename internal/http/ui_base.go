package httpx

import (
	"context"
	"html"
	"log/slog"
	"net/http"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

const msgUnexpected = "An unexpected error occurred. Please try again."

// UIHandlers serves the dashboard shell and its child views.
type UIHandlers struct {
	T          *TemplateRenderer
	Navigation *service.NavigationResolver
	Admin      ports.AdminBackend
	Signup     *service.SignupService
	Catalog    *domainauth.CapabilityCatalog
	// IsDev renders template errors inline instead of a generic 500.
	IsDev  bool
	Logger *slog.Logger
}

func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// UserView is the header's picture of the signed-in identity.
type UserView struct {
	DisplayName string
	Email       string
	ActiveRole  string
	Roles       []string
}

// basePageData constructs the common page data map with user context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	data := map[string]any{
		"Title":           meta.Title,
		"PageTitle":       meta.PageTitle,
		"CurrentPage":     meta.CurrentPage,
		"IsAuthenticated": false,
	}
	if token := GetCSRFToken(r); token != "" {
		data["CSRFToken"] = token
	}
	if id := CurrentIdentity(r.Context()); id != nil {
		data["IsAuthenticated"] = true
		data["User"] = UserView{
			DisplayName: id.DisplayName(),
			Email:       id.Email,
			ActiveRole:  id.ActiveRole,
			Roles:       id.Roles,
		}
	}
	return data
}

// backendContext returns the request context carrying the session's bearer token.
func backendContext(r *http.Request) context.Context {
	store, ok := GetSessionFromContext(r.Context())
	if !ok {
		return r.Context()
	}
	return ports.WithTokenSource(r.Context(), store)
}

// PageSpec defines metadata and an optional fetch for page-specific data.
type PageSpec struct {
	Meta  PageMeta
	Fetch func(ctx context.Context, data map[string]any) error
}

// Page builds base data, runs the fetch with the session token and renders.
// A backend 401 means the token expired: the session is cleared and the browser sent to /login.
func (h *UIHandlers) Page(w http.ResponseWriter, r *http.Request, spec PageSpec) {
	data := basePageData(r, spec.Meta)
	if spec.Fetch != nil {
		if err := spec.Fetch(backendContext(r), data); err != nil {
			if apperrors.IsUnauthorized(err) {
				h.expireSession(w, r)
				return
			}
			h.logger().WarnContext(r.Context(), "page fetch failed",
				"page", spec.Meta.CurrentPage, "error", err)
			markPageError(data, apperrors.UserMessage(err, msgUnexpected))
		}
	}
	h.renderDashboardPage(w, r, data)
}

func (h *UIHandlers) expireSession(w http.ResponseWriter, r *http.Request) {
	if store, ok := GetSessionFromContext(r.Context()); ok {
		if err := store.SignOut(r.Context()); err != nil {
			h.logger().ErrorContext(r.Context(), "sign out after expired token failed", "error", err)
		}
	}
	Redirect(w, r, service.LoginPath)
}

func markPageError(data map[string]any, msg string) {
	data["Error"] = true
	if _, ok := data["ErrorMessage"]; ok {
		return
	}
	data["ErrorMessage"] = msg
}

// renderDashboardPage renders a full page, or for htmx the content plus out-of-band title updates.
func (h *UIHandlers) renderDashboardPage(w http.ResponseWriter, r *http.Request, data map[string]any) {
	if !WantsPartial(r) {
		if err := h.T.RenderFull(w, r, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	title, _ := data["Title"].(string)
	pageTitle, _ := data["PageTitle"].(string)
	page, _ := data["CurrentPage"].(string)

	if _, err := w.Write([]byte(`<title>` + html.EscapeString(title) + `</title>`)); err != nil {
		h.logger().Error("failed to write partial document title", "error", err)
		return
	}
	if _, err := w.Write([]byte(`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` +
		html.EscapeString(pageTitle) + `</h1>`)); err != nil {
		h.logger().Error("failed to write partial header title", "error", err)
		return
	}
	if err := h.T.t.ExecuteTemplate(w, ContentTemplateFor(page), data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial content render")
	}
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, where string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", where,
		"path", r.URL.Path,
		"method", r.Method,
	)
	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<pre class="template-error">` + html.EscapeString(where+": "+err.Error()) + `</pre>`))
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
