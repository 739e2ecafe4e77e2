package httpx

// Page identifiers used by templates and the dashboard shell.
const (
	PageLogin  = "login"
	PageSignup = "signup"

	// Dashboard shell views.
	PageHome    = "home"
	PageFeature = "feature"

	// Base admin views.
	PageUsers      = "users"
	PageRoles      = "roles"
	PageComponents = "components"
)

// SessionCookieName carries the opaque key of the browser's session store.
const SessionCookieName = "session_id"

// TemplatePathFromRoot is the template tree relative to the repository root.
const TemplatePathFromRoot = "frontend/templates"

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageLogin:      "login-content",
	PageSignup:     "signup-content",
	PageHome:       "home-content",
	PageFeature:    "feature-content",
	PageUsers:      "users-content",
	PageRoles:      "roles-content",
	PageComponents: "components-content",
}

// ContentTemplateFor returns the content template for the given page.
// Unknown pages fall back to the dashboard home.
func ContentTemplateFor(page string) string {
	if name, ok := contentTemplates[page]; ok {
		return name
	}
	return "home-content"
}
