package config

import (
	"strings"
	"time"
)

const defaultBackendBaseURL = "http://localhost:5000/api"

// BackendConfig describes the REST backend the console fronts.
type BackendConfig struct {
	// BaseURL is the backend API root. Endpoint paths such as /auth/login are appended to it.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000/api"`

	// Timeout bounds every backend call. Zero disables the client timeout.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`

	// NavigationExpr is the JMESPath expression that selects the item list
	// from the /components/navigation envelope.
	NavigationExpr string `env:"NAVIGATION_EXPR" envDefault:"navigation"`

	// CatalogPath optionally replaces the embedded capability catalog with a YAML file.
	CatalogPath string `env:"CATALOG_PATH"`
}

// Sanitize normalises backend settings.
func (c *BackendConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBackendBaseURL
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	c.NavigationExpr = strings.TrimSpace(c.NavigationExpr)
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)
}
