// Package console provides the embedded HTML templates for the admin console.
package console

import "embed"

// TemplateFS holds frontend/templates. In dev mode the server reads the same tree from disk.
//
//go:embed all:frontend/templates
var TemplateFS embed.FS
