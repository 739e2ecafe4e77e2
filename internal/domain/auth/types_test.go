package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveActiveRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  string
	}{
		{name: "admin first", roles: []string{"admin", "user"}, want: "admin"},
		{name: "admin last", roles: []string{"user", "analyst", "admin"}, want: "admin"},
		{name: "no admin", roles: []string{"analyst", "user"}, want: "analyst"},
		{name: "single", roles: []string{"user"}, want: "user"},
		{name: "empty", roles: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveActiveRole(tt.roles))
		})
	}
}

func TestIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", Identity{Email: "ada@x.com", FullName: "Ada"}.DisplayName())
	assert.Equal(t, "ada@x.com", Identity{Email: "ada@x.com"}.DisplayName())
}

func TestIdentity_CloneDoesNotShareRoles(t *testing.T) {
	orig := Identity{Roles: []string{"user"}}
	c := orig.Clone()
	c.Roles[0] = "admin"
	assert.Equal(t, "user", orig.Roles[0])
	assert.False(t, orig.IsAdmin())
	assert.True(t, c.IsAdmin())
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, 1, c.Version)
	require.Len(t, c.Capabilities, 7)

	capability, ok := c.Lookup("GUARDRAILS_CONFIGURATION")
	require.True(t, ok)
	assert.Equal(t, "/dashboard/guardrails/config", capability.Route())

	byPath, ok := c.ByPath("/users/")
	require.True(t, ok)
	assert.Equal(t, CapabilityUserManagement, byPath.Key)
	assert.Equal(t, CapabilityKindAdmin, byPath.Kind)

	_, ok = c.Lookup("SOMETHING_NEW")
	assert.False(t, ok, "unknown keys are ignored, not errors")
}

func TestParseCatalog_Rejects(t *testing.T) {
	_, err := ParseCatalog([]byte("version: 0\ncapabilities: []\n"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte("version: 1\ncapabilities:\n  - key: A\n    path: a\n  - key: A\n    path: b\n"))
	require.ErrorContains(t, err, "duplicate capability key")

	_, err = ParseCatalog([]byte("version: 1\ncapabilities:\n  - key: A\n    path: a\n  - key: B\n    path: /a/\n"))
	require.ErrorContains(t, err, "used by both")
}
