package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a minimal backend: one admin account, token "tok-1".
type fakeAPI struct {
	mu      sync.Mutex
	revoked bool
	signup  bool
	calls   []string
}

func (f *fakeAPI) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	revoked := f.revoked
	f.mu.Unlock()

	reply := func(status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	var in map[string]any
	_ = json.NewDecoder(r.Body).Decode(&in)

	switch r.Method + " " + r.URL.Path {
	case "POST /api/auth/check-email":
		if in["email"] == "ada@example.com" {
			reply(http.StatusOK, map[string]any{"exists": true, "roles": []string{"user", "admin"}})
			return
		}
		reply(http.StatusOK, map[string]any{"exists": false})
		return
	case "POST /api/auth/login":
		if in["password"] != "s3cret" {
			reply(http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		reply(http.StatusOK, map[string]any{
			"access_token": "tok-1",
			"user": map[string]any{
				"id": 1, "email": "ada@example.com", "full_name": "Ada Admin", "roles": []string{"user", "admin"},
			},
		})
		return
	}

	if revoked || r.Header.Get("Authorization") != "Bearer tok-1" {
		reply(http.StatusUnauthorized, map[string]string{"message": "Token expired"})
		return
	}

	switch r.Method + " " + r.URL.Path {
	case "GET /api/components/navigation":
		reply(http.StatusOK, map[string]any{"navigation": []map[string]string{
			{"name": "NORMAL_CHAT", "label": "Tool Chat"},
		}})
	case "GET /api/users":
		reply(http.StatusOK, []map[string]any{
			{"id": 1, "email": "ada@example.com", "full_name": "Ada Admin", "roles": []string{"admin"}},
			{"id": 2, "email": "grace@example.com", "roles": []string{"user"}},
		})
	case "DELETE /api/users/2":
		w.WriteHeader(http.StatusNoContent)
	case "POST /api/auth/config/signup":
		f.mu.Lock()
		f.signup, _ = in["enabled"].(bool)
		enabled := f.signup
		f.mu.Unlock()
		reply(http.StatusOK, map[string]bool{"enabled": enabled})
	case "GET /api/auth/config/signup":
		f.mu.Lock()
		enabled := f.signup
		f.mu.Unlock()
		reply(http.StatusOK, map[string]bool{"enabled": enabled})
	case "GET /api/components":
		reply(http.StatusOK, map[string]any{"assignable": []string{"NORMAL_CHAT", "AGENTIC_RAG"}, "admin_only": []string{"USER_MANAGEMENT"}})
	case "GET /api/components/role/user":
		reply(http.StatusOK, map[string]any{"components": []string{"NORMAL_CHAT"}})
	default:
		reply(http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

type cliHarness struct {
	api         *fakeAPI
	url         string
	sessionFile string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return &cliHarness{
		api:         api,
		url:         srv.URL + "/api",
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

func (h *cliHarness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--backend-url", h.url, "--session-file", h.sessionFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *cliHarness) login(t *testing.T) {
	t.Helper()
	_, err := h.run(t, "", "login", "--email", "ada@example.com", "--password", "s3cret")
	require.NoError(t, err)
}

func TestLoginPromptsAndPersistsSession(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "ada@example.com\ns3cret\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ada Admin (admin)")

	raw, err := os.ReadFile(h.sessionFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"access_token": "tok-1"`)

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "admin")
}

func TestLoginErrorsUseFlowMessages(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "login", "--email", "ghost@example.com", "--password", "x")
	require.Error(t, err)
	assert.Equal(t, "Email not found. Please sign up.", err.Error())

	_, err = h.run(t, "", "login", "--email", "ada@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = h.run(t, "", "login", "--email", "ada@example.com", "--password", "s3cret", "--role", "ops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not granted")

	out, err := h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestRoleSwitchesOnlyToGrantedRoles(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "role", "user")
	require.NoError(t, err)
	assert.Contains(t, out, "Active role: user")

	_, err = h.run(t, "", "role", "ops")
	require.Error(t, err)

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Regexp(t, `Active role\s+user`, out)
}

func TestNavPrintsMenuWithRoutes(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "nav")
	require.NoError(t, err)
	assert.Contains(t, out, "NORMAL_CHAT")
	assert.Contains(t, out, "Tool Chat")
	assert.Contains(t, out, "/dashboard/chat")
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{"nav"}, {"users", "list"}, {"signup-config"}} {
		_, err := h.run(t, "", args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "not signed in")
	}
	assert.False(t, h.api.called("GET /api/users"))
}

func TestRejectedTokenClearsStoredSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.mu.Lock()
	h.api.revoked = true
	h.api.mu.Unlock()

	_, err := h.run(t, "", "users", "list")
	require.ErrorIs(t, err, errSessionExpired)

	out, err := h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestUsersCommands(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "grace@example.com")

	_, err = h.run(t, "", "users", "delete", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "your own account")
	assert.False(t, h.api.called("DELETE /api/users/1"))

	out, err = h.run(t, "", "users", "delete", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted user 2")

	_, err = h.run(t, "", "users", "create", "--email", "new@example.com", "--password", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6 characters")
	assert.False(t, h.api.called("POST /api/users"))
}

func TestComponentsListForRole(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "components", "list", "--role", "user")
	require.NoError(t, err)
	assert.Regexp(t, `NORMAL_CHAT\s+yes`, out)
	assert.Regexp(t, `AGENTIC_RAG\s+no`, out)
	assert.Regexp(t, `USER_MANAGEMENT\s+admin only`, out)
}

func TestSignupConfigToggle(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "signup-config")
	require.NoError(t, err)
	assert.Contains(t, out, "Signup is disabled.")

	out, err = h.run(t, "", "signup-config", "--enable")
	require.NoError(t, err)
	assert.Contains(t, out, "Signup is enabled.")

	_, err = h.run(t, "", "signup-config", "--enable", "--disable")
	require.Error(t, err)
}
