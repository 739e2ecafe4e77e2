package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTMX_RequestDetection(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Hx-Request", "true")
	if !IsHTMX(r) {
		t.Fatal("expected IsHTMX true")
	}
	if IsHTMX(httptest.NewRequest(http.MethodGet, "/x", nil)) {
		t.Fatal("expected IsHTMX false without header")
	}
}

func TestHTMX_HistoryRestore_WantsPartial(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Hx-Request", "true")
	if !WantsPartial(r) {
		t.Fatal("expected partial for htmx request")
	}
	r.Header.Set("Hx-History-Restore-Request", "true")
	if WantsPartial(r) {
		t.Fatal("history restore needs the full page")
	}
}

func TestHTMX_Redirect(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()
	Redirect(w, r, "/dashboard")
	if w.Code != http.StatusOK || w.Header().Get("Hx-Redirect") != "/dashboard" {
		t.Fatalf("htmx redirect: code=%d hx=%q", w.Code, w.Header().Get("Hx-Redirect"))
	}

	w = httptest.NewRecorder()
	Redirect(w, httptest.NewRequest(http.MethodPost, "/login", nil), "/dashboard")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("plain redirect: code=%d location=%q", w.Code, w.Header().Get("Location"))
	}
}

func TestHTMX_SetHXTrigger(t *testing.T) {
	w := httptest.NewRecorder()
	SetHXTrigger(w, "session-changed", map[string]string{"role": "user"})

	var got map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("Hx-Trigger")), &got); err != nil {
		t.Fatalf("decode trigger: %v", err)
	}
	if got["session-changed"]["role"] != "user" {
		t.Fatalf("unexpected trigger payload: %v", got)
	}

	w = httptest.NewRecorder()
	SetHXTrigger(w, "refresh", nil)
	if w.Header().Get("Hx-Trigger") != `{"refresh":true}` {
		t.Fatalf("unexpected trigger: %q", w.Header().Get("Hx-Trigger"))
	}
}
