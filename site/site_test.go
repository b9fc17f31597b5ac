package site

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newSite(t *testing.T) http.Handler {
	t.Helper()
	h, err := Handler("/access-denied")
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	return h
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerServesIndex(t *testing.T) {
	h := newSite(t)
	for _, target := range []string{"/", "/index.html", "/profile/42"} {
		rec := get(h, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "<h1>Welcome</h1>") {
			t.Errorf("%s: expected index page", target)
		}
		if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
			t.Errorf("%s: Content-Type = %q", target, got)
		}
	}
}

func TestHandlerServesDeniedPage(t *testing.T) {
	h := newSite(t)
	rec := get(h, "/access-denied")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Access denied") {
		t.Error("expected access-denied page")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestHandlerCustomDenialPath(t *testing.T) {
	h, err := Handler("/sorry")
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if body := get(h, "/sorry").Body.String(); !strings.Contains(body, "Access denied") {
		t.Error("custom denial path should serve the access-denied page")
	}
}

func TestHandlerServesAssets(t *testing.T) {
	h := newSite(t)

	rec := get(h, "/assets/site.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q, want text/css", ct)
	}

	rec = get(h, "/favicon.ico")
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Errorf("favicon: status = %d, len = %d", rec.Code, rec.Body.Len())
	}
}

func TestHandlerHead(t *testing.T) {
	h := newSite(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD returned %d body bytes", rec.Body.Len())
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rec := get(h, "/")
	for _, k := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if rec.Header().Get(k) == "" {
			t.Errorf("missing %s", k)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP request")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing behind TLS-terminating proxy")
	}
}

func TestRequestIsSecure(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   bool
	}{
		{"plain", "", "", false},
		{"x-forwarded-proto", "X-Forwarded-Proto", "HTTPS", true},
		{"forwarded", "Forwarded", "for=192.0.2.60;proto=https", true},
		{"forwarded http", "Forwarded", "proto=http", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			if got := RequestIsSecure(r); got != tt.want {
				t.Errorf("RequestIsSecure = %v, want %v", got, tt.want)
			}
		})
	}
}
