package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func securityHeaders(isSecure bool, origins ...string) http.Header {
	mw := NewSecurityHeadersMiddleware(isSecure, origins...)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))
	return rec.Header()
}

func TestSecurityHeadersMiddleware_SetsAllHeaders(t *testing.T) {
	h := securityHeaders(true)

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
		{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
	}
	for _, tc := range tests {
		if got := h.Get(tc.header); got != tc.expected {
			t.Errorf("%s = %q, want %q", tc.header, got, tc.expected)
		}
	}
}

func TestSecurityHeadersMiddleware_NoHSTSInDevelopment(t *testing.T) {
	if got := securityHeaders(false).Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should not be set in development, got %q", got)
	}
}

func TestSecurityHeadersMiddleware_CSP(t *testing.T) {
	csp := securityHeaders(false, "https://cdn.streamtosite.test", " ").Get("Content-Security-Policy")

	for _, want := range []string{
		"default-src 'self'",
		"script-src 'self';",
		"img-src 'self' data: https: https://cdn.streamtosite.test;",
		"frame-ancestors 'none'",
		"form-action 'self' https://checkout.stripe.com",
	} {
		if !strings.Contains(csp, want) {
			t.Errorf("CSP should contain %q, got %q", want, csp)
		}
	}
	if strings.Contains(csp, "unsafe-eval") {
		t.Errorf("CSP must not allow eval: %q", csp)
	}
}
