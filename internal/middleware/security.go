package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	isSecure bool // enables HSTS (production)
	csp      string
}

// NewSecurityHeadersMiddleware creates a new security headers middleware.
// imageOrigins are extra origins allowed in img-src, such as the public
// URL of the blob store.
func NewSecurityHeadersMiddleware(isSecure bool, imageOrigins ...string) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure: isSecure,
		csp:      buildCSP(imageOrigins),
	}
}

// Handler returns middleware that sets security headers on all responses.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if m.isSecure {
			// 1 year
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		h.Set("Content-Security-Policy", m.csp)
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		next.ServeHTTP(w, r)
	})
}

// buildCSP constructs the Content-Security-Policy header value. Channel
// avatars come from the platforms' CDNs, so img-src allows any https source.
func buildCSP(imageOrigins []string) string {
	img := []string{"'self'", "data:", "https:"}
	for _, o := range imageOrigins {
		if o = strings.TrimSpace(o); o != "" {
			img = append(img, o)
		}
	}
	return "default-src 'self'; " +
		"script-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src " + strings.Join(img, " ") + "; " +
		"font-src 'self'; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self' https://checkout.stripe.com https://billing.stripe.com"
}
