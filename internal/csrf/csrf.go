// Package csrf protects the server-rendered forms with a double-submit
// cookie: the page sets a random token in a cookie and echoes it in a
// hidden field, and the POST must present both.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// CookieName is the name of the token cookie.
	CookieName = "sts_csrf"

	// FormFieldName is the hidden form field carrying the token.
	FormFieldName = "csrf_token"

	// TokenLength is the number of random bytes in a token.
	TokenLength = 32

	// CookieMaxAge is the cookie lifetime in seconds.
	CookieMaxAge = 3600
)

// GenerateToken returns 32 random bytes, base64 URL-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie and form tokens in constant time.
func ValidateToken(cookieToken, formToken string) bool {
	if cookieToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

// ValidateRequest checks the form token of r against its cookie.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return ValidateToken(cookie.Value, r.PostFormValue(FormFieldName))
}

// SetCookie stores token on the response.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// EnsureToken returns the request's existing token or issues a new one.
// Pages call it while rendering a form.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)
	return token, nil
}

// Protect rejects unsafe requests whose form token does not match the
// cookie. GET, HEAD and OPTIONS pass through.
func Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !ValidateRequest(r) {
			http.Error(w, "Your session expired. Reload the page and try again.", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
