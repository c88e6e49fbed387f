package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/sites":                                          "/api/sites",
		"/api/sites/6b1f0b5e-7c56-4d4c-9d55-0a8f7c5bb001":     "/api/sites/{id}",
		"/api/sites/6b1f0b5e-7c56-4d4c-9d55-0a8f7c5bb001/sync": "/api/sites/{id}/sync",
		"/files/sites/6b1f0b5e-7c56-4d4c-9d55-0a8f7c5bb001/logo-a.png": "/files/{key}",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	var label string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		label = routeLabel(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "/api/posts/{id}", label)
}
