package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken("abc", "abc"))
	assert.False(t, ValidateToken("abc", "abd"))
	assert.False(t, ValidateToken("", ""))
	assert.False(t, ValidateToken("abc", ""))
}

func TestEnsureToken_ReusesCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/pricing", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "existing"})
	rec := httptest.NewRecorder()

	token, err := EnsureToken(rec, req, false)
	require.NoError(t, err)
	assert.Equal(t, "existing", token)
	assert.Empty(t, rec.Result().Cookies())
}

func TestEnsureToken_IssuesCookie(t *testing.T) {
	rec := httptest.NewRecorder()

	token, err := EnsureToken(rec, httptest.NewRequest("GET", "/pricing", nil), true)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
}

func TestProtect(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Protect(ok)

	post := func(cookie, field string) int {
		form := url.Values{FormFieldName: {field}}
		req := httptest.NewRequest("POST", "/pricing/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post("tok", "tok"))
	assert.Equal(t, http.StatusForbidden, post("tok", "other"))
	assert.Equal(t, http.StatusForbidden, post("", "tok"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/pricing", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
