package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// whoami writes the user id from the context, or "anonymous".
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		fmt.Fprintf(w, "%d", id)
		return
	}
	fmt.Fprint(w, "anonymous")
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestAuthenticate_CookieAndBearer(t *testing.T) {
	a := NewAuth("test-secret", time.Hour)
	token, err := a.IssueToken(42)
	require.NoError(t, err)
	h := a.Authenticate(whoami)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	assert.Equal(t, "42", serve(h, r).Body.String())

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, "42", serve(h, r).Body.String())
}

func TestAuthenticate_InvalidTokensAreAnonymous(t *testing.T) {
	a := NewAuth("test-secret", time.Hour)
	other := NewAuth("other-secret", time.Hour)
	foreign, err := other.IssueToken(42)
	require.NoError(t, err)

	expired := NewAuth("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.IssueToken(42)
	require.NoError(t, err)

	badClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	h := a.Authenticate(whoami)
	for name, tok := range map[string]string{
		"garbage":   "not-a-jwt",
		"foreign":   foreign,
		"expired":   stale,
		"bad claim": badClaim,
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
			rec := serve(h, r)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "anonymous", rec.Body.String())
		})
	}

	assert.Equal(t, "anonymous", serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String())
}

func TestCookies(t *testing.T) {
	a := NewAuth("s", time.Hour)

	rec := httptest.NewRecorder()
	a.SetCookie(rec, "abc")
	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, "abc", c[0].Value)
	assert.True(t, c[0].HttpOnly)
	assert.Equal(t, 3600, c[0].MaxAge)

	rec = httptest.NewRecorder()
	ClearCookie(rec)
	c = rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Empty(t, c[0].Value)
	assert.Negative(t, c[0].MaxAge)
}

func TestLoginRequired(t *testing.T) {
	h := LoginRequired(whoami)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/new/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login/?next=%2Fnew%2F", rec.Header().Get("Location"))

	r := httptest.NewRequest(http.MethodGet, "/new/", nil)
	r = r.WithContext(WithUserID(r.Context(), 7))
	rec = serve(h, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", rec.Body.String())
}

func TestAccessLog_PassesThrough(t *testing.T) {
	h := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRecover(t *testing.T) {
	onPanic := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "server error")
	})
	h := Recover(onPanic)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "server error", rec.Body.String())
}
