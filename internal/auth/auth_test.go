package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub/internal/backend"
)

const (
	testKey    = "test-key"
	testIssuer = "schoolhub-console"
)

func TestIssueParseRoundTrip(t *testing.T) {
	user := backend.User{ID: 7, Username: "admin", IsSuperuser: true}
	tok, err := Issue(user, backend.Session{ID: "sid", CSRFToken: "csrf"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)

	claims, err := Parse(tok.Value, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "admin", claims.Subject)
	assert.True(t, claims.Staff)
	assert.Equal(t, backend.Session{ID: "sid", CSRFToken: "csrf"}, claims.Session)
}

func TestParseRejects(t *testing.T) {
	user := backend.User{Username: "admin"}
	good, err := Issue(user, backend.Session{ID: "sid"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := Issue(user, backend.Session{ID: "sid"}, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	noSession, err := Issue(user, backend.Session{}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name, token, key, issuer string
	}{
		{"wrong key", good.Value, "other", testIssuer},
		{"wrong issuer", good.Value, testKey, "someone-else"},
		{"expired", expired.Value, testKey, testIssuer},
		{"no backend session", noSession.Value, testKey, testIssuer},
		{"garbage", "not.a.token", testKey, testIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.key, tt.issuer)
			assert.Error(t, err)
		})
	}
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Required(testKey, testIssuer), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		sess, hasSession := backend.SessionFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": ok && hasSession, "user": claims.Username, "sid": sess.ID})
	})
	return r
}

func TestRequiredAcceptsBearerAndCookie(t *testing.T) {
	tok, err := Issue(backend.User{Username: "admin"}, backend.Session{ID: "sid"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"user":"admin","sid":"sid"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok.Value})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiredRedirectsToLogin(t *testing.T) {
	r := newRouter()
	for _, authz := range []string{"", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
	}
}

func TestSetCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SetCookie(c, Token{Value: "v", ExpiresAt: time.Now().Add(time.Hour)}, true)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}
