package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"schoolhub/internal/backend"
)

// CookieName is the browser cookie holding the session token.
const CookieName = "schoolhub_token"

// LoginPath is where the console sends users without a session.
const LoginPath = "/login"

const claimsKey = "claims"

// Required enforces a session token from the Authorization header or the
// session cookie and attaches the backend session to the request context.
func Required(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := tokenFrom(c)
		if tokenStr == "" {
			Unauthorized(c, "Authentication credentials were not provided.")
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			Unauthorized(c, "Session expired. Please sign in again.")
			return
		}
		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(backend.WithSession(c.Request.Context(), claims.Session))
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	if authz := c.GetHeader("Authorization"); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if ck, err := c.Cookie(CookieName); err == nil {
		return ck
	}
	return ""
}

// ClaimsFrom returns the claims set by Required.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// Unauthorized aborts with 401 and tells the console to go to the login view.
func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": LoginPath})
}

// SetCookie stores the token in an HttpOnly cookie.
func SetCookie(c *gin.Context, tok Token, secure bool) {
	maxAge := int(tok.ExpiresAt.Sub(timeNow()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, tok.Value, maxAge, "/", "", secure, true)
}

// ClearCookie removes the session cookie.
func ClearCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}
