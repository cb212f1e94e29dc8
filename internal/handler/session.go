package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolhub/internal/auth"
	"schoolhub/internal/backend"
)

func (h *Handler) login(c *gin.Context) {
	var req backend.Credentials
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		badRequest(c, "Username and password are required.")
		return
	}
	res, err := h.API.Login(c.Request.Context(), req)
	if err != nil {
		// A rejected login is not an expired session.
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": backend.Message(err, "Invalid credentials.")})
			return
		}
		h.fail(c, err, "Login failed.")
		return
	}
	tok, err := auth.Issue(res.User, res.Session, h.JWTIssuer, h.JWTSigningKey, h.SessionTTL)
	if err != nil {
		h.Log.Error("issue session token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login failed."})
		return
	}
	auth.SetCookie(c, tok, h.SecureCookies)
	h.Log.Info("signed in", zap.String("user", res.User.Username))
	c.JSON(http.StatusOK, gin.H{
		"message":    res.Message,
		"user":       res.User,
		"token":      tok.Value,
		"expires_at": tok.ExpiresAt.Unix(),
	})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.API.Logout(c.Request.Context()); err != nil {
		h.Log.Warn("backend logout", zap.Error(err))
	}
	auth.ClearCookie(c, h.SecureCookies)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.API.CurrentUser(c.Request.Context())
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, user)
}
