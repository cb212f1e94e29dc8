// Package handler is the console gateway's HTTP surface.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolhub/internal/attendance"
	"schoolhub/internal/auth"
	"schoolhub/internal/backend"
	"schoolhub/internal/bulk"
	"schoolhub/internal/exports"
	"schoolhub/internal/httpmiddleware"
	"schoolhub/internal/logging"
	"schoolhub/internal/query"
	"schoolhub/internal/report"
)

// Fallback messages when the backend gives no detail.
const (
	msgLoad     = "Failed to load data."
	msgSave     = "Failed to save changes."
	msgDelete   = "Failed to delete."
	msgBulkDel  = "Failed to delete some items."
	msgUpload   = "Upload failed."
	msgSession  = "Session expired. Please sign in again."
	msgPDFError = "PDF generation failed: "
)

// HealthCheck reports whether a dependency answers.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the handlers need. Exports may be nil when no
// database is configured.
type Deps struct {
	API        *backend.Client
	Query      *query.Client
	Attendance *attendance.Service
	Renderer   *report.Renderer
	Uploader   *bulk.Uploader
	Exports    *exports.Service
	Search     *query.Registry
	Limiter    *httpmiddleware.SimpleTokenBucket
	Health     map[string]HealthCheck
	Log        *zap.Logger

	JWTIssuer     string
	JWTSigningKey string
	SessionTTL    time.Duration
	SecureCookies bool
}

// Handler serves the console API.
type Handler struct {
	Deps
}

// New wires the handler.
func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = 12 * time.Hour
	}
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(h.Log, "/healthz", "/metrics"))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.limit(), h.login)

	authed := v1.Group("", auth.Required(h.JWTSigningKey, h.JWTIssuer), h.limit())
	authed.POST("/auth/logout", h.logout)
	authed.GET("/auth/me", h.me)

	h.registerResources(authed)
	h.registerAttendance(authed)
	h.registerExports(authed)
	h.registerSearch(authed)
}

func (h *Handler) limit() gin.HandlerFunc {
	if h.Limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return h.Limiter.GinMiddleware(limitKey)
}

// limitKey charges signed-in users by name and everyone else by address.
func limitKey(c *gin.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok {
		return "user:" + claims.Username
	}
	return "ip:" + httpmiddleware.ClientIP(c)
}

func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// fail renders err at the edge. The backend's own detail wins over fallback.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	if errors.Is(err, backend.ErrUnauthorized) {
		auth.Unauthorized(c, backend.Message(err, msgSession))
		return
	}
	status := http.StatusBadGateway
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		status = apiErr.Status
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(status, gin.H{"error": backend.Message(err, fallback)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
