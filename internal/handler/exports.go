package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"schoolhub/internal/auth"
	"schoolhub/internal/exports"
	"schoolhub/internal/report"
)

func (h *Handler) registerExports(g *gin.RouterGroup) {
	eg := g.Group("/exports", h.exportsEnabled)
	eg.POST("", h.requestExport)
	eg.GET("", h.listExports)
	eg.GET("/:id", h.getExport)
	eg.GET("/:id/download", h.downloadExport)
}

func (h *Handler) exportsEnabled(c *gin.Context) {
	if h.Exports == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "exports are not configured"})
		return
	}
	c.Next()
}

func requester(c *gin.Context) string {
	claims, _ := auth.ClaimsFrom(c)
	return claims.Username
}

func (h *Handler) requestExport(c *gin.Context) {
	var req exports.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "kind is required")
		return
	}
	if _, err := report.ParseKind(string(req.Kind)); err != nil {
		badRequest(c, err.Error())
		return
	}
	e, err := h.Exports.Request(c.Request.Context(), req, requester(c))
	if err != nil {
		h.fail(c, err, "Could not start the export.")
		return
	}
	c.JSON(http.StatusAccepted, e)
}

func (h *Handler) listExports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	list, err := h.Exports.List(c.Request.Context(), exports.ListFilter{
		RequestedBy: requester(c),
		Status:      exports.Status(c.Query("status")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": list})
}

// ownExport loads the export and hides other users' exports.
func (h *Handler) ownExport(c *gin.Context) (exports.Export, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "export not found"})
		return exports.Export{}, false
	}
	e, err := h.Exports.Get(c.Request.Context(), id)
	if err == nil && e.RequestedBy != requester(c) {
		err = exports.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, exports.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "export not found"})
			return exports.Export{}, false
		}
		h.fail(c, err, msgLoad)
		return exports.Export{}, false
	}
	return e, true
}

func (h *Handler) getExport(c *gin.Context) {
	if e, ok := h.ownExport(c); ok {
		c.JSON(http.StatusOK, e)
	}
}

func (h *Handler) downloadExport(c *gin.Context) {
	e, ok := h.ownExport(c)
	if !ok {
		return
	}
	if e.Status != exports.StatusDone {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "export is " + string(e.Status), "status": e.Status})
		return
	}
	out, err := h.Exports.Download(c.Request.Context(), e.ID)
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	writePDF(c, out, report.ParseDisposition(c.Query("disposition")))
}
