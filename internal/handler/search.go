package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolhub/internal/backend"
	"schoolhub/internal/query"
)

func (h *Handler) registerSearch(g *gin.RouterGroup) {
	g.GET("/search/:session/stream", h.searchStream)
	g.POST("/search/:session", h.searchInput)
}

func searchID(c *gin.Context) string {
	return requester(c) + ":" + c.Param("session")
}

// searchStream opens a live search over one collection and streams settled
// answers as server-sent events until the client goes away or the session
// is reopened.
func (h *Handler) searchStream(c *gin.Context) {
	r, ok := backend.ByName(c.Query("resource"))
	if !ok {
		badRequest(c, "unknown resource")
		return
	}
	base := listParams(c)
	delete(base.Filters, "resource")

	s := h.Search.Open(c.Request.Context(), searchID(c), func(ctx context.Context, term string) (any, error) {
		p := base
		p.Search = term
		p.Page = 1
		return query.Fetch(ctx, h.Query, listKey(r, p), func(ctx context.Context) (backend.Page[json.RawMessage], error) {
			return backend.List[json.RawMessage](ctx, h.API, r, p)
		})
	})
	defer h.Search.Close(s)
	if term, ok := c.GetQuery("search"); ok {
		s.Input(term)
	}

	// The stream lives past the server's write timeout. Recorders in tests
	// do not support deadlines.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"session": c.Param("session")})
	c.Writer.Flush()
	for {
		select {
		case res := <-s.Results():
			c.SSEvent("result", res)
			c.Writer.Flush()
		case <-s.Done():
			return
		}
	}
}

func (h *Handler) searchInput(c *gin.Context) {
	var req struct {
		Term string `json:"term"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "term is required")
		return
	}
	s, ok := h.Search.Get(searchID(c))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "search session is not open"})
		return
	}
	s.Input(req.Term)
	c.Status(http.StatusAccepted)
}
