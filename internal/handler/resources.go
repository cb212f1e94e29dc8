package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolhub/internal/backend"
	"schoolhub/internal/bulk"
	"schoolhub/internal/query"
)

// crudResources are exposed through the generic collection routes.
var crudResources = []backend.Resource{
	backend.Students,
	backend.Parents,
	backend.Branches,
	backend.Users,
	backend.Devices,
	backend.Records,
	backend.SMSLogs,
}

// listKeys are the query parameters with a fixed meaning; every other
// parameter is forwarded as a field filter.
var listKeys = map[string]bool{"page": true, "page_size": true, "search": true, "ordering": true}

func (h *Handler) registerResources(g *gin.RouterGroup) {
	for _, r := range crudResources {
		rg := g.Group("/" + r.Name)
		rg.GET("", h.list(r))
		rg.POST("", h.create(r))
		rg.GET("/:id", h.get(r))
		rg.PATCH("/:id", h.update(r))
		rg.DELETE("/:id", h.remove(r))
		rg.POST("/bulk-delete", h.bulkDelete(r))
		if _, ok := bulk.RequiredColumns[r.Name]; ok {
			rg.POST("/bulk-upload", h.bulkUpload(r))
		}
	}

	g.GET("/students/:id/attendance", h.studentAttendance)
	g.GET("/classes", h.classes)
	g.GET("/sms-logs/statistics", h.smsStatistics)

	g.POST("/devices/:id/sync-attendance", h.deviceAction(h.API.SyncDeviceAttendance, "devices", "attendance"))
	g.POST("/devices/:id/sync-students", h.deviceAction(h.API.SyncDeviceStudents, "devices"))
	g.GET("/devices/:id/test-connection", h.deviceAction(h.API.TestDeviceConnection))

	g.GET("/settings", h.settings)
	g.PATCH("/settings", h.updateSettings)
}

func listParams(c *gin.Context) backend.ListParams {
	p := backend.ListParams{
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Filters:  map[string]string{},
	}
	p.Page, _ = strconv.Atoi(c.Query("page"))
	p.PageSize, _ = strconv.Atoi(c.Query("page_size"))
	for k, v := range c.Request.URL.Query() {
		if !listKeys[k] && len(v) > 0 {
			p.Filters[k] = v[0]
		}
	}
	return p
}

// listKey is the cache key for a list query; filter order does not matter.
func listKey(r backend.Resource, p backend.ListParams) query.Key {
	key := query.Key{
		r.Name, "list",
		"page=" + strconv.Itoa(p.Page),
		"size=" + strconv.Itoa(p.PageSize),
		"search=" + p.Search,
		"ordering=" + p.Ordering,
	}
	names := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		key = append(key, k+"="+p.Filters[k])
	}
	return key
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) list(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if r == backend.Parents && c.Query("all") == "true" {
			all, err := query.Fetch(ctx, h.Query, query.Key{r.Name, "all"}, h.API.AllParents)
			if err != nil {
				h.fail(c, err, msgLoad)
				return
			}
			c.JSON(http.StatusOK, all)
			return
		}
		p := listParams(c)
		delete(p.Filters, "all")
		page, err := query.Fetch(ctx, h.Query, listKey(r, p), func(ctx context.Context) (backend.Page[json.RawMessage], error) {
			return backend.List[json.RawMessage](ctx, h.API, r, p)
		})
		if err != nil {
			h.fail(c, err, msgLoad)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func (h *Handler) get(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		key := query.Key{r.Name, "item", strconv.Itoa(id)}
		item, err := query.Fetch(c.Request.Context(), h.Query, key, func(ctx context.Context) (json.RawMessage, error) {
			return backend.Get[json.RawMessage](ctx, h.API, r, id)
		})
		if err != nil {
			h.fail(c, err, msgLoad)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", item)
	}
}

func bindPayload(c *gin.Context) (json.RawMessage, bool) {
	var payload json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload) == 0 || payload[0] != '{' {
		badRequest(c, "request body must be a JSON object")
		return nil, false
	}
	return payload, true
}

// invalidate drops cached queries of the mutated resource and of the
// dashboard and report views built from it.
func (h *Handler) invalidate(c *gin.Context, resources ...string) {
	h.Query.Invalidate(c.Request.Context(), resources...)
}

func (h *Handler) create(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := bindPayload(c)
		if !ok {
			return
		}
		created, err := backend.Create[json.RawMessage](c.Request.Context(), h.API, r, payload)
		if err != nil {
			h.fail(c, err, msgSave)
			return
		}
		h.invalidate(c, dependents(r)...)
		c.Data(http.StatusCreated, "application/json; charset=utf-8", created)
	}
}

func (h *Handler) update(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		payload, ok := bindPayload(c)
		if !ok {
			return
		}
		updated, err := backend.Update[json.RawMessage](c.Request.Context(), h.API, r, id, payload)
		if err != nil {
			h.fail(c, err, msgSave)
			return
		}
		h.invalidate(c, dependents(r)...)
		c.Data(http.StatusOK, "application/json; charset=utf-8", updated)
	}
}

func (h *Handler) remove(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		err := h.API.Delete(c.Request.Context(), r, id)
		h.invalidate(c, dependents(r)...)
		if err != nil {
			h.fail(c, err, msgDelete)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// dependents lists the cache prefixes a change to r makes stale.
func dependents(r backend.Resource) []string {
	switch r {
	case backend.Students, backend.Records:
		return []string{r.Name, backend.Records.Name, backend.Students.Name}
	case backend.Branches:
		return []string{r.Name, backend.Students.Name, backend.Devices.Name}
	default:
		return []string{r.Name}
	}
}

func (h *Handler) bulkDelete(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			IDs []int `json:"ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
			badRequest(c, "ids are required")
			return
		}
		err := bulk.Delete(c.Request.Context(), req.IDs, func(ctx context.Context, id int) error {
			return h.API.Delete(ctx, r, id)
		})
		h.invalidate(c, dependents(r)...)
		if err != nil {
			var de *bulk.DeleteError
			if errors.As(err, &de) {
				h.Log.Warn("bulk delete incomplete", zap.String("resource", r.Name), zap.Int("failed", de.Failed), zap.Int("total", de.Total), zap.Error(errors.Unwrap(err)))
			}
			if errors.Is(err, backend.ErrUnauthorized) {
				h.fail(c, err, msgBulkDel)
				return
			}
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": msgBulkDel})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": len(req.IDs)})
	}
}

func (h *Handler) bulkUpload(r backend.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "No file provided")
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "could not read upload")
			return
		}
		defer f.Close()

		res, err := h.Uploader.Upload(c.Request.Context(), r, fh.Filename, f)
		if err != nil {
			var missing *bulk.MissingColumnsError
			switch {
			case errors.As(err, &missing):
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "found_columns": missing.Found})
			case errors.Is(err, bulk.ErrUnsupportedFile), errors.Is(err, bulk.ErrEmptySheet), errors.Is(err, bulk.ErrTooLarge):
				badRequest(c, err.Error())
			case errors.Is(err, bulk.ErrUnreadableFile):
				h.Log.Info("unreadable upload", zap.String("resource", r.Name), zap.String("file", fh.Filename), zap.Error(err))
				badRequest(c, bulk.ErrUnreadableFile.Error())
			default:
				h.fail(c, err, msgUpload)
			}
			return
		}
		h.invalidate(c, dependents(r)...)
		if r == backend.Parents {
			h.invalidate(c, backend.Students.Name)
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *Handler) studentAttendance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	key := query.Key{backend.Records.Name, "student", strconv.Itoa(id)}
	recs, err := query.Fetch(c.Request.Context(), h.Query, key, func(ctx context.Context) ([]backend.AttendanceRecord, error) {
		return h.API.StudentAttendance(ctx, id)
	})
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) classes(c *gin.Context) {
	filters := map[string]string{"branch": c.Query("branch"), "grade": c.Query("grade"), "level": c.Query("level")}
	key := query.Key{backend.Students.Name, "classes", "branch=" + filters["branch"], "grade=" + filters["grade"], "level=" + filters["level"]}
	classes, err := query.Fetch(c.Request.Context(), h.Query, key, func(ctx context.Context) ([]string, error) {
		return h.API.StudentClasses(ctx, filters)
	})
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (h *Handler) smsStatistics(c *gin.Context) {
	filters := map[string]string{"date_from": c.Query("date_from"), "date_to": c.Query("date_to")}
	key := query.Key{backend.SMSLogs.Name, "statistics", "from=" + filters["date_from"], "to=" + filters["date_to"]}
	stats, err := query.Fetch(c.Request.Context(), h.Query, key, func(ctx context.Context) (backend.SMSStatistics, error) {
		return h.API.SMSStatistics(ctx, filters)
	})
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type deviceCall func(ctx context.Context, id int) (backend.DeviceResult, error)

// deviceAction runs a device command and drops the caches it changes.
func (h *Handler) deviceAction(call deviceCall, stale ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		res, err := call(c.Request.Context(), id)
		if len(stale) > 0 {
			h.invalidate(c, stale...)
		}
		if err != nil {
			h.fail(c, err, "Device operation failed.")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *Handler) settings(c *gin.Context) {
	s, err := query.Fetch(c.Request.Context(), h.Query, query.Key{backend.Settings.Name}, h.API.AttendanceSettings)
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) updateSettings(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		badRequest(c, "request body must be a JSON object")
		return
	}
	s, err := h.API.UpdateAttendanceSettings(c.Request.Context(), patch)
	if err != nil {
		h.fail(c, err, msgSave)
		return
	}
	h.invalidate(c, backend.Settings.Name)
	c.JSON(http.StatusOK, s)
}
