package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolhub/internal/attendance"
	"schoolhub/internal/report"
)

func (h *Handler) registerAttendance(g *gin.RouterGroup) {
	g.GET("/dashboard", h.dashboard)
	g.GET("/reports/attendance", h.attendanceReport)
	g.GET("/reports/attendance.pdf", h.attendanceReportPDF)
	g.GET("/reports/records.pdf", h.recordsPDF)
}

func (h *Handler) dashboard(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("week_offset", "0"))
	if err != nil {
		badRequest(c, "week_offset must be a number")
		return
	}
	d, err := h.Attendance.Dashboard(c.Request.Context(), attendance.DashboardParams{
		BranchID:   c.Query("branch"),
		WeekOffset: offset,
	})
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, d)
}

func reportFilter(c *gin.Context) attendance.ReportFilter {
	return attendance.ReportFilter{
		BranchID:  c.Query("branch_id"),
		Grade:     c.Query("grade"),
		Level:     c.Query("level"),
		ClassName: c.Query("class"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
	}
}

func recordFilter(c *gin.Context) attendance.RecordFilter {
	return attendance.RecordFilter{
		BranchID:  c.Query("branch"),
		Grade:     c.Query("grade"),
		Level:     c.Query("level"),
		ClassName: c.Query("class"),
		Status:    c.Query("status"),
		Type:      c.Query("attendance_type"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Search:    c.Query("search"),
		Ordering:  c.Query("ordering"),
	}
}

func (h *Handler) attendanceReport(c *gin.Context) {
	rep, err := h.Attendance.Report(c.Request.Context(), reportFilter(c))
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) attendanceReportPDF(c *gin.Context) {
	doc, err := h.Attendance.ReportDocument(c.Request.Context(), reportFilter(c), report.ParseLanguage(c.Query("lang")))
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	h.sendPDF(c, doc)
}

func (h *Handler) recordsPDF(c *gin.Context) {
	doc, err := h.Attendance.RecordsDocument(c.Request.Context(), recordFilter(c), report.ParseLanguage(c.Query("lang")))
	if err != nil {
		h.fail(c, err, msgLoad)
		return
	}
	h.sendPDF(c, doc)
}

// sendPDF renders doc and delivers it inline for preview or as a download.
func (h *Handler) sendPDF(c *gin.Context, doc report.Document) {
	out, err := h.Renderer.Render(doc)
	if err != nil {
		_ = c.Error(err)
		msg := err.Error()
		if errors.Is(err, report.ErrFontUnavailable) {
			msg = "Arabic font is not available"
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgPDFError + msg})
		return
	}
	writePDF(c, out, report.ParseDisposition(c.Query("disposition")))
}

func writePDF(c *gin.Context, out report.Output, d report.Disposition) {
	c.Header("Content-Disposition", d.ContentDisposition(out.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", out.Bytes)
}
