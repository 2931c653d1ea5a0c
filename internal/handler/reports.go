package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"entrylog/internal/entry"
)

// DailyReport handles GET /api/reports/daily. Alongside the stats it
// returns up to 100 of today's entries for display.
func (h *Handler) DailyReport(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	rep, err := h.reports.Daily(ctx, now)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate daily report", err)
		return
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	entries, err := h.repo.SuccessEntriesSince(ctx, startOfDay, 100)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate daily report", err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"reportType": rep.ReportType,
			"date":       rep.StartDate,
			"stats":      rep.Stats,
			"entries":    entries,
		},
	})
}

// WeeklyReport handles GET /api/reports/weekly.
func (h *Handler) WeeklyReport(c *gin.Context) {
	rep, err := h.reports.Weekly(c.Request.Context(), time.Now())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate weekly report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rep})
}

// MonthlyReport handles GET /api/reports/monthly.
func (h *Handler) MonthlyReport(c *gin.Context) {
	rep, err := h.reports.Monthly(c.Request.Context(), time.Now())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate monthly report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rep})
}

// CustomReport handles GET /api/reports/custom?startDate=&endDate=.
func (h *Handler) CustomReport(c *gin.Context) {
	startStr, endStr := c.Query("startDate"), c.Query("endDate")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "startDate and endDate are required"})
		return
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid startDate"})
		return
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid endDate"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "endDate must not precede startDate"})
		return
	}
	end = end.Add(24*time.Hour - time.Millisecond)

	rep, err := h.reports.Custom(c.Request.Context(), start, end)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate custom report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rep})
}
