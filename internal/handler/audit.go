package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"entrylog/internal/audit"
)

// ListAuditLogs handles GET /api/audit-logs.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	page, limit := pageParams(c)
	f := audit.Filter{
		AdminID:    c.Query("adminId"),
		ActionType: c.Query("actionType"),
		Page:       page,
		Limit:      limit,
	}
	if v := c.Query("startDate"); v != "" {
		start, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid startDate"})
			return
		}
		f.Start = &start
	}
	if v := c.Query("endDate"); v != "" {
		end, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid endDate"})
			return
		}
		endOfDay := end.Add(24*time.Hour - time.Millisecond)
		f.End = &endOfDay
	}

	records, total, err := h.audits.List(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch audit logs", err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"auditLogs": records, "pagination": pagination(total, page, limit)},
	})
}

// GetAuditLog handles GET /api/audit-logs/:id.
func (h *Handler) GetAuditLog(c *gin.Context) {
	rec, err := h.audits.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch audit log", err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Audit log not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// AuditLogsByAdmin handles GET /api/audit-logs/admin/:adminId.
func (h *Handler) AuditLogsByAdmin(c *gin.Context) {
	page, limit := pageParams(c)
	records, total, err := h.audits.List(c.Request.Context(), audit.Filter{
		AdminID: c.Param("adminId"),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch audit logs", err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"auditLogs": records, "pagination": pagination(total, page, limit)},
	})
}

// AuditStats handles GET /api/audit-logs/stats.
func (h *Handler) AuditStats(c *gin.Context) {
	stats, err := h.audits.Summarize(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch audit stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
