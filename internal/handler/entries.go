package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"entrylog/internal/audit"
	"entrylog/internal/auth"
	"entrylog/internal/entry"
)

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	return page, limit
}

func pagination(total, page, limit int) gin.H {
	totalPages := (total + limit - 1) / limit
	return gin.H{"total": total, "page": page, "limit": limit, "totalPages": totalPages}
}

// auditLog emits an audit record for the authenticated admin.
func (h *Handler) auditLog(c *gin.Context, action, table, targetID, description string) {
	claims, ok := auth.FromContext(c)
	if !ok {
		return
	}
	h.rec.Log(c.Request.Context(), audit.Record{
		AdminID:     claims.AdminID,
		ActionType:  action,
		TargetTable: table,
		TargetID:    targetID,
		Description: description,
		IPAddress:   c.ClientIP(),
	})
}

// ListEntries handles GET /api/entries.
func (h *Handler) ListEntries(c *gin.Context) {
	page, limit := pageParams(c)
	entries, total, err := h.repo.ListEntries(c.Request.Context(), page, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch entries", err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"entries": entries, "pagination": pagination(total, page, limit)},
	})
}

// GetEntry handles GET /api/entries/:id.
func (h *Handler) GetEntry(c *gin.Context) {
	e, err := h.repo.EntryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch entry", err)
		return
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Entry not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": e})
}

// UpdateEntry handles PUT /api/entries/:id.
func (h *Handler) UpdateEntry(c *gin.Context) {
	var req struct {
		EntryTimestamp *time.Time `json:"entryTimestamp"`
		EntryMethod    string     `json:"entryMethod"`
		Status         string     `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	ctx := c.Request.Context()
	logID := c.Param("id")

	old, err := h.repo.EntryByID(ctx, logID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update entry", err)
		return
	}
	if old == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Entry not found"})
		return
	}

	updated, err := h.repo.UpdateEntry(ctx, logID, req.EntryTimestamp, req.EntryMethod, req.Status)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update entry", err)
		return
	}

	change, _ := json.Marshal(gin.H{
		"old": gin.H{"entryTimestamp": old.EntryTimestamp, "entryMethod": old.EntryMethod, "status": old.Status},
		"new": gin.H{"entryTimestamp": updated.EntryTimestamp, "entryMethod": updated.EntryMethod, "status": updated.Status},
	})
	h.auditLog(c, audit.ActionEdit, "entry_logs", logID, string(change))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Entry updated successfully", "data": updated})
}

// DeleteEntry handles DELETE /api/entries/:id.
func (h *Handler) DeleteEntry(c *gin.Context) {
	ctx := c.Request.Context()
	logID := c.Param("id")

	old, err := h.repo.EntryByID(ctx, logID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete entry", err)
		return
	}
	if old == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Entry not found"})
		return
	}
	if _, err := h.repo.DeleteEntry(ctx, logID); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete entry", err)
		return
	}

	detail, _ := json.Marshal(gin.H{"deletedEntry": gin.H{
		"userId":         old.UserID,
		"entryTimestamp": old.EntryTimestamp,
		"entryMethod":    old.EntryMethod,
	}})
	h.auditLog(c, audit.ActionDelete, "entry_logs", logID, string(detail))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Entry deleted successfully"})
}

// ActiveEntries handles GET /api/entries/active: today's successful
// entries plus live stats.
func (h *Handler) ActiveEntries(c *gin.Context) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	entries, err := h.repo.SuccessEntriesSince(c.Request.Context(), startOfDay, 100)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch active entries", err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}

	hourAgo := now.Add(-time.Hour)
	stats := gin.H{"totalToday": len(entries)}
	students, faculty, lastHour := 0, 0, 0
	for _, e := range entries {
		if e.User != nil && e.User.UserType == entry.TypeStudent {
			students++
		}
		if e.User != nil && e.User.UserType == entry.TypeFaculty {
			faculty++
		}
		if e.EntryTimestamp.After(hourAgo) {
			lastHour++
		}
	}
	stats["students"], stats["faculty"], stats["lastHour"] = students, faculty, lastHour

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"entries": entries, "stats": stats}})
}

// FilterEntries handles POST /api/entries/filter.
func (h *Handler) FilterEntries(c *gin.Context) {
	var req struct {
		College     string `json:"college"`
		Department  string `json:"department"`
		UserType    string `json:"userType"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
		SearchQuery string `json:"searchQuery"`
		Page        int    `json:"page"`
		Limit       int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	f := entry.Filter{
		College:    req.College,
		Department: req.Department,
		UserType:   req.UserType,
		Search:     req.SearchQuery,
		Page:       req.Page,
		Limit:      req.Limit,
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid startDate"})
			return
		}
		f.Start = &start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid endDate"})
			return
		}
		endOfDay := end.Add(24*time.Hour - time.Millisecond)
		f.End = &endOfDay
	}

	entries, total, err := h.repo.FilterEntries(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to filter entries", err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}
	page, limit := f.Page, f.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"entries": entries, "pagination": pagination(total, page, limit)},
	})
}
