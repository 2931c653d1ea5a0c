package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"entrylog/internal/audit"
	"entrylog/internal/entry"
)

func validUserType(t string) bool {
	return t == entry.TypeStudent || t == entry.TypeFaculty
}

func validUserStatus(s string) bool {
	return s == "" || s == entry.UserActive || s == entry.UserInactive
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(c *gin.Context) {
	page, limit := pageParams(c)
	users, total, err := h.repo.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch users", err)
		return
	}
	if users == nil {
		users = []entry.User{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"users": users, "pagination": pagination(total, page, limit)},
	})
}

// SearchUsers handles GET /api/users/search?q=.
func (h *Handler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Search query is required"})
		return
	}
	users, err := h.repo.SearchUsers(c.Request.Context(), query, 50)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to search users", err)
		return
	}
	if users == nil {
		users = []entry.User{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"users": users}})
}

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req struct {
		IDNumber   string  `json:"idNumber" binding:"required"`
		RFIDTag    string  `json:"rfidTag" binding:"required"`
		FirstName  string  `json:"firstName" binding:"required"`
		LastName   string  `json:"lastName" binding:"required"`
		Email      *string `json:"email"`
		UserType   string  `json:"userType" binding:"required"`
		College    string  `json:"college" binding:"required"`
		Department string  `json:"department" binding:"required"`
		YearLevel  *string `json:"yearLevel"`
		Status     string  `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required fields"})
		return
	}
	if !validUserType(req.UserType) || !validUserStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid userType or status"})
		return
	}

	u := &entry.User{
		IDNumber:   req.IDNumber,
		RFIDTag:    req.RFIDTag,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		UserType:   req.UserType,
		College:    req.College,
		Department: req.Department,
		YearLevel:  req.YearLevel,
		Status:     req.Status,
	}
	if err := h.repo.CreateUser(c.Request.Context(), u); err != nil {
		fail(c, http.StatusConflict, "Failed to create user (duplicate ID number or RFID tag?)", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User created successfully", "data": u})
}

// GetUser handles GET /api/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.repo.UserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// UpdateUser handles PUT /api/users/:id.
func (h *Handler) UpdateUser(c *gin.Context) {
	var req struct {
		IDNumber   string  `json:"idNumber"`
		RFIDTag    string  `json:"rfidTag"`
		FirstName  string  `json:"firstName"`
		LastName   string  `json:"lastName"`
		Email      *string `json:"email"`
		UserType   string  `json:"userType"`
		College    string  `json:"college"`
		Department string  `json:"department"`
		YearLevel  *string `json:"yearLevel"`
		Status     string  `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	if req.UserType != "" && !validUserType(req.UserType) || !validUserStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid userType or status"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.repo.UserByID(ctx, c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	old := *user
	if req.IDNumber != "" {
		user.IDNumber = req.IDNumber
	}
	if req.RFIDTag != "" {
		user.RFIDTag = req.RFIDTag
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != nil {
		user.Email = req.Email
	}
	if req.UserType != "" {
		user.UserType = req.UserType
	}
	if req.College != "" {
		user.College = req.College
	}
	if req.Department != "" {
		user.Department = req.Department
	}
	if req.YearLevel != nil {
		user.YearLevel = req.YearLevel
	}
	if req.Status != "" {
		user.Status = req.Status
	}
	if err := h.repo.UpdateUser(ctx, user); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update user", err)
		return
	}

	change, _ := json.Marshal(gin.H{"old": old, "new": user})
	h.auditLog(c, audit.ActionEdit, "users", user.UserID, string(change))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User updated successfully", "data": user})
}

// DeleteUser handles DELETE /api/users/:id.
func (h *Handler) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.repo.UserByID(ctx, c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	if _, err := h.repo.DeleteUser(ctx, user.UserID); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete user", err)
		return
	}

	detail, _ := json.Marshal(gin.H{"deletedUser": gin.H{"idNumber": user.IDNumber, "rfidTag": user.RFIDTag}})
	h.auditLog(c, audit.ActionDelete, "users", user.UserID, string(detail))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted successfully"})
}
