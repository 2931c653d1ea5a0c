package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"entrylog/internal/admin"
	"entrylog/internal/audit"
	"entrylog/internal/auth"
)

func validRole(role string) bool {
	return role == "" || role == admin.RoleAdmin || role == admin.RoleSuperAdmin
}

// ListAdmins handles GET /api/admins.
func (h *Handler) ListAdmins(c *gin.Context) {
	admins, err := h.admins.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch admins", err)
		return
	}
	if admins == nil {
		admins = []admin.Admin{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"admins": admins}})
}

// CreateAdmin handles POST /api/admins.
func (h *Handler) CreateAdmin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"fullName" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required fields"})
		return
	}
	if !validRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid role"})
		return
	}
	if len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Password must be at least 8 characters"})
		return
	}
	ctx := c.Request.Context()

	hash, err := admin.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to create admin", err)
		return
	}
	acct := &admin.Admin{
		Username:     req.Username,
		PasswordHash: hash,
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         req.Role,
	}
	if err := h.admins.Create(ctx, acct); err != nil {
		fail(c, http.StatusConflict, "Failed to create admin (username taken?)", err)
		return
	}

	h.auditLog(c, audit.ActionEdit, "admins", acct.AdminID, "Admin account created: "+acct.Username)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Admin created successfully", "data": acct})
}

// GetAdmin handles GET /api/admins/:id.
func (h *Handler) GetAdmin(c *gin.Context) {
	acct, err := h.admins.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch admin", err)
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": acct})
}

// UpdateAdmin handles PUT /api/admins/:id.
func (h *Handler) UpdateAdmin(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	if !validRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid role"})
		return
	}
	ctx := c.Request.Context()

	acct, err := h.admins.ByID(ctx, c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update admin", err)
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
		return
	}

	old := gin.H{"username": acct.Username, "fullName": acct.FullName, "email": acct.Email, "role": acct.Role}
	if req.Username != "" {
		acct.Username = req.Username
	}
	if req.FullName != "" {
		acct.FullName = req.FullName
	}
	if req.Email != "" {
		acct.Email = req.Email
	}
	if req.Role != "" {
		acct.Role = req.Role
	}
	if req.Password != "" {
		if len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Password must be at least 8 characters"})
			return
		}
		hash, err := admin.HashPassword(req.Password)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Failed to update admin", err)
			return
		}
		acct.PasswordHash = hash
	}

	if err := h.admins.Update(ctx, acct); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update admin", err)
		return
	}

	change, _ := json.Marshal(gin.H{
		"old": old,
		"new": gin.H{"username": acct.Username, "fullName": acct.FullName, "email": acct.Email, "role": acct.Role, "passwordChanged": req.Password != ""},
	})
	h.auditLog(c, audit.ActionEdit, "admins", acct.AdminID, string(change))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Admin updated successfully", "data": acct})
}

// DeleteAdmin handles DELETE /api/admins/:id. Admins cannot delete
// their own account or the last remaining one.
func (h *Handler) DeleteAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	claims, _ := auth.FromContext(c)
	id := c.Param("id")

	if claims.AdminID == id {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot delete your own account"})
		return
	}

	acct, err := h.admins.ByID(ctx, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete admin", err)
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
		return
	}

	total, err := h.admins.Count(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete admin", err)
		return
	}
	if total <= 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot delete the last admin account"})
		return
	}

	if _, err := h.admins.Delete(ctx, id); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete admin", err)
		return
	}

	h.auditLog(c, audit.ActionDelete, "admins", id, "Admin account deleted: "+acct.Username)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Admin deleted successfully"})
}
