package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"entrylog/internal/admin"
	"entrylog/internal/audit"
	"entrylog/internal/auth"
)

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		return
	}
	ctx := c.Request.Context()

	acct, err := h.admins.ByUsername(ctx, req.Username)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Login failed", err)
		return
	}
	if acct == nil || !admin.CheckPassword(acct.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}

	if err := h.admins.TouchLastLogin(ctx, acct.AdminID); err != nil {
		fail(c, http.StatusInternalServerError, "Login failed", err)
		return
	}

	tokens, err := auth.Issue(acct.AdminID, acct.Username, acct.Role,
		h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Login failed", err)
		return
	}

	h.rec.Log(ctx, audit.Record{
		AdminID:     acct.AdminID,
		ActionType:  audit.ActionLogin,
		Description: "Admin logged in",
		IPAddress:   c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data": gin.H{
			"admin":        acct,
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresAt":    tokens.AccessExp.Unix(),
		},
	})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.auditLog(c, audit.ActionLogout, "", "", "Admin logged out")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout successful"})
}

// Profile handles GET /api/auth/profile.
func (h *Handler) Profile(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	acct, err := h.admins.ByID(c.Request.Context(), claims.AdminID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch profile", err)
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": acct})
}

// UpdateProfile handles PUT /api/auth/profile. A password change
// requires the current password.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		FullName        string `json:"fullName"`
		Email           string `json:"email"`
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	ctx := c.Request.Context()
	claims, _ := auth.FromContext(c)

	acct, err := h.admins.ByID(ctx, claims.AdminID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update profile", err)
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
		return
	}

	if req.FullName != "" {
		acct.FullName = req.FullName
	}
	if req.Email != "" {
		acct.Email = req.Email
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Current password is required to change password"})
			return
		}
		if !admin.CheckPassword(acct.PasswordHash, req.CurrentPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Current password is incorrect"})
			return
		}
		hash, err := admin.HashPassword(req.NewPassword)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Failed to update profile", err)
			return
		}
		acct.PasswordHash = hash
	}

	if err := h.admins.Update(ctx, acct); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update profile", err)
		return
	}

	h.auditLog(c, audit.ActionEdit, "admins", acct.AdminID, "Profile updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated successfully", "data": acct})
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Refresh token is required"})
		return
	}
	ctx := c.Request.Context()

	claims, err := auth.Parse(req.RefreshToken, h.cfg.JWTSigningKey, h.cfg.JWTIssuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired refresh token"})
		return
	}

	acct, err := h.admins.ByID(ctx, claims.AdminID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to refresh token", err)
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
		return
	}

	tokens, err := auth.Issue(acct.AdminID, acct.Username, acct.Role,
		h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to refresh token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Token refreshed successfully",
		"data": gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresAt":    tokens.AccessExp.Unix(),
		},
	})
}
