package handler

import (
	"context"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"entrylog/internal/entry"
	"entrylog/internal/signup"
)

// issueToken mints or reuses a signup token for a tag. Token failures
// degrade to nulls in the response; they never abort the scan.
func (h *Handler) issueToken(ctx context.Context, tag string) (any, any) {
	token, err := h.bridge.IssueOrReuse(ctx, tag)
	if err != nil {
		log.Printf("signup token issue failed for tag %s: %v", tag, err)
		return nil, nil
	}
	return token, signup.FormURL(h.cfg.FormBaseURL, token)
}

// Scan handles POST /api/entries/scan.
func (h *Handler) Scan(c *gin.Context) {
	var req struct {
		RFIDTag string `json:"rfidTag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RFIDTag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "RFID tag is required"})
		return
	}
	ctx := c.Request.Context()
	log.Printf("rfid scan request for tag %s", req.RFIDTag)

	res, err := h.scans.Scan(ctx, req.RFIDTag)
	if err != nil {
		log.Printf("scan failed for tag %s: %v", req.RFIDTag, err)
		fail(c, http.StatusInternalServerError, "Failed to process scan", err)
		return
	}
	scanOutcomes.WithLabelValues(string(res.Outcome)).Inc()

	switch res.Outcome {
	case entry.OutcomeNotFound:
		token, formURL := h.issueToken(ctx, req.RFIDTag)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "RFID not registered. Complete signup via form.",
			"status":  "signup",
			"token":   token,
			"formUrl": formURL,
			"data":    gin.H{"rfidTag": req.RFIDTag},
		})

	case entry.OutcomeInactive:
		log.Printf("inactive user attempted rfid scan: %s", req.RFIDTag)
		// Deliberately the same message as unknown-tag errors so callers
		// cannot probe account status.
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found or inactive"})

	case entry.OutcomeDuplicate:
		log.Printf("duplicate entry for user %s with tag %s", res.User.IDNumber, req.RFIDTag)
		token, formURL := h.issueToken(ctx, res.User.RFIDTag)
		// waitTime is seconds elapsed since the last success, the shape
		// the kiosk frontend expects.
		waitTime := int(math.Ceil(time.Since(res.LastEntry).Seconds()))
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "Duplicate entry detected",
			"status":  "duplicate",
			"data": gin.H{
				"user":      publicUser(res.User),
				"lastEntry": res.LastEntry,
				"waitTime":  waitTime,
				"token":     token,
				"formUrl":   formURL,
			},
		})

	default: // fresh
		log.Printf("entry recorded for user %s with tag %s", res.User.IDNumber, req.RFIDTag)
		token, formURL := h.issueToken(ctx, res.User.RFIDTag)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Entry recorded successfully",
			"data": gin.H{
				"entry": gin.H{
					"logId":          res.Entry.LogID,
					"entryTimestamp": res.Entry.EntryTimestamp,
					"entryMethod":    res.Entry.EntryMethod,
					"status":         res.Entry.Status,
				},
				"user":    publicUser(res.User),
				"token":   token,
				"formUrl": formURL,
			},
		})
	}
}

// ManualEntry handles POST /api/entries/manual.
func (h *Handler) ManualEntry(c *gin.Context) {
	var req struct {
		IDNumber string `json:"idNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IDNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ID number is required"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.users.ActiveUserByIDNumber(ctx, req.IDNumber)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to process manual entry", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found or inactive"})
		return
	}

	e, err := h.scans.Record(ctx, user.UserID, entry.MethodManual, entry.StatusSuccess)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to process manual entry", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Manual entry recorded successfully",
		"data": gin.H{
			"entry": e,
			"user":  publicUser(user),
		},
	})
}

// UserByToken handles GET /api/entries/form?token= for the signup form.
func (h *Handler) UserByToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Token is required"})
		return
	}
	ctx := c.Request.Context()

	tag, err := h.bridge.Resolve(ctx, token)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch user by token", err)
		return
	}
	if tag == "" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Token not found or expired"})
		return
	}

	user, err := h.users.UserByTag(ctx, tag)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch user by token", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "No user found for this RFID. Proceed to signup.",
			"data":    gin.H{"rfidTag": tag},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// UpsertUser handles POST /api/users/upsert: create or update a user
// from the signup/edit form. When a token is supplied the tag comes
// from the token mapping and the token is consumed afterwards.
func (h *Handler) UpsertUser(c *gin.Context) {
	var req struct {
		Token      string  `json:"token"`
		RFIDTag    string  `json:"rfidTag"`
		IDNumber   string  `json:"idNumber"`
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
	ctx := c.Request.Context()

	tag := req.RFIDTag
	if req.Token != "" {
		mapped, err := h.bridge.Resolve(ctx, req.Token)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Failed to upsert user", err)
			return
		}
		if mapped == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}
		if tag != "" && tag != mapped {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Provided RFID does not match token"})
			return
		}
		tag = mapped
	}
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "RFID tag is required via token"})
		return
	}

	existing, err := h.users.UserByIDNumberOrTag(ctx, req.IDNumber, tag)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to upsert user", err)
		return
	}

	var user *entry.User
	if existing != nil {
		if req.IDNumber != "" {
			existing.IDNumber = req.IDNumber
		}
		existing.RFIDTag = tag
		if req.FirstName != "" {
			existing.FirstName = req.FirstName
		}
		if req.LastName != "" {
			existing.LastName = req.LastName
		}
		if req.Email != nil {
			existing.Email = req.Email
		}
		if req.UserType != "" {
			existing.UserType = req.UserType
		}
		if req.College != "" {
			existing.College = req.College
		}
		if req.Department != "" {
			existing.Department = req.Department
		}
		if req.YearLevel != nil {
			existing.YearLevel = req.YearLevel
		}
		if req.Status != "" {
			existing.Status = req.Status
		}
		if err := h.users.UpdateUser(ctx, existing); err != nil {
			fail(c, http.StatusInternalServerError, "Failed to upsert user", err)
			return
		}
		user = existing
	} else {
		if req.IDNumber == "" || req.FirstName == "" || req.LastName == "" ||
			req.UserType == "" || req.College == "" || req.Department == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required fields for user creation"})
			return
		}
		user = &entry.User{
			IDNumber:   req.IDNumber,
			RFIDTag:    tag,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			UserType:   req.UserType,
			College:    req.College,
			Department: req.Department,
			YearLevel:  req.YearLevel,
			Status:     req.Status,
		}
		if err := h.users.CreateUser(ctx, user); err != nil {
			fail(c, http.StatusInternalServerError, "Failed to upsert user", err)
			return
		}
	}

	if req.Token != "" {
		if err := h.bridge.Consume(ctx, req.Token, tag); err != nil {
			log.Printf("signup token consume failed: %v", err)
		}
	}

	// Record the signup/edit visit as a success entry; best-effort.
	if _, err := h.scans.Record(ctx, user.UserID, entry.MethodRFID, entry.StatusSuccess); err != nil {
		log.Printf("entry log insert after upsert failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User upserted successfully",
		"data": gin.H{
			"idNumber": user.IDNumber,
			"rfidTag":  user.RFIDTag,
			"fullName": user.FullName(),
			"userId":   user.UserID,
		},
	})
}

// LookupUser handles GET /api/users/lookup/:id, the public lookup by
// ID number or RFID tag.
func (h *Handler) LookupUser(c *gin.Context) {
	user, err := h.users.LookupUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch user info", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"idNumber":   user.IDNumber,
			"fullName":   user.FullName(),
			"email":      user.Email,
			"userType":   user.UserType,
			"college":    user.College,
			"department": user.Department,
			"yearLevel":  user.YearLevel,
			"status":     user.Status,
		},
	})
}
