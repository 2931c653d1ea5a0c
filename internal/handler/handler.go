// Package handler wires the HTTP surface: the public scan/signup flow
// and the JWT-protected administration endpoints.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"entrylog/internal/admin"
	"entrylog/internal/audit"
	"entrylog/internal/entry"
	"entrylog/internal/report"
	"entrylog/internal/signup"
)

// Config carries the request-handling knobs the handlers need.
type Config struct {
	FormBaseURL   string
	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// UserStore is the user persistence surface the public form handlers
// need. *entry.Repository satisfies it.
type UserStore interface {
	UserByTag(ctx context.Context, tag string) (*entry.User, error)
	ActiveUserByIDNumber(ctx context.Context, idNumber string) (*entry.User, error)
	LookupUser(ctx context.Context, id string) (*entry.User, error)
	UserByIDNumberOrTag(ctx context.Context, idNumber, tag string) (*entry.User, error)
	CreateUser(ctx context.Context, u *entry.User) error
	UpdateUser(ctx context.Context, u *entry.User) error
}

// Handler bundles the services behind the HTTP endpoints. The public
// form handlers read users through the UserStore interface; the
// admin-side entry endpoints use the full repository.
type Handler struct {
	scans   *entry.Service
	repo    *entry.Repository
	users   UserStore
	bridge  *signup.Bridge
	admins  *admin.Repository
	audits  *audit.Repository
	rec     *audit.Recorder
	reports *report.Repository
	cfg     Config
}

// New creates a handler.
func New(scans *entry.Service, repo *entry.Repository, bridge *signup.Bridge,
	admins *admin.Repository, audits *audit.Repository, rec *audit.Recorder,
	reports *report.Repository, cfg Config) *Handler {
	return &Handler{
		scans:   scans,
		repo:    repo,
		users:   repo,
		bridge:  bridge,
		admins:  admins,
		audits:  audits,
		rec:     rec,
		reports: reports,
		cfg:     cfg,
	}
}

// fail writes the error envelope. The underlying error detail is
// included outside release mode only.
func fail(c *gin.Context, status int, message string, err error) {
	payload := gin.H{"success": false, "message": message}
	if err != nil && gin.Mode() != gin.ReleaseMode {
		payload["error"] = err.Error()
	}
	c.JSON(status, payload)
}

// publicUser is the user shape exposed on scan responses.
func publicUser(u *entry.User) gin.H {
	return gin.H{
		"idNumber":   u.IDNumber,
		"fullName":   u.FullName(),
		"userType":   u.UserType,
		"college":    u.College,
		"department": u.Department,
	}
}
