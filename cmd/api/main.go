package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entrylog/internal/admin"
	"entrylog/internal/audit"
	"entrylog/internal/auth"
	"entrylog/internal/config"
	"entrylog/internal/entry"
	"entrylog/internal/handler"
	"entrylog/internal/httpmiddleware"
	"entrylog/internal/queue"
	"entrylog/internal/report"
	"entrylog/internal/signup"
	"entrylog/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		return err
	}
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "entrylog:audit")
	}

	entryRepo := entry.NewRepository(db.Client)
	scans := entry.NewService(entryRepo, cfg.DuplicateWindow)
	bridge := signup.NewBridge(redisClient, cfg.SignupTokenTTL)
	adminRepo := admin.NewRepository(db.Client)
	auditRepo := audit.NewRepository(db.Client)
	recorder := audit.NewRecorder(q)
	reportRepo := report.NewRepository(db.Client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain audit records in-process; cmd/worker can take over when the
	// queue backend is redis.
	go func() {
		if err := audit.Consume(ctx, q, auditRepo); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	h := handler.New(scans, entryRepo, bridge, adminRepo, auditRepo, recorder, reportRepo, handler.Config{
		FormBaseURL:   cfg.FormBaseURL,
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		// EnsureReady also bootstraps the schema when the database was
		// unreachable at startup.
		dbHealthy := db.EnsureReady(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Public kiosk/form surface.
	r.POST("/api/entries/scan", h.Scan)
	r.POST("/api/entries/manual", h.ManualEntry)
	r.GET("/api/entries/form", h.UserByToken)
	r.POST("/api/users/upsert", h.UpsertUser)
	r.GET("/api/users/lookup/:id", h.LookupUser)

	// Admin session endpoints.
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/refresh", h.Refresh)

	authMW := auth.AdminAuth(cfg.JWTSigningKey, cfg.JWTIssuer)
	api := r.Group("/api", authMW)

	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/profile", h.Profile)
	api.PUT("/auth/profile", h.UpdateProfile)

	api.GET("/entries", h.ListEntries)
	api.GET("/entries/active", h.ActiveEntries)
	api.POST("/entries/filter", h.FilterEntries)
	api.GET("/entries/:id", h.GetEntry)
	api.PUT("/entries/:id", h.UpdateEntry)
	api.DELETE("/entries/:id", h.DeleteEntry)

	api.GET("/users", h.ListUsers)
	api.GET("/users/search", h.SearchUsers)
	api.POST("/users", h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeleteUser)

	api.GET("/admins", h.ListAdmins)
	api.POST("/admins", h.CreateAdmin)
	api.GET("/admins/:id", h.GetAdmin)
	api.PUT("/admins/:id", h.UpdateAdmin)
	api.DELETE("/admins/:id", h.DeleteAdmin)

	api.GET("/audit-logs", h.ListAuditLogs)
	api.GET("/audit-logs/stats", auth.RequireRole(admin.RoleSuperAdmin), h.AuditStats)
	api.GET("/audit-logs/admin/:adminId", h.AuditLogsByAdmin)
	api.GET("/audit-logs/:id", h.GetAuditLog)

	api.GET("/reports/daily", h.DailyReport)
	api.GET("/reports/weekly", h.WeeklyReport)
	api.GET("/reports/monthly", h.MonthlyReport)
	api.GET("/reports/custom", h.CustomReport)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
