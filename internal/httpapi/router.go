package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/internal/auth"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/store"
)

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, db *store.DB, redisClient *store.Redis) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(h.cfg.RateLimitPerMin, h.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", h.Register)
	r.POST("/v1/auth/login", h.Login)

	authed := r.Group("/v1", auth.UserAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	{
		authed.GET("/classes", h.ListClasses)
		authed.GET("/sessions", h.ListSessions)
		authed.GET("/students/:id", h.GetStudent)
		authed.POST("/checkins", h.CheckIn)
		authed.GET("/notifications", h.Notifications)
		authed.POST("/notifications/:id/read", h.MarkNotificationRead)
		authed.POST("/documents", h.SendDocument)
		authed.GET("/documents", h.Inbox)
		authed.DELETE("/documents/:id", h.DeleteDocument)
	}

	staff := authed.Group("", auth.RequireRole(auth.RoleStaff))
	{
		staff.GET("/students", h.ListStudents)
		staff.POST("/students/:id/approve", h.ApproveStudent)
		staff.POST("/students/:id/device/reset", h.ResetDevice)
		staff.POST("/sessions", h.CreateSession)
		staff.POST("/sessions/:id/deactivate", h.DeactivateSession)
		staff.GET("/sessions/:id/report", h.SessionReport)
		staff.GET("/sessions/:id/absentees", h.SessionAbsentees)
		staff.GET("/sessions/:id/candidates", h.ManualCandidates)
		staff.POST("/sessions/:id/manual", h.ManualMark)
		staff.GET("/stats", h.Stats)
		staff.GET("/records", h.Records)
	}

	return r
}

// CORS middleware for browser requests.
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

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
