package api

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/GianDevelops/corex-portal/internal/auth"
	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/realtime"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// healthTimeout bounds the database ping behind /health
const healthTimeout = 2 * time.Second

// Database is what the health and metrics endpoints report on
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, tokens *auth.TokenService, hub *realtime.Hub, db Database, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware(cfg.Server.CorsAllowedOrigins))

	// Handlers
	postHandler := NewPostHandler(services, cfg, log)
	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)
	notificationHandler := NewNotificationHandler(services, log)
	streamHandler := NewStreamHandler(services, hub, log)

	// Health check
	router.GET("/health", healthCheck(db, log))
	router.GET("/metrics", metricsHandler(services, hub, db))

	// Media kept on local disk is served from here; the bucket serves its own
	if cfg.Storage.Bucket == "" && cfg.Storage.LocalPath != "" {
		router.Static("/media", cfg.Storage.LocalPath)
	}

	// API v1
	v1 := router.Group("/v1")
	v1.Use(auth.Middleware(tokens))
	v1.Use(recordUserMiddleware(services, log))
	{
		v1.GET("/me", me)
		v1.GET("/clients", requireDesigner(), postHandler.ListClients)
		v1.GET("/board", postHandler.Board)

		posts := v1.Group("/posts")
		{
			posts.GET("", postHandler.List)
			posts.POST("", postHandler.Create)
			posts.GET("/:id", postHandler.Get)
			posts.PATCH("/:id", postHandler.Edit)
			posts.DELETE("/:id", postHandler.Delete)
			posts.POST("/:id/actions/:action", postHandler.Action)
			posts.POST("/:id/feedback", postHandler.AddFeedback)
			posts.POST("/:id/seen", postHandler.MarkSeen)
			posts.POST("/:id/media", postHandler.UploadMedia)
		}

		v1.GET("/export", exportHandler.StreamExport)
		v1.POST("/import", importHandler.ImportIdeas)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/read", notificationHandler.MarkRead)
		}

		if hub != nil {
			v1.GET("/stream", streamHandler.Stream)
		}
	}

	return router
}

// healthCheck returns the health status, unhealthy while the database is unreachable
func healthCheck(db Database, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			log.Error().Err(err).Msg("Database health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"database":  "unreachable",
				"timestamp": time.Now().Format(time.RFC3339),
				"service":   "corex-portal",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "corex-portal",
		})
	}
}

// metricsHandler returns post counts per status, live feed usage and the
// database connection pool
func metricsHandler(services *service.Services, hub *realtime.Hub, db Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := services.Post.CountByStatus(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics unavailable"})
			return
		}

		posts := gin.H{}
		total := 0
		for status, n := range counts {
			posts[string(status)] = n
			total += n
		}
		subscribers := 0
		if hub != nil {
			subscribers = hub.Subscribers()
		}

		stats := db.Stats()

		c.JSON(http.StatusOK, gin.H{
			"posts":       posts,
			"total_posts": total,
			"subscribers": subscribers,
			"database": gin.H{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
				"wait_duration_ms": stats.WaitDuration.Milliseconds(),
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// me returns the identity carried by the caller's token
func me(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"id":    actor.UserID,
		"role":  actor.Role,
		"name":  actor.DisplayName,
		"email": actor.Email,
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		if actor, ok := auth.ActorFrom(c); ok {
			event = event.Str("user_id", actor.UserID)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS for the configured origins
func corsMiddleware(allowed []string) gin.HandlerFunc {
	wildcard := false
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		origins[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && origins[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// recordUserMiddleware keeps the users table in step with verified tokens
func recordUserMiddleware(services *service.Services, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, ok := auth.ActorFrom(c); ok {
			if err := services.User.Record(c.Request.Context(), actor); err != nil {
				log.Warn().Err(err).Str("user_id", actor.UserID).Msg("Failed to record user profile")
			}
		}
		c.Next()
	}
}
