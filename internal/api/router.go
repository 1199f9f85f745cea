package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/metrics"
	"github.com/encyclopedai/encyclopedai/internal/service"
	"github.com/encyclopedai/encyclopedai/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(otelgin.Middleware(telemetry.ServiceName))
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())
	router.Use(corsMiddleware())

	// Handlers
	articleHandler := NewArticleHandler(services, log)
	searchHandler := NewSearchHandler(services, log)
	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)
	staff := NewStaffAuth(cfg.Auth.AdminJWTSecret, log).RequireStaff()
	limiter := NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/stats", articleHandler.Stats)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Reading room
	public := router.Group("/", limiter.Middleware())
	{
		public.GET("/", articleHandler.Index)
		public.GET("/search/", searchHandler.Search)
		public.GET("/entries/*path", articleHandler.Entry)
		public.POST("/entries/*path", entryAction(articleHandler, staff))
	}

	// Staff endpoints
	admin := router.Group("/admin", staff)
	{
		admin.GET("/export", exportHandler.StreamExport)
		admin.POST("/import", importHandler.ImportCatalogue)
		admin.POST("/links/rebuild", articleHandler.RebuildLinks)
	}

	return router
}

// entryAction dispatches POSTs under /entries/. Slugs may contain slashes,
// so from-result, delete and regenerate share one catch-all route.
func entryAction(h *ArticleHandler, staff gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Param("path")
		if path == "/from-result/" || path == "/from-result" {
			h.FromResult(c)
			return
		}

		trimmed := strings.TrimSuffix(path, "/")
		var action func(*gin.Context, string)
		var slugValue string
		switch {
		case strings.HasSuffix(trimmed, "/delete"):
			action, slugValue = h.Delete, entrySlug(strings.TrimSuffix(trimmed, "/delete"))
		case strings.HasSuffix(trimmed, "/regenerate"):
			action, slugValue = h.Regenerate, entrySlug(strings.TrimSuffix(trimmed, "/regenerate"))
		}
		if action == nil || slugValue == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		staff(c)
		if c.IsAborted() {
			return
		}
		action(c, slugValue)
	}
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   telemetry.ServiceName,
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

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// metricsMiddleware counts requests per route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(route, c.Writer.Status())
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
