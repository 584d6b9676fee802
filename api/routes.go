package api

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mujarchiv/rozhlasd/api/episodes"
	"github.com/mujarchiv/rozhlasd/api/eventstream"
	"github.com/mujarchiv/rozhlasd/api/health"
	"github.com/mujarchiv/rozhlasd/api/ingestion"
	"github.com/mujarchiv/rozhlasd/api/jobs"
	"github.com/mujarchiv/rozhlasd/api/stats"
	"github.com/mujarchiv/rozhlasd/api/system"
	"github.com/mujarchiv/rozhlasd/api/targets"
	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/api/version"
	_ "github.com/mujarchiv/rozhlasd/docs/swagger"
)

// RegisterRoutes registers all control-plane routes.
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies, rateLimiters *sync.Map, cleanupStop chan struct{}, cleanupInitialized *sync.Once) error {
	if deps == nil {
		return fmt.Errorf("handler dependencies are nil")
	}

	// Public routes, no rate limiting.
	health.RegisterRoutes(engine, deps)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(301, "/docs/index.html")
	})
	docsGroup := engine.Group("/docs")
	docsGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	engine.NoRoute(NotFoundHandler())

	v1 := engine.Group("/api/v1")
	health.RegisterRoutes(v1, deps)
	version.RegisterRoutes(v1, deps)

	// The event stream holds its connection open; rate limiting it
	// would count one client per reconnect, so it stays unthrottled.
	eventstream.RegisterRoutes(v1, deps)

	general := PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 10, 20)

	statsGroup := v1.Group("/stats")
	statsGroup.Use(general)
	stats.RegisterRoutes(statsGroup, deps)

	episodeGroup := v1.Group("/episodes")
	episodeGroup.Use(general)
	episodes.RegisterRoutes(episodeGroup, deps)

	jobGroup := v1.Group("/jobs")
	jobGroup.Use(general)
	jobs.RegisterRoutes(jobGroup, deps)

	targetGroup := v1.Group("/targets")
	targetGroup.Use(general)
	targets.RegisterRoutes(targetGroup, deps)

	// Ingest runs discovery against the upstream, so it gets a tighter
	// bucket (2 req/s, burst of 5).
	ingestGroup := v1.Group("/ingest")
	ingestGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 2, 5))
	ingestion.RegisterRoutes(ingestGroup, deps)

	systemGroup := v1.Group("/system")
	systemGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 1, 2))
	system.RegisterRoutes(systemGroup, deps)

	return nil
}

// NotFoundHandler handles 404 errors.
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(404, gin.H{
			"status":  "error",
			"message": "The requested endpoint was not found",
			"path":    c.Request.URL.Path,
		})
	}
}
