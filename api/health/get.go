package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// Get handles health check requests
// @Summary      Liveness check
// @Description  Reports process liveness and catalog database reachability
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]interface{} "Healthy"
// @Failure      503 {object} map[string]interface{} "Database unreachable"
// @Router       /health [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		database := databaseStatus(deps)
		response["database"] = database

		if database["status"] == "unhealthy" {
			response["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

func databaseStatus(deps *types.Dependencies) gin.H {
	if deps == nil || deps.DB == nil || deps.DB.DB == nil {
		return gin.H{"status": "not configured"}
	}
	if err := deps.DB.HealthCheck(); err != nil {
		return gin.H{"status": "unhealthy", "error": err.Error()}
	}
	return gin.H{"status": "healthy"}
}
