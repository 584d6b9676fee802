package health

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes registers the health check route.
func RegisterRoutes(router gin.IRouter, deps *types.Dependencies) {
	router.GET("/health", Get(deps))
}
