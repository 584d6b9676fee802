package version

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes registers the version route.
func RegisterRoutes(router gin.IRouter, deps *types.Dependencies) {
	router.GET("/version", Get(deps))
}
