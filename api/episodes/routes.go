package episodes

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes registers episode routes.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("", GetAll(deps))
	router.GET("/:id", GetByID(deps))
	router.POST("/:id/probe", PostProbe(deps))
}
