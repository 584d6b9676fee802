package jobs

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes wires the job endpoints.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("", GetAll(deps))
	router.POST("/run", PostRun(deps))
	router.POST("/:id/retry", PostRetry(deps))
}
