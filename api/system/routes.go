package system

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes wires the system endpoints.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.POST("/library-scan", PostLibraryScan(deps))
}
