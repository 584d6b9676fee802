package eventstream

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes wires the SSE endpoint.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("/events", Stream(deps))
}
