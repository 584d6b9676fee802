package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes wires the ingest endpoints.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.POST("/url", PostURL(deps))
	router.POST("/program", PostProgram(deps))
	router.POST("/preview", PostPreview(deps))
}
