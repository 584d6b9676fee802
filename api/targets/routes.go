package targets

import (
	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// RegisterRoutes wires the crawl target endpoints.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("", GetAll(deps))
	router.POST("", PostAdd(deps))
	router.POST("/:id/toggle", PostToggle(deps))
	router.POST("/:id/crawl", PostCrawl(deps))
}
