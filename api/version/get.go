package version

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// Get handles version requests
// @Summary      Build information
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string "Version info"
// @Router       /api/v1/version [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		build := deps.Version
		if build == "" {
			build = "dev"
		}
		c.JSON(http.StatusOK, gin.H{
			"name":        "rozhlasd",
			"version":     build,
			"description": "Czech Radio catalog ingest and download daemon",
		})
	}
}
