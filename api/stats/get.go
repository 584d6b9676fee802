package stats

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// Get handles catalog statistics requests
// @Summary      Catalog statistics
// @Description  Counts per entity and per status across the whole catalog
// @Tags         catalog
// @Produce      json
// @Success      200 {object} catalog.Stats "Aggregated counts"
// @Failure      500 {object} types.ErrorResponse "Internal server error"
// @Router       /api/v1/stats [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Repo.Stats(c.Request.Context())
		if err != nil {
			log.Printf("[ERROR] stats: aggregating catalog counts: %v", err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to aggregate catalog stats"))
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
