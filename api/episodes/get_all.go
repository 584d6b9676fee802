package episodes

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/models"
)

// GetAll lists episodes, newest first
// @Summary      List episodes
// @Description  Pages through episodes, optionally filtered by availability status
// @Tags         episodes
// @Produce      json
// @Param        status query string false "Availability filter (unknown|available|unavailable|gone)"
// @Param        limit  query int    false "Page size, default 50, max 200"
// @Param        offset query int    false "Page offset"
// @Success      200 {object} map[string]interface{} "Episode page"
// @Failure      400 {object} types.ErrorResponse "Unknown status filter"
// @Failure      500 {object} types.ErrorResponse "Internal server error"
// @Router       /api/v1/episodes [get]
func GetAll(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.AvailabilityStatus(c.Query("status"))
		switch status {
		case "", models.AvailabilityUnknown, models.AvailabilityAvailable,
			models.AvailabilityUnavailable, models.AvailabilityGone:
		default:
			c.JSON(http.StatusBadRequest, types.NewError("unknown availability status"))
			return
		}

		limit := intQuery(c, "limit", 50)
		if limit > 200 {
			limit = 200
		}
		offset := intQuery(c, "offset", 0)

		episodes, err := deps.Repo.ListEpisodesByStatus(c.Request.Context(), status, limit, offset)
		if err != nil {
			log.Printf("[ERROR] episodes: listing episodes: %v", err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to list episodes"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"episodes": episodes,
			"count":    len(episodes),
			"offset":   offset,
		})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
