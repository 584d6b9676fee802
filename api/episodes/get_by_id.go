package episodes

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
)

// GetByID returns one episode with aliases, assets and jobs
// @Summary      Episode detail
// @Tags         episodes
// @Produce      json
// @Param        id path int true "Episode id"
// @Success      200 {object} models.Episode "Episode with relations"
// @Failure      400 {object} types.ErrorResponse "Invalid id"
// @Failure      404 {object} types.ErrorResponse "Episode not found"
// @Failure      500 {object} types.ErrorResponse "Internal server error"
// @Router       /api/v1/episodes/{id} [get]
func GetByID(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid episode id"))
			return
		}

		episode, err := deps.Repo.GetEpisodeWithDetails(c.Request.Context(), uint(id))
		if err != nil {
			if catalog.IsNotFound(err) {
				c.JSON(http.StatusNotFound, types.NewError("episode not found"))
				return
			}
			log.Printf("[ERROR] episodes: loading episode %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to load episode"))
			return
		}

		c.JSON(http.StatusOK, episode)
	}
}
