package targets

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
)

// PostToggle flips a target between active and paused.
//
//	@Summary		Toggle a crawl target
//	@Description	Flips the active flag; paused targets are skipped by the crawl scheduler
//	@Tags			targets
//	@Produce		json
//	@Param			id	path		int	true	"Target ID"
//	@Success		200	{object}	models.CrawlTarget
//	@Failure		400	{object}	types.ErrorResponse
//	@Failure		404	{object}	types.ErrorResponse
//	@Router			/api/v1/targets/{id}/toggle [post]
func PostToggle(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid target ID"))
			return
		}

		target, err := deps.Repo.ToggleTarget(c.Request.Context(), uint(id))
		if err != nil {
			if catalog.IsNotFound(err) {
				c.JSON(http.StatusNotFound, types.NewError("target not found"))
				return
			}
			log.Printf("[ERROR] targets: toggling target %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to toggle target"))
			return
		}

		c.JSON(http.StatusOK, target)
	}
}
