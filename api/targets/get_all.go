package targets

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// GetAll lists every crawl target.
//
//	@Summary		List crawl targets
//	@Description	Returns all crawl targets with their schedule state
//	@Tags			targets
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		500	{object}	types.ErrorResponse
//	@Router			/api/v1/targets [get]
func GetAll(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetList, err := deps.Repo.ListTargets(c.Request.Context())
		if err != nil {
			log.Printf("[ERROR] targets: listing targets: %v", err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to list targets"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"targets": targetList,
			"count":   len(targetList),
		})
	}
}
