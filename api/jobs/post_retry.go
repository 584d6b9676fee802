package jobs

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
)

// PostRetry flips an error or watch job back to pending.
//
//	@Summary		Retry a failed job
//	@Description	Moves an error or watch job back to pending so the next download pass picks it up
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		int	true	"Job ID"
//	@Success		200	{object}	types.BaseResponse
//	@Failure		400	{object}	types.ErrorResponse
//	@Failure		404	{object}	types.ErrorResponse
//	@Failure		409	{object}	types.ErrorResponse
//	@Router			/api/v1/jobs/{id}/retry [post]
func PostRetry(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid job ID"))
			return
		}

		err = deps.Repo.RetryJob(c.Request.Context(), uint(id))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, types.BaseResponse{
				Status:  types.StatusOK,
				Message: "job re-queued",
			})
		case catalog.IsNotFound(err):
			c.JSON(http.StatusNotFound, types.NewError("job not found"))
		case errors.Is(err, catalog.ErrJobNotRetryable):
			c.JSON(http.StatusConflict, types.NewError(err.Error()))
		default:
			log.Printf("[ERROR] jobs: retrying job %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to retry job"))
		}
	}
}
