package targets

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/scheduler"
)

// PostCrawl queues an immediate crawl of one target, outside its
// regular schedule.
//
//	@Summary		Crawl a target now
//	@Description	Queues an out-of-schedule crawl; progress is reported on the event stream
//	@Tags			targets
//	@Produce		json
//	@Param			id	path		int	true	"Target ID"
//	@Success		202	{object}	types.SubmissionResponse
//	@Failure		400	{object}	types.ErrorResponse
//	@Failure		404	{object}	types.ErrorResponse
//	@Failure		429	{object}	types.ErrorResponse
//	@Router			/api/v1/targets/{id}/crawl [post]
func PostCrawl(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid target ID"))
			return
		}

		// Reject unknown targets up front; the submission itself runs
		// asynchronously and could only report the miss via the bus.
		if _, err := deps.Repo.GetTarget(c.Request.Context(), uint(id)); err != nil {
			if catalog.IsNotFound(err) {
				c.JSON(http.StatusNotFound, types.NewError("target not found"))
				return
			}
			c.JSON(http.StatusInternalServerError, types.NewError("failed to load target"))
			return
		}

		subID, err := deps.Submitter.Submit(scheduler.Submission{
			Kind:     scheduler.SubmitCrawlTarget,
			TargetID: uint(id),
		})
		if err != nil {
			if errors.Is(err, scheduler.ErrQueueFull) {
				c.JSON(http.StatusTooManyRequests, types.NewError("submission queue is full, try again later"))
				return
			}
			c.JSON(http.StatusInternalServerError, types.NewError("failed to queue crawl"))
			return
		}

		c.JSON(http.StatusAccepted, types.SubmissionResponse{
			Status:       types.StatusQueued,
			SubmissionID: subID,
		})
	}
}
