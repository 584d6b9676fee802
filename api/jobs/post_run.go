package jobs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/scheduler"
)

// PostRun queues a download pass outside the regular tick.
//
//	@Summary		Run a download pass now
//	@Description	Queues an immediate download pass; progress is reported on the event stream
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.RunJobsRequest	false	"Optional batch size override"
//	@Success		202		{object}	types.SubmissionResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		429		{object}	types.ErrorResponse
//	@Router			/api/v1/jobs/run [post]
func PostRun(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.RunJobsRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, types.NewError("invalid request body: "+err.Error()))
				return
			}
		}
		if req.Limit < 0 {
			c.JSON(http.StatusBadRequest, types.NewError("limit must not be negative"))
			return
		}

		id, err := deps.Submitter.Submit(scheduler.Submission{
			Kind:  scheduler.SubmitRunJobs,
			Limit: req.Limit,
		})
		if err != nil {
			if errors.Is(err, scheduler.ErrQueueFull) {
				c.JSON(http.StatusTooManyRequests, types.NewError("submission queue is full, try again later"))
				return
			}
			c.JSON(http.StatusInternalServerError, types.NewError("failed to queue download pass"))
			return
		}

		c.JSON(http.StatusAccepted, types.SubmissionResponse{
			Status:       types.StatusQueued,
			SubmissionID: id,
		})
	}
}
