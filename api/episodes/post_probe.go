package episodes

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/scheduler"
)

// PostProbe queues an on-demand availability probe
// @Summary      Probe an episode now
// @Description  Queues a probe on the submission pool; the verdict arrives on the event stream
// @Tags         episodes
// @Produce      json
// @Param        id path int true "Episode id"
// @Success      202 {object} types.SubmissionResponse "Probe queued"
// @Failure      400 {object} types.ErrorResponse "Invalid id"
// @Failure      404 {object} types.ErrorResponse "Episode not found"
// @Failure      429 {object} types.ErrorResponse "Submission queue full"
// @Router       /api/v1/episodes/{id}/probe [post]
func PostProbe(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid episode id"))
			return
		}

		// Reject unknown episodes up front; the submission itself runs
		// asynchronously and could only report the miss via the bus.
		if _, err := deps.Repo.GetEpisode(c.Request.Context(), uint(id)); err != nil {
			if catalog.IsNotFound(err) {
				c.JSON(http.StatusNotFound, types.NewError("episode not found"))
				return
			}
			log.Printf("[ERROR] episodes: loading episode %d for probe: %v", id, err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to load episode"))
			return
		}

		submissionID, err := deps.Submitter.Submit(scheduler.Submission{
			Kind:      scheduler.SubmitProbeEpisode,
			EpisodeID: uint(id),
		})
		if err != nil {
			if errors.Is(err, scheduler.ErrQueueFull) {
				c.JSON(http.StatusTooManyRequests, types.NewError("submission queue is full, try again later"))
				return
			}
			log.Printf("[ERROR] episodes: queuing probe for episode %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to queue probe"))
			return
		}

		c.JSON(http.StatusAccepted, types.SubmissionResponse{
			Status:       types.StatusQueued,
			SubmissionID: submissionID,
		})
	}
}
