package jobs

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/models"
)

// GetAll lists download jobs, newest first.
//
//	@Summary		List download jobs
//	@Description	Returns download jobs ordered newest first, optionally filtered by status
//	@Tags			jobs
//	@Produce		json
//	@Param			status	query		string	false	"Filter by job status"	Enums(pending, running, success, error, skipped, watch)
//	@Param			limit	query		int		false	"Maximum number of jobs to return (default 100, max 500)"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/api/v1/jobs [get]
func GetAll(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.JobStatus(c.Query("status"))
		switch status {
		case "", models.JobStatusPending, models.JobStatusRunning, models.JobStatusSuccess,
			models.JobStatusError, models.JobStatusSkipped, models.JobStatusWatch:
		default:
			c.JSON(http.StatusBadRequest, types.NewError("unknown job status: "+string(status)))
			return
		}

		limit := 100
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, types.NewError("limit must be a positive integer"))
				return
			}
			limit = parsed
		}
		if limit > 500 {
			limit = 500
		}

		jobList, err := deps.Repo.ListJobsByStatus(c.Request.Context(), status, limit)
		if err != nil {
			log.Printf("[ERROR] jobs: listing jobs: %v", err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to list jobs"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"jobs":  jobList,
			"count": len(jobList),
		})
	}
}
