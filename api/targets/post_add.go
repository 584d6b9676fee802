package targets

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/models"
)

// PostAdd registers a crawl target. Adding a URL that is already
// registered returns the existing target unchanged.
//
//	@Summary		Add a crawl target
//	@Description	Registers a URL for periodic crawling; duplicate URLs return the existing target
//	@Tags			targets
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.AddTargetRequest	true	"Target to register"
//	@Success		201		{object}	models.CrawlTarget
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/api/v1/targets [post]
func PostAdd(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.AddTargetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid request body: "+err.Error()))
			return
		}

		kind := models.TargetKind(req.Kind)
		switch kind {
		case "":
			kind = models.TargetProgram
		case models.TargetStation, models.TargetProgram, models.TargetSeries:
		default:
			c.JSON(http.StatusBadRequest, types.NewError("unknown target kind: "+req.Kind))
			return
		}

		if req.IntervalHours < 0 {
			c.JSON(http.StatusBadRequest, types.NewError("interval_hours must not be negative"))
			return
		}
		interval := req.IntervalHours
		if interval == 0 {
			interval = 24
		}

		target := &models.CrawlTarget{
			URL:           req.URL,
			Kind:          kind,
			Active:        true,
			IntervalHours: interval,
		}
		if err := deps.Repo.CreateTarget(c.Request.Context(), target); err != nil {
			log.Printf("[ERROR] targets: creating target %q: %v", req.URL, err)
			c.JSON(http.StatusInternalServerError, types.NewError("failed to create target"))
			return
		}

		c.JSON(http.StatusCreated, target)
	}
}
