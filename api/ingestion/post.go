package ingestion

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/discovery"
)

// PostURL ingests one URL end to end: discovery fan-out, dedupe, then
// reconciliation into the catalog. dry_run switches to a preview.
//
//	@Summary		Ingest a URL
//	@Description	Runs discovery and reconciles the results into the catalog
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.IngestRequest	true	"URL to ingest"
//	@Success		200		{object}	ingest.Outcome
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Router			/api/v1/ingest/url [post]
func PostURL(deps *types.Dependencies) gin.HandlerFunc {
	return handleIngest(deps, false)
}

// PostProgram ingests a whole program page. The discovery sources
// handle pagination themselves, so the pipeline is the same as for a
// single URL; the separate route mirrors the CLI verbs.
//
//	@Summary		Ingest a program
//	@Description	Runs the full discovery fan-out over a program URL and reconciles every found episode
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.IngestRequest	true	"Program URL to ingest"
//	@Success		200		{object}	ingest.Outcome
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Router			/api/v1/ingest/program [post]
func PostProgram(deps *types.Dependencies) gin.HandlerFunc {
	return handleIngest(deps, false)
}

// PostPreview runs discovery and dedupe without writing anything.
//
//	@Summary		Preview an ingest
//	@Description	Runs discovery and duplicate folding for a URL but writes nothing
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.IngestRequest	true	"URL to preview"
//	@Success		200		{object}	ingest.Outcome
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Router			/api/v1/ingest/preview [post]
func PostPreview(deps *types.Dependencies) gin.HandlerFunc {
	return handleIngest(deps, true)
}

func handleIngest(deps *types.Dependencies, forcePreview bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.NewError("invalid request body: "+err.Error()))
			return
		}
		if _, err := discovery.NormalizeTarget(req.URL); err != nil {
			c.JSON(http.StatusBadRequest, types.NewError(err.Error()))
			return
		}

		run := deps.Ingester.IngestURL
		if forcePreview || req.DryRun {
			run = deps.Ingester.Preview
		}

		outcome, err := run(c.Request.Context(), req.URL)
		if err != nil {
			log.Printf("[ERROR] ingestion: %s: %v", req.URL, err)
			c.JSON(http.StatusBadGateway, types.NewError("ingest failed: "+err.Error()))
			return
		}

		c.JSON(http.StatusOK, outcome)
	}
}
