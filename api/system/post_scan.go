package system

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
)

// PostLibraryScan asks the library manager to rescan its library.
//
//	@Summary		Trigger a library scan
//	@Description	Notifies the configured library manager to rescan; 503 when none is configured
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	types.BaseResponse
//	@Failure		502	{object}	types.ErrorResponse
//	@Failure		503	{object}	types.ErrorResponse
//	@Router			/api/v1/system/library-scan [post]
func PostLibraryScan(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Notifier == nil || !deps.Notifier.Enabled() {
			c.JSON(http.StatusServiceUnavailable, types.NewError("no library manager configured"))
			return
		}

		if err := deps.Notifier.Scan(c.Request.Context()); err != nil {
			log.Printf("[ERROR] system: library scan: %v", err)
			c.JSON(http.StatusBadGateway, types.NewError("library scan failed: "+err.Error()))
			return
		}

		c.JSON(http.StatusOK, types.BaseResponse{
			Status:  types.StatusOK,
			Message: "library scan triggered",
		})
	}
}
