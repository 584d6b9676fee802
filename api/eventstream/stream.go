package eventstream

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/metrics"
)

// heartbeatInterval paces the SSE keepalive comments. Kept under the
// 30s idle timeout most reverse proxies default to.
var heartbeatInterval = 25 * time.Second

// Stream serves the daemon's event bus as a server-sent event stream.
// The subscription has a bounded buffer; a client that stops reading
// gets dropped by the bus and the stream ends.
//
//	@Summary		Stream daemon events
//	@Description	Server-sent events: crawl passes, job batches, probe passes and submission progress
//	@Tags			events
//	@Produce		text/event-stream
//	@Success		200	{string}	string	"SSE stream"
//	@Failure		503	{object}	types.ErrorResponse
//	@Router			/api/v1/events [get]
func Stream(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Bus == nil {
			c.JSON(http.StatusServiceUnavailable, types.NewError("event stream unavailable"))
			return
		}

		ch, cancel := deps.Bus.Subscribe()
		defer func() {
			cancel()
			metrics.SetEventSubscribers(deps.Bus.Subscribers())
		}()
		metrics.SetEventSubscribers(deps.Bus.Subscribers())

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Writer.WriteHeader(http.StatusOK)
		fmt.Fprint(c.Writer, ": connected\n\n")
		c.Writer.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case event, ok := <-ch:
				if !ok {
					// The bus dropped this subscriber for falling behind.
					return
				}
				c.SSEvent(event.Type, event)
				c.Writer.Flush()
			case <-heartbeat.C:
				fmt.Fprint(c.Writer, ": keepalive\n\n")
				c.Writer.Flush()
			}
		}
	}
}
