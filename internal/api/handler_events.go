package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"fieldops-backend/internal/realtime"
)

// StreamEvents handles GET /api/events: a server-sent-event stream of row
// change events, one per committed mutation, in commit order.
func (h *Handler) StreamEvents(c *gin.Context) {
	client := make(realtime.Client, 16)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("change", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
