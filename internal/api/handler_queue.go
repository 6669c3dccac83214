package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops-backend/internal/model"
)

// queueInfoResponse reports one operation's place in the pending queue.
// Position 0 means the operation is not queued.
type queueInfoResponse struct {
	Position             int `json:"position"`
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
}

// GetQueue handles GET /api/queue: the pending-only view, newest first.
func (h *Handler) GetQueue(c *gin.Context) {
	queue := h.manager.Queue()
	if queue == nil {
		queue = []model.Operation{}
	}
	c.JSON(http.StatusOK, queue)
}

// GetQueueInfo handles GET /api/operations/:id/queue.
func (h *Handler) GetQueueInfo(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, queueInfoResponse{
		Position:             h.manager.QueuePosition(id),
		EstimatedWaitMinutes: h.manager.EstimatedWaitMinutes(id),
	})
}
