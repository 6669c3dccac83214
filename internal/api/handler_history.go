package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops-backend/internal/model"
)

// GetHistory handles GET /api/history: archived operations, most recently
// completed first. Optionally filtered with ?technician_id=.
func (h *Handler) GetHistory(c *gin.Context) {
	records, err := h.store.ListHistory(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	if techID := c.Query("technician_id"); techID != "" {
		filtered := make([]model.OperationHistory, 0, len(records))
		for _, r := range records {
			if r.TechnicianID == techID {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if records == nil {
		records = []model.OperationHistory{}
	}
	c.JSON(http.StatusOK, records)
}
