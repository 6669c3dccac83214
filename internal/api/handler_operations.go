package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops-backend/internal/model"
	"fieldops-backend/internal/mw"
)

type createOperationRequest struct {
	Type model.OperationType `json:"type" binding:"required"`
	Data map[string]any      `json:"data" binding:"required"`
}

// CreateOperation handles POST /api/operations. The submitting technician is
// taken from the authenticated identity.
func (h *Handler) CreateOperation(c *gin.Context) {
	var req createOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident, _ := mw.GetIdentity(c)
	op, err := h.manager.Create(c.Request.Context(), req.Type, req.Data, ident.Name, ident.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

// ListOperations handles GET /api/operations, optionally filtered down to a
// single technician with ?technician_id=.
func (h *Handler) ListOperations(c *gin.Context) {
	if techID := c.Query("technician_id"); techID != "" {
		ops := h.manager.UserOperations(techID)
		if ops == nil {
			ops = []model.Operation{}
		}
		c.JSON(http.StatusOK, ops)
		return
	}

	ops := h.manager.Active()
	if ops == nil {
		ops = []model.Operation{}
	}
	c.JSON(http.StatusOK, ops)
}

// GetOperation handles GET /api/operations/:id against the system of record.
func (h *Handler) GetOperation(c *gin.Context) {
	op, err := h.store.GetOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// AssignOperation handles POST /api/operations/:id/assign: the calling
// operator claims the operation.
func (h *Handler) AssignOperation(c *gin.Context) {
	ident, _ := mw.GetIdentity(c)
	op, err := h.manager.Assign(c.Request.Context(), c.Param("id"), ident.ID, ident.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /api/operations/:id/status for intermediate
// status changes.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.manager.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SendFeedback handles POST /api/operations/:id/feedback (operator to
// technician).
func (h *Handler) SendFeedback(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.manager.SendFeedback(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// SendResponse handles POST /api/operations/:id/response (technician to
// operator).
func (h *Handler) SendResponse(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.manager.SendTechnicianResponse(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// CompleteOperation handles POST /api/operations/:id/complete, archiving the
// operation into history.
func (h *Handler) CompleteOperation(c *gin.Context) {
	ident, _ := mw.GetIdentity(c)
	archived, err := h.manager.Complete(c.Request.Context(), c.Param("id"), ident.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, archived)
}

// CancelOperation handles POST /api/operations/:id/cancel.
func (h *Handler) CancelOperation(c *gin.Context) {
	archived, err := h.manager.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, archived)
}
