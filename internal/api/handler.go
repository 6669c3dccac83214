package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"fieldops-backend/internal/lifecycle"
	"fieldops-backend/internal/realtime"
	"fieldops-backend/internal/store"
	"fieldops-backend/internal/validate"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	manager *lifecycle.Manager
	store   store.Store
	hub     *realtime.Hub
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(manager *lifecycle.Manager, s store.Store, hub *realtime.Hub, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		manager: manager,
		store:   s,
		hub:     hub,
		webpush: webpushOptions,
	}
}

// fail maps lifecycle and store errors onto HTTP statuses. Backend failures
// are logged and surfaced as a generic notice, never as raw driver errors.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "operation not found"})
	case errors.Is(err, validate.ErrInvalidForm),
		errors.Is(err, lifecycle.ErrEmptyText),
		errors.Is(err, lifecycle.ErrUnknownStatus):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Backend error: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "the operation could not be completed, try again"})
	}
}
