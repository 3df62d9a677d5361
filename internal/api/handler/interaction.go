package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/pinfeed/internal/domain"
)

// InteractionRecorder stores user engagement with pins.
type InteractionRecorder interface {
	Record(ctx context.Context, userID, pinID string, kinds []domain.InteractionKind) (*domain.Interaction, error)
	Unlike(ctx context.Context, userID, pinID string) (*domain.Interaction, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Interaction, error)
}

// InteractionHandler handles interaction endpoints.
type InteractionHandler struct {
	interactions InteractionRecorder
}

// NewInteractionHandler creates a new interaction handler.
func NewInteractionHandler(interactions InteractionRecorder) *InteractionHandler {
	return &InteractionHandler{interactions: interactions}
}

// RecordRequest is the body of POST /api/v1/interactions.
type RecordRequest struct {
	PinID string                   `json:"pin_id" binding:"required"`
	Kinds []domain.InteractionKind `json:"kinds" binding:"required,min=1"`
}

// UnlikeRequest is the body of PATCH /api/v1/interactions/unlike.
type UnlikeRequest struct {
	PinID string `json:"pin_id" binding:"required"`
}

// Record handles POST /api/v1/interactions.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *InteractionHandler) Record(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	rec, err := h.interactions.Record(c.Request.Context(), userID, req.PinID, req.Kinds)
	if err != nil {
		respondError(c, "Failed to record interaction", err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Unlike handles PATCH /api/v1/interactions/unlike.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *InteractionHandler) Unlike(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req UnlikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	rec, err := h.interactions.Unlike(c.Request.Context(), userID, req.PinID)
	if err != nil {
		respondError(c, "Failed to unlike pin", err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// List handles GET /api/v1/interactions.
func (h *InteractionHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	records, err := h.interactions.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to list interactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"interactions": records,
		"total":        len(records),
	})
}
