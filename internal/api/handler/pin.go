package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/service"
)

// PinManager creates and reads pins.
type PinManager interface {
	Create(ctx context.Context, userID string, in service.CreatePinInput) (*domain.Pin, error)
	Get(ctx context.Context, id string) (*domain.Pin, error)
	GetOrdered(ctx context.Context, ids []string) ([]domain.Pin, error)
}

// MediaUploader attaches media to a pin and vectorizes it.
type MediaUploader interface {
	UploadPinMedia(ctx context.Context, pinID string, data []byte, filename string) (*domain.Pin, error)
}

// RelatedRanker ranks pins similar to a given pin.
type RelatedRanker interface {
	RelatedPins(ctx context.Context, pinID string, limit int) ([]service.ScoreEntry, error)
}

// PinHandler handles pin endpoints.
type PinHandler struct {
	pins           PinManager
	media          MediaUploader
	related        RelatedRanker
	maxUploadBytes int64
}

// NewPinHandler creates a new pin handler.
// Parameters:
//   - pins: pin service.
//   - media: media upload pipeline.
//   - related: related-pin ranker.
//   - maxUploadBytes: upper bound on uploaded file size.
// Returns:
//   - *PinHandler: initialized handler.
func NewPinHandler(pins PinManager, media MediaUploader, related RelatedRanker, maxUploadBytes int64) *PinHandler {
	return &PinHandler{
		pins:           pins,
		media:          media,
		related:        related,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreatePin handles POST /api/v1/pins.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PinHandler) CreatePin(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req service.CreatePinInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	pin, err := h.pins.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, "Failed to create pin", err)
		return
	}

	c.JSON(http.StatusCreated, pin)
}

// GetPin handles GET /api/v1/pins/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PinHandler) GetPin(c *gin.Context) {
	pin, err := h.pins.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get pin", err)
		return
	}

	c.JSON(http.StatusOK, pin)
}

// UploadMedia handles POST /api/v1/pins/:id/media with a multipart "file".
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PinHandler) UploadMedia(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Multipart field 'file' is required: " + err.Error(),
		})
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File exceeds %d bytes", h.maxUploadBytes),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to open upload: " + err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read upload: " + err.Error(),
		})
		return
	}

	pin, err := h.media.UploadPinMedia(c.Request.Context(), c.Param("id"), data, fileHeader.Filename)
	if err != nil {
		respondError(c, "Failed to upload media", err)
		return
	}

	c.JSON(http.StatusOK, pin)
}

// RelatedPins handles GET /api/v1/pins/:id/related.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PinHandler) RelatedPins(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.Query("limit"))

	ranked, err := h.related.RelatedPins(ctx, c.Param("id"), limit)
	if err != nil {
		respondError(c, "Failed to rank related pins", err)
		return
	}

	ids := make([]string, len(ranked))
	for i, entry := range ranked {
		ids[i] = entry.PinID
	}
	pins, err := h.pins.GetOrdered(ctx, ids)
	if err != nil {
		respondError(c, "Failed to load related pins", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pins":   pins,
		"scores": ranked,
		"total":  len(pins),
	})
}
