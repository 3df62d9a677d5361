package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/service"
)

// Backfiller repairs embeddings in bulk.
type Backfiller interface {
	VectorizeMissing(ctx context.Context, limit int) (*service.BackfillStats, error)
	SyncIndex(ctx context.Context) (*service.BackfillStats, error)
}

// Backfill modes accepted by TriggerBackfill.
const (
	BackfillModeVectorize = "vectorize"
	BackfillModeSyncIndex = "sync_index"
)

// AdminHandler handles admin operations.
type AdminHandler struct {
	backfill Backfiller
	logger   *logger.Logger

	// Backfill job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.BackfillStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - backfill: backfill service instance.
//   - log: logger instance.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(backfill Backfiller, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		backfill: backfill,
		logger:   log,
	}
}

// BackfillRequest represents the backfill API request.
type BackfillRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=vectorize sync_index"`
	Limit int    `json:"limit" binding:"omitempty,min=1,max=10000"`
}

// BackfillResponse represents the backfill API response.
type BackfillResponse struct {
	Message string                 `json:"message"`
	Stats   *service.BackfillStats `json:"stats,omitempty"`
}

// BackfillStatusResponse represents the backfill status.
type BackfillStatusResponse struct {
	IsRunning     bool                   `json:"is_running"`
	LastRunTime   string                 `json:"last_run_time,omitempty"`
	LastRunStatus string                 `json:"last_run_status,omitempty"`
	CurrentStats  *service.BackfillStats `json:"current_stats,omitempty"`
}

// TriggerBackfill handles POST /api/v1/admin/backfill. The job runs to
// completion before the response is written; only one job runs at a time.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerBackfill(c *gin.Context) {
	ctx := c.Request.Context()

	var req BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid backfill request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Backfill request rejected: already running, mode=%s", req.Mode)
		c.JSON(http.StatusConflict, gin.H{"error": "Backfill is already running"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting backfill: mode=%s, limit=%d", req.Mode, req.Limit)

	// Detached from the request so a client timeout does not abort the job.
	jobCtx := context.Background()
	if h.logger != nil {
		jobCtx = h.logger.WithContext(jobCtx)
	}
	startTime := time.Now()
	var (
		stats *service.BackfillStats
		err   error
	)
	if req.Mode == BackfillModeSyncIndex {
		stats, err = h.backfill.SyncIndex(jobCtx)
	} else {
		stats, err = h.backfill.VectorizeMissing(jobCtx, req.Limit)
	}
	duration := time.Since(startTime)

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Backfill failed: mode=%s, error=%v", req.Mode, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldCount:      stats.ProcessedItems,
	}).Info(ctx, "Backfill completed: mode=%s, total=%d, processed=%d, failed=%d",
		req.Mode, stats.TotalItems, stats.ProcessedItems, stats.FailedItems)

	c.JSON(http.StatusOK, BackfillResponse{
		Message: "Backfill completed successfully",
		Stats:   stats,
	})
}

// GetBackfillStatus handles GET /api/v1/admin/backfill/status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) GetBackfillStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := BackfillStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
