package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
)

// userIDHeader carries the caller's identity. Authentication happens upstream.
const userIDHeader = "X-User-ID"

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPinNotFound), errors.Is(err, domain.ErrInteractionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Server-side failures are
// logged with the request context; client errors are not.
func respondError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).WithError(err).Error(msg)
	}
	c.JSON(status, gin.H{
		"error": msg + ": " + err.Error(),
	})
}

// requireUser reads the caller ID, answering 401 when it is missing.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": userIDHeader + " header is required",
		})
		return "", false
	}
	return userID, true
}
