package api

import (
	"errors"
	"net/http"

	"github.com/Magnec/chatspace/internal/chat"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto the HTTP status contract.
// Unknown errors become an opaque 500; the detail goes to the log, not
// the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, slow down"})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
