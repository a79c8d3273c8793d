package api

import (
	"net/http"

	"github.com/Magnec/chatspace/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListRoomUsers(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	roster, stats, err := h.presence.ListUsers(c.Request.Context(), room.ID, middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": roster, "stats": stats})
}

func (h *Handler) Heartbeat(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	if err := h.presence.Heartbeat(c.Request.Context(), middleware.GetUserID(c), room.ID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListTyping(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	users, err := h.presence.TypingUsers(c.Request.Context(), room.ID, middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.DisplayName)
	}
	c.JSON(http.StatusOK, gin.H{"typing": names})
}

type typingRequest struct {
	Typing *bool `json:"typing" binding:"required"`
}

func (h *Handler) SetTyping(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "typing flag required"})
		return
	}

	if err := h.presence.SetTyping(c.Request.Context(), middleware.GetUserID(c), room.ID, *req.Typing); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
