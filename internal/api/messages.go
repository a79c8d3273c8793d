package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Magnec/chatspace/internal/chat"
	"github.com/Magnec/chatspace/internal/render"
	"github.com/gin-gonic/gin"
)

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

// ListMessages is the delivery endpoint the poller hits. since=0 (or
// absent) is the initial load; otherwise only messages past the cursor
// come back. last_id is the cursor for the next poll and never moves
// backward even when the batch is empty.
func (h *Handler) ListMessages(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	since := int64(0)
	if raw := c.Query("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.respondError(c, fmt.Errorf("since must be a message id: %w", chat.ErrInvalidInput))
			return
		}
		since = parsed
	}

	views, err := h.chat.Fetch(c.Request.Context(), room, actor(c), since)
	if err != nil {
		h.respondError(c, err)
		return
	}

	lastID := since
	for _, v := range views {
		if v.MessageID > lastID {
			lastID = v.MessageID
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": render.Plan(views, time.Now()),
		"last_id":  lastID,
	})
}

func (h *Handler) SendMessage(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("message body required: %w", chat.ErrInvalidInput))
		return
	}

	view, err := h.chat.Send(c.Request.Context(), room, actor(c), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": view})
}

func (h *Handler) EditMessage(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, fmt.Errorf("invalid message id: %w", chat.ErrInvalidInput))
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("message body required: %w", chat.ErrInvalidInput))
		return
	}

	view, err := h.chat.Edit(c.Request.Context(), room, id, actor(c), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": view})
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, fmt.Errorf("invalid message id: %w", chat.ErrInvalidInput))
		return
	}

	if err := h.chat.Delete(c.Request.Context(), room, id, actor(c)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true, "message_id": id})
}

// ClearHistory wipes the room. Destructive, so it demands an explicit
// confirm=1 on top of the admin check.
func (h *Handler) ClearHistory(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	if c.Query("confirm") != "1" {
		h.respondError(c, fmt.Errorf("confirm=1 required: %w", chat.ErrInvalidInput))
		return
	}

	count, err := h.chat.ClearHistory(c.Request.Context(), room, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": count})
}
