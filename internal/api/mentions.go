package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Magnec/chatspace/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Cutoffs for the mention endpoints. Autocomplete only offers people
// active in the conversation right now; the unread badge looks back a
// week.
const (
	suggestionWindow = time.Hour
	unreadWindow     = 7 * 24 * time.Hour
)

// MentionSuggestions backs the @autocomplete dropdown: recent posters
// in the room, optionally filtered by the typed prefix.
func (h *Handler) MentionSuggestions(c *gin.Context) {
	room := h.room(c)
	if room == nil {
		return
	}

	cutoff := time.Now().Add(-suggestionWindow)
	users, err := h.users.ListRecentPosters(c.Request.Context(), room.ID, cutoff, c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	suggestions := make([]gin.H, 0, len(users))
	for _, u := range users {
		suggestions = append(suggestions, gin.H{
			"uid":      u.ID,
			"username": u.Username,
			"name":     u.DisplayName,
			"avatar":   u.AvatarURL,
		})
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// UnreadMentions is the badge count: mention notifications addressed
// to the caller since the given unix timestamp (default last 7 days).
func (h *Handler) UnreadMentions(c *gin.Context) {
	since := time.Now().Add(-unreadWindow)
	if raw := c.Query("since"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a unix timestamp"})
			return
		}
		since = time.Unix(ts, 0)
	}

	count, err := h.notifications.CountRecentForUser(c.Request.Context(), middleware.GetUserID(c), since)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
