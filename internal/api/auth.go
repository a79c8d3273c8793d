package api

import (
	"net/http"

	"github.com/Magnec/chatspace/internal/auth"
	"github.com/Magnec/chatspace/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues both tokens: the long-lived
// session token and a first anti-forgery token so the client can start
// mutating without an extra round trip.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	// Same response for unknown user and wrong password.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	session, err := auth.GenerateToken(user.ID, user.Username, user.IsAdmin, auth.PurposeSession, h.cfg.JWTSecret, h.cfg.SessionTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	csrf, err := auth.GenerateToken(user.ID, user.Username, user.IsAdmin, auth.PurposeCSRF, h.cfg.JWTSecret, h.cfg.CSRFTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Logging in is site activity: the user shows as online on rosters
	// even before opening a room.
	if err := h.presence.TouchSite(c.Request.Context(), user.ID); err != nil {
		h.logger.Warn("site presence update failed", zap.Error(err))
	}

	h.logger.Info("user logged in", zap.String("username", user.Username))
	c.JSON(http.StatusOK, gin.H{
		"token":      session,
		"csrf_token": csrf,
		"user": gin.H{
			"uid":      user.ID,
			"username": user.Username,
			"name":     user.DisplayName,
			"avatar":   user.AvatarURL,
			"is_admin": user.IsAdmin,
		},
	})
}

// CSRFToken hands out a fresh anti-forgery token for the session user.
// Clients call this once at startup and again whenever a mutation
// comes back 403.
func (h *Handler) CSRFToken(c *gin.Context) {
	token, err := auth.GenerateToken(
		middleware.GetUserID(c),
		middleware.GetUsername(c),
		middleware.IsAdmin(c),
		auth.PurposeCSRF,
		h.cfg.JWTSecret,
		h.cfg.CSRFTTL,
	)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"csrf_token": token,
		"expires_in": int(h.cfg.CSRFTTL.Seconds()),
	})
}
