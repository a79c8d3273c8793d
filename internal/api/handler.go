// Package api exposes the sync engine over HTTP: message delivery,
// presence, typing, mentions, and the auth endpoints that gate them.
package api

import (
	"context"
	"net/http"

	"github.com/Magnec/chatspace/internal/chat"
	"github.com/Magnec/chatspace/internal/config"
	"github.com/Magnec/chatspace/internal/middleware"
	"github.com/Magnec/chatspace/internal/models"
	"github.com/Magnec/chatspace/internal/presence"
	"github.com/Magnec/chatspace/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService is the slice of the chat service the handlers call.
type ChatService interface {
	ResolveRoom(ctx context.Context, ref string) (*models.Room, error)
	Send(ctx context.Context, room *models.Room, actor chat.Actor, body string) (*chat.MessageView, error)
	Edit(ctx context.Context, room *models.Room, messageID int64, actor chat.Actor, newBody string) (*chat.MessageView, error)
	Delete(ctx context.Context, room *models.Room, messageID int64, actor chat.Actor) error
	ClearHistory(ctx context.Context, room *models.Room, actor chat.Actor) (int64, error)
	Fetch(ctx context.Context, room *models.Room, actor chat.Actor, since int64) ([]chat.MessageView, error)
}

// PresenceService is the slice of the presence service the handlers
// call.
type PresenceService interface {
	Heartbeat(ctx context.Context, userID, roomID uuid.UUID) error
	TouchSite(ctx context.Context, userID uuid.UUID) error
	SetTyping(ctx context.Context, userID, roomID uuid.UUID, typing bool) error
	TypingUsers(ctx context.Context, roomID, currentUser uuid.UUID) ([]models.User, error)
	ListUsers(ctx context.Context, roomID, currentUser uuid.UUID) ([]presence.RoomUser, presence.Stats, error)
}

// HealthCheck is one named dependency probe for GET /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	chat          ChatService
	presence      PresenceService
	users         repository.UserRepository
	notifications repository.NotificationRepository
	cfg           *config.Config
	logger        *zap.Logger
	checks        []HealthCheck
}

func NewHandler(
	chatSvc ChatService,
	presenceSvc PresenceService,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	cfg *config.Config,
	logger *zap.Logger,
	checks ...HealthCheck,
) *Handler {
	return &Handler{
		chat:          chatSvc,
		presence:      presenceSvc,
		users:         users,
		notifications: notifications,
		cfg:           cfg,
		logger:        logger,
		checks:        checks,
	}
}

// NewRouter wires all routes. Everything under /v1 except login needs
// a session token; everything under a room additionally needs the
// anti-forgery token for mutations.
func NewRouter(h *Handler, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	v1.POST("/login", h.Login)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(cfg.JWTSecret), h.trackActivity())
	authed.GET("/token", h.CSRFToken)
	authed.GET("/notifications/unread", h.UnreadMentions)

	room := authed.Group("/rooms/:room")
	room.Use(middleware.CSRFMiddleware(cfg.JWTSecret))
	room.GET("/messages", h.ListMessages)
	room.POST("/messages", h.SendMessage)
	room.PATCH("/messages/:id", h.EditMessage)
	room.DELETE("/messages/:id", h.DeleteMessage)
	room.DELETE("/messages", h.ClearHistory)
	room.GET("/users", h.ListRoomUsers)
	room.POST("/heartbeat", h.Heartbeat)
	room.GET("/typing", h.ListTyping)
	room.POST("/typing", h.SetTyping)
	room.GET("/mention-suggestions", h.MentionSuggestions)

	return r
}

func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	code := http.StatusOK

	for _, check := range h.checks {
		if err := check.Check(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", check.Name), zap.Error(err))
			status[check.Name] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status[check.Name] = "up"
		}
	}

	c.JSON(code, status)
}

// trackActivity upserts site-wide presence for every authenticated
// request, so any API traffic counts as being online, not just room
// heartbeats. Presence is advisory; failures only log.
func (h *Handler) trackActivity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := middleware.GetUserID(c); id != uuid.Nil {
			if err := h.presence.TouchSite(c.Request.Context(), id); err != nil {
				h.logger.Warn("site presence update failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

// actor extracts the authenticated caller from the request context.
func actor(c *gin.Context) chat.Actor {
	return chat.Actor{ID: middleware.GetUserID(c), IsAdmin: middleware.IsAdmin(c)}
}

// room resolves the :room path parameter or writes the error response.
func (h *Handler) room(c *gin.Context) *models.Room {
	room, err := h.chat.ResolveRoom(c.Request.Context(), c.Param("room"))
	if err != nil {
		h.respondError(c, err)
		return nil
	}
	return room
}
