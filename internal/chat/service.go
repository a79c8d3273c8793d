// Package chat is the message store service: send, edit, soft delete,
// cursor-based fetch, and the permission checks around them.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/Magnec/chatspace/internal/mention"
	"github.com/Magnec/chatspace/internal/models"
	"github.com/Magnec/chatspace/internal/ratelimit"
	"github.com/Magnec/chatspace/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxBodyLen is the message body cap in bytes.
	MaxBodyLen = 512

	// InitialPageSize is how many messages an initial load returns.
	// Incremental polls expect small deltas and are capped lower; a
	// burst beyond IncrementalPageSize is picked up by the next poll.
	InitialPageSize     = 50
	IncrementalPageSize = 20
)

// Actor is the authenticated caller as seen by permission checks. It
// carries exactly what the session token proves.
type Actor struct {
	ID      uuid.UUID
	IsAdmin bool
}

// Mentions is the slice of the mention pipeline the chat service uses.
type Mentions interface {
	Process(ctx context.Context, text string, roomID, senderID uuid.UUID, messageID int64) []mention.MentionedUser
	FormatForDisplay(ctx context.Context, text string) string
}

type Service struct {
	messages repository.MessageRepository
	rooms    repository.RoomRepository
	users    repository.UserRepository
	mentions Mentions
	limiter  ratelimit.Limiter
	presence Presence
	logger   *zap.Logger
}

// Presence is notified when sending counts as room activity.
type Presence interface {
	Heartbeat(ctx context.Context, userID, roomID uuid.UUID) error
}

func NewService(
	messages repository.MessageRepository,
	rooms repository.RoomRepository,
	users repository.UserRepository,
	mentions Mentions,
	limiter ratelimit.Limiter,
	presence Presence,
	logger *zap.Logger,
) *Service {
	return &Service{
		messages: messages,
		rooms:    rooms,
		users:    users,
		mentions: mentions,
		limiter:  limiter,
		presence: presence,
		logger:   logger,
	}
}

// ResolveRoom accepts either a room UUID or a slug.
func (s *Service) ResolveRoom(ctx context.Context, ref string) (*models.Room, error) {
	var (
		room *models.Room
		err  error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		room, err = s.rooms.GetByID(ctx, id)
	} else {
		room, err = s.rooms.GetBySlug(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("room %q: %w", ref, ErrNotFound)
	}
	return room, nil
}

// Send validates, rate-limits, and persists a message, then runs the
// mention pipeline. Mention and presence failures never fail the send.
func (s *Service) Send(ctx context.Context, room *models.Room, actor Actor, body string) (*MessageView, error) {
	allowed, err := s.limiter.Allow(ctx, actor.ID)
	if err != nil {
		// Limiter backend down: allow the send rather than block all
		// chat on Redis availability.
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		allowed = true
	}
	if !allowed {
		return nil, fmt.Errorf("user %s: %w", actor.ID, ErrRateLimited)
	}

	body, err = validateBody(body)
	if err != nil {
		return nil, err
	}

	sender, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load sender: %w", err)
	}
	if sender == nil {
		return nil, fmt.Errorf("sender %s: %w", actor.ID, ErrNotFound)
	}

	msg, err := s.messages.Create(ctx, room.ID, actor.ID, body)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	// Posting counts as presence.
	if err := s.presence.Heartbeat(ctx, actor.ID, room.ID); err != nil {
		s.logger.Warn("presence update on send failed", zap.Error(err))
	}

	mentioned := s.mentions.Process(ctx, body, room.ID, actor.ID, msg.ID)

	view := s.buildView(ctx, msg, sender, room, actor)
	view.Mentions = mentioned
	return view, nil
}

// Edit replaces the body of the actor's own message. Mentions are
// re-formatted for display but not re-notified: editing "@bob" into a
// message does not ping bob again.
func (s *Service) Edit(ctx context.Context, room *models.Room, messageID int64, actor Actor, newBody string) (*MessageView, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	if msg == nil || msg.RoomID != room.ID {
		return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}
	if !CanEdit(actor, msg) {
		return nil, fmt.Errorf("edit message %d: %w", messageID, ErrForbidden)
	}

	newBody, err = validateBody(newBody)
	if err != nil {
		return nil, err
	}

	updated, err := s.messages.UpdateBody(ctx, messageID, newBody, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}

	sender, err := s.users.GetByID(ctx, updated.SenderID)
	if err != nil {
		return nil, fmt.Errorf("load sender: %w", err)
	}
	return s.buildView(ctx, updated, sender, room, actor), nil
}

// Delete soft-deletes: the message disappears from every fetch but the
// row stays for audit.
func (s *Service) Delete(ctx context.Context, room *models.Room, messageID int64, actor Actor) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg == nil || msg.RoomID != room.ID {
		return fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}
	if !CanDelete(actor, msg, room) {
		return fmt.Errorf("delete message %d: %w", messageID, ErrForbidden)
	}

	if err := s.messages.MarkDeleted(ctx, messageID, actor.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ClearHistory hard-deletes every message in the room. Room admins
// only; there is no undo.
func (s *Service) ClearHistory(ctx context.Context, room *models.Room, actor Actor) (int64, error) {
	if !IsRoomAdmin(actor, room) {
		return 0, fmt.Errorf("clear history in %s: %w", room.ID, ErrForbidden)
	}

	count, err := s.messages.DeleteAllInRoom(ctx, room.ID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	s.logger.Info("chat history cleared",
		zap.String("room_id", room.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int64("deleted", count))
	return count, nil
}

// Fetch returns messages for a room. With since == 0 it is the initial
// load: the newest InitialPageSize active messages in ascending display
// order. With since > 0 it returns only active messages past the
// cursor, ascending, capped at IncrementalPageSize. Callers tolerate
// truncated batches and poll again.
func (s *Service) Fetch(ctx context.Context, room *models.Room, actor Actor, since int64) ([]MessageView, error) {
	var (
		msgs []models.Message
		err  error
	)
	if since > 0 {
		msgs, err = s.messages.ListSince(ctx, room.ID, since, IncrementalPageSize)
	} else {
		msgs, err = s.messages.ListRecent(ctx, room.ID, InitialPageSize)
		if err == nil {
			reverse(msgs)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	return s.buildViews(ctx, msgs, room, actor)
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", fmt.Errorf("empty message: %w", ErrInvalidInput)
	}
	if len(body) > MaxBodyLen {
		return "", fmt.Errorf("message too long (%d > %d): %w", len(body), MaxBodyLen, ErrInvalidInput)
	}
	return body, nil
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
