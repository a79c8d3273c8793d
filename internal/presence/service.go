package presence

import (
	"context"
	"fmt"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/Magnec/chatspace/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service composes the Redis tracker with user and message lookup to
// answer "who is here" for a room.
type Service struct {
	tracker  *Tracker
	users    repository.UserRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewService(tracker *Tracker, users repository.UserRepository, messages repository.MessageRepository, logger *zap.Logger) *Service {
	return &Service{tracker: tracker, users: users, messages: messages, logger: logger}
}

func (s *Service) Heartbeat(ctx context.Context, userID, roomID uuid.UUID) error {
	return s.tracker.Heartbeat(ctx, userID, roomID)
}

// TouchSite records site-wide activity for a user who may not be in
// any room. This is what keeps logged-in lurkers on rosters as online.
func (s *Service) TouchSite(ctx context.Context, userID uuid.UUID) error {
	return s.tracker.TouchSite(ctx, userID)
}

func (s *Service) SetTyping(ctx context.Context, userID, roomID uuid.UUID, typing bool) error {
	if typing {
		return s.tracker.StartTyping(ctx, userID, roomID)
	}
	return s.tracker.StopTyping(ctx, userID, roomID)
}

// TypingUsers returns display names of users currently typing in the
// room, excluding the requesting user.
func (s *Service) TypingUsers(ctx context.Context, roomID, currentUser uuid.UUID) ([]models.User, error) {
	ids, err := s.tracker.Typing(ctx, roomID)
	if err != nil {
		return nil, err
	}

	others := ids[:0]
	for _, id := range ids {
		if id != currentUser {
			others = append(others, id)
		}
	}
	return s.users.ListByIDs(ctx, others)
}

// ListUsers builds the room roster: everyone seen site-wide in the last
// 24 hours, classified active / online / offline relative to the room.
// "In the room" merges recent heartbeats with recent message senders,
// so posting counts as presence even if a heartbeat got lost.
func (s *Service) ListUsers(ctx context.Context, roomID, currentUser uuid.UUID) ([]RoomUser, Stats, error) {
	seen, err := s.tracker.SeenRecently(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("list seen users: %w", err)
	}

	inRoom := make(map[uuid.UUID]bool)
	if ids, err := s.tracker.ActiveInRoom(ctx, roomID); err != nil {
		// Degrade to heartbeat-less classification instead of failing
		// the whole roster.
		s.logger.Warn("room presence read failed", zap.Error(err))
	} else {
		for _, id := range ids {
			inRoom[id] = true
		}
	}

	cutoff := s.tracker.now().Add(-RoomActiveWindow)
	if ids, err := s.messages.RecentSenderIDs(ctx, roomID, cutoff); err != nil {
		s.logger.Warn("recent sender read failed", zap.Error(err))
	} else {
		for _, id := range ids {
			inRoom[id] = true
			if _, ok := seen[id]; !ok {
				seen[id] = cutoff
			}
		}
	}

	online := make(map[uuid.UUID]bool)
	if ids, err := s.tracker.Online(ctx); err != nil {
		s.logger.Warn("online presence read failed", zap.Error(err))
	} else {
		for _, id := range ids {
			online[id] = true
		}
	}

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("load roster users: %w", err)
	}

	roster, stats := BuildRoster(users, seen, inRoom, online, currentUser)
	return roster, stats, nil
}
