package repository

import (
	"context"
	"time"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
)

// Every method takes a context because every method hits the network.
// Stores return (nil, nil) for a missing row; callers decide whether
// that is a 404 or a silently skipped mention.

// RoomRepository is room lookup only. Room creation and editing are an
// external collaborator's concern; the sync engine just resolves ids
// and slugs.
type RoomRepository interface {
	// GetByID returns a single room. Returns nil, nil if not found.
	GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error)

	// GetBySlug resolves a room by its unique slug. Returns nil, nil if
	// not found.
	GetBySlug(ctx context.Context, slug string) (*models.Room, error)
}

// UserRepository handles user lookup.
type UserRepository interface {
	// GetByID returns a user by id. Returns nil, nil if not found.
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByUsername resolves an exact username. Mention resolution and
	// login both go through here. Returns nil, nil if not found.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// ListByIDs returns the users for the given ids, in no particular
	// order. Unknown ids are skipped, not errors.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)

	// ListRecentPosters returns users who sent a message in the room at
	// or after the cutoff, optionally filtered by a name substring,
	// sorted by username. Feeds the @mention autocomplete.
	ListRecentPosters(ctx context.Context, roomID uuid.UUID, since time.Time, query string) ([]models.User, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create persists an active message and returns it with ID and
	// CreatedAt populated.
	Create(ctx context.Context, roomID, senderID uuid.UUID, body string) (*models.Message, error)

	// GetByID returns a message regardless of status. Returns nil, nil
	// if not found.
	GetByID(ctx context.Context, messageID int64) (*models.Message, error)

	// ListRecent returns the newest active messages in a room, newest
	// first, capped at limit. The caller reverses for display order.
	ListRecent(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)

	// ListSince returns active messages with id > sinceID, ascending,
	// capped at limit. Callers must tolerate a truncated batch.
	ListSince(ctx context.Context, roomID uuid.UUID, sinceID int64, limit int) ([]models.Message, error)

	// UpdateBody rewrites the body and stamps edited_at/edited_by.
	// ID and room_id are preserved.
	UpdateBody(ctx context.Context, messageID int64, body string, editorID uuid.UUID) (*models.Message, error)

	// MarkDeleted soft-deletes: status goes active -> deleted, the row
	// stays for audit.
	MarkDeleted(ctx context.Context, messageID int64, actorID uuid.UUID) error

	// DeleteAllInRoom hard-deletes every message in the room and
	// returns the count. Irreversible; admin clear-history only.
	DeleteAllInRoom(ctx context.Context, roomID uuid.UUID) (int64, error)

	// RecentSenderIDs returns distinct senders of active messages in
	// the room at or after the cutoff. Feeds presence classification.
	RecentSenderIDs(ctx context.Context, roomID uuid.UUID, since time.Time) ([]uuid.UUID, error)
}

// NotificationRepository stores mention notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error

	// CountRecentForUser counts notifications addressed to the user at
	// or after the cutoff (the "unread mentions" badge).
	CountRecentForUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}
