package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a chat participant. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Room is a chat room. Slug is optional and unique when present; all
// message and presence records reference the room by ID. The core never
// mutates a room structurally; slug regeneration and room CRUD live
// outside this service.
type Room struct {
	ID         uuid.UUID `json:"id"`
	Slug       *string   `json:"slug,omitempty"`
	Title      string    `json:"title"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message statuses. Deletion is soft and one-way: active -> deleted.
const (
	MessageActive  int16 = 1
	MessageDeleted int16 = 0
)

// Message is a single chat message.
//
// ID is a bigserial: strictly increasing in creation order within the
// whole table, so it doubles as the delivery cursor. Clients ask for
// "everything after id X" and never regress X.
type Message struct {
	ID        int64      `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	SenderID  uuid.UUID  `json:"sender_id"`
	Body      string     `json:"body"`
	Status    int16      `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	EditedBy  *uuid.UUID `json:"edited_by,omitempty"`
}

// IsEdited reports whether the message has been edited since creation.
func (m *Message) IsEdited() bool {
	return m.EditedAt != nil
}

// Notification is a stored mention notification: "sender mentioned you
// in room, here is the first 100 chars of the message".
type Notification struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	RoomID    uuid.UUID `json:"room_id"`
	MessageID int64     `json:"message_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
