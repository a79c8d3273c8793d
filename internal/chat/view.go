package chat

import (
	"context"

	"github.com/Magnec/chatspace/internal/mention"
	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageView is a message as delivered to clients. Permission flags
// are computed for the requesting user, so the same message renders
// differently per viewer.
type MessageView struct {
	MessageID        int64                   `json:"message_id"`
	UID              uuid.UUID               `json:"uid"`
	Name             string                  `json:"name"`
	Avatar           string                  `json:"avatar"`
	Message          string                  `json:"message"`
	FormattedMessage string                  `json:"formatted_message"`
	Created          string                  `json:"created"`
	CreatedTimestamp int64                   `json:"created_timestamp"`
	IsEdited         bool                    `json:"is_edited"`
	EditedAt         int64                   `json:"edited_at,omitempty"`
	CanEdit          bool                    `json:"can_edit"`
	CanDelete        bool                    `json:"can_delete"`
	Mentions         []mention.MentionedUser `json:"mentions,omitempty"`
}

// CanEdit: authors edit their own messages, nobody else's. Admins do
// not get edit rights, only delete.
func CanEdit(actor Actor, msg *models.Message) bool {
	return actor.ID == msg.SenderID
}

// CanDelete: the author, a site admin, or the room owner.
func CanDelete(actor Actor, msg *models.Message, room *models.Room) bool {
	return actor.ID == msg.SenderID || IsRoomAdmin(actor, room)
}

// IsRoomAdmin: site admins administer every room; owners their own.
func IsRoomAdmin(actor Actor, room *models.Room) bool {
	return actor.IsAdmin || actor.ID == room.OwnerID
}

func (s *Service) buildView(ctx context.Context, msg *models.Message, sender *models.User, room *models.Room, actor Actor) *MessageView {
	view := &MessageView{
		MessageID:        msg.ID,
		UID:              msg.SenderID,
		Message:          msg.Body,
		FormattedMessage: s.mentions.FormatForDisplay(ctx, msg.Body),
		Created:          msg.CreatedAt.Format("15:04"),
		CreatedTimestamp: msg.CreatedAt.Unix(),
		IsEdited:         msg.IsEdited(),
		CanEdit:          CanEdit(actor, msg),
		CanDelete:        CanDelete(actor, msg, room),
	}
	if msg.EditedAt != nil {
		view.EditedAt = msg.EditedAt.Unix()
	}
	if sender != nil {
		view.Name = sender.DisplayName
		view.Avatar = sender.AvatarURL
	}
	return view
}

// buildViews resolves senders in one batch instead of per message.
func (s *Service) buildViews(ctx context.Context, msgs []models.Message, room *models.Room, actor Actor) ([]MessageView, error) {
	views := make([]MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(msgs))
	seen := make(map[uuid.UUID]bool, len(msgs))
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}

	senders := make(map[uuid.UUID]*models.User, len(ids))
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		// A missing sender name is better than a failed poll.
		s.logger.Warn("sender lookup failed", zap.Error(err))
	}
	for i := range users {
		senders[users[i].ID] = &users[i]
	}

	for i := range msgs {
		views = append(views, *s.buildView(ctx, &msgs[i], senders[msgs[i].SenderID], room, actor))
	}
	return views, nil
}
