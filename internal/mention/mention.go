// Package mention implements @username extraction, notification
// dispatch, and display formatting for chat message bodies.
package mention

import (
	"context"
	"fmt"
	"html"
	"regexp"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mentionRe matches "@" followed by the username charset. Punctuation
// such as a trailing comma is not part of the token; a trailing "-" is,
// because "-" is a legal username character.
var mentionRe = regexp.MustCompile(`@([a-zA-Z0-9\-_]+)`)

// notificationPreviewLen is how much of the message body a notification
// carries, in runes.
const notificationPreviewLen = 100

// UserResolver is the slice of user lookup the mention pipeline needs.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Notifier delivers a mention notification. Delivery is best-effort:
// implementations may fail, and the caller only logs those failures.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// MentionedUser is one successfully resolved, notified mention.
type MentionedUser struct {
	UID  uuid.UUID `json:"uid"`
	Name string    `json:"name"`
}

type Service struct {
	users    UserResolver
	notifier Notifier
	logger   *zap.Logger
}

func NewService(users UserResolver, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{users: users, notifier: notifier, logger: logger}
}

// Extract returns the deduplicated candidate usernames in text, in
// first-occurrence order. Candidates are not yet resolved to users.
func Extract(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Process resolves every candidate in text and notifies each resolved
// user other than the sender. Unresolvable names and self-mentions are
// skipped silently. Notification failures are logged and swallowed;
// a broken notifier must never fail the send that triggered it.
func (s *Service) Process(ctx context.Context, text string, roomID uuid.UUID, senderID uuid.UUID, messageID int64) []MentionedUser {
	notified := make([]MentionedUser, 0)

	for _, name := range Extract(text) {
		user, err := s.users.GetByUsername(ctx, name)
		if err != nil {
			s.logger.Warn("mention lookup failed",
				zap.String("username", name), zap.Error(err))
			continue
		}
		if user == nil || user.ID == senderID {
			continue
		}

		n := &models.Notification{
			UserID:    user.ID,
			SenderID:  senderID,
			RoomID:    roomID,
			MessageID: messageID,
			Body:      truncate(text, notificationPreviewLen),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("mention notification failed",
				zap.String("username", name),
				zap.Int64("message_id", messageID),
				zap.Error(err))
			// Still report the mention: the user was resolved, only
			// delivery failed.
		}

		notified = append(notified, MentionedUser{UID: user.ID, Name: user.DisplayName})
	}

	return notified
}

// FormatForDisplay HTML-escapes the whole text, then wraps each
// resolvable @name in a highlighting span carrying the user id.
// Unresolvable names stay as plain escaped text.
func (s *Service) FormatForDisplay(ctx context.Context, text string) string {
	// Escape first so the regex runs over already-safe text; the
	// username charset is untouched by escaping.
	escaped := html.EscapeString(text)

	cache := make(map[string]*models.User)

	return mentionRe.ReplaceAllStringFunc(escaped, func(match string) string {
		name := match[1:]
		user, ok := cache[name]
		if !ok {
			var err error
			user, err = s.users.GetByUsername(ctx, name)
			if err != nil {
				s.logger.Warn("mention lookup failed",
					zap.String("username", name), zap.Error(err))
				user = nil
			}
			cache[name] = user
		}
		if user == nil {
			return match
		}
		return fmt.Sprintf(`<span class="user-mention" data-uid="%s" title="%s">@%s</span>`,
			user.ID, html.EscapeString(user.DisplayName), name)
	})
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
