package mention

import (
	"context"
	"errors"
	"testing"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver struct {
	users map[string]*models.User
	err   error
}

func (s *stubResolver) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[username], nil
}

type recordingNotifier struct {
	sent []*models.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification *models.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func user(name string) *models.User {
	return &models.User{ID: uuid.New(), Username: name, DisplayName: name}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "dedup and charset",
			text: "hello @bob and @bob again, @_x9-",
			want: []string{"bob", "_x9-"},
		},
		{
			name: "punctuation not part of token",
			text: "hey @alice, how are you?",
			want: []string{"alice"},
		},
		{
			name: "no mentions",
			text: "plain text",
			want: []string{},
		},
		{
			name: "bare at sign",
			text: "meet @ noon",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestProcessNotifiesResolvedUsers(t *testing.T) {
	bob := user("bob")
	resolver := &stubResolver{users: map[string]*models.User{"bob": bob}}
	notifier := &recordingNotifier{}
	svc := NewService(resolver, notifier, zap.NewNop())

	sender := uuid.New()
	roomID := uuid.New()
	mentioned := svc.Process(context.Background(), "ping @bob and @ghost", roomID, sender, 42)

	require.Len(t, mentioned, 1)
	assert.Equal(t, bob.ID, mentioned[0].UID)

	require.Len(t, notifier.sent, 1)
	n := notifier.sent[0]
	assert.Equal(t, bob.ID, n.UserID)
	assert.Equal(t, sender, n.SenderID)
	assert.Equal(t, roomID, n.RoomID)
	assert.Equal(t, int64(42), n.MessageID)
	assert.Equal(t, "ping @bob and @ghost", n.Body)
}

func TestProcessSkipsSelfMention(t *testing.T) {
	alice := user("alice")
	resolver := &stubResolver{users: map[string]*models.User{"alice": alice}}
	notifier := &recordingNotifier{}
	svc := NewService(resolver, notifier, zap.NewNop())

	mentioned := svc.Process(context.Background(), "note to self @alice", uuid.New(), alice.ID, 1)

	assert.Empty(t, mentioned)
	assert.Empty(t, notifier.sent)
}

func TestProcessTruncatesNotificationBody(t *testing.T) {
	bob := user("bob")
	resolver := &stubResolver{users: map[string]*models.User{"bob": bob}}
	notifier := &recordingNotifier{}
	svc := NewService(resolver, notifier, zap.NewNop())

	long := "@bob "
	for len(long) < 150 {
		long += "x"
	}
	svc.Process(context.Background(), long, uuid.New(), uuid.New(), 1)

	require.Len(t, notifier.sent, 1)
	body := notifier.sent[0].Body
	assert.Len(t, []rune(body), notificationPreviewLen+3)
	assert.Equal(t, "...", body[len(body)-3:])
}

func TestProcessSurvivesNotifierFailure(t *testing.T) {
	bob := user("bob")
	resolver := &stubResolver{users: map[string]*models.User{"bob": bob}}
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := NewService(resolver, notifier, zap.NewNop())

	// The mention is still reported even though delivery failed.
	mentioned := svc.Process(context.Background(), "hi @bob", uuid.New(), uuid.New(), 1)
	require.Len(t, mentioned, 1)
}

func TestProcessSurvivesResolverFailure(t *testing.T) {
	resolver := &stubResolver{err: errors.New("db down")}
	notifier := &recordingNotifier{}
	svc := NewService(resolver, notifier, zap.NewNop())

	mentioned := svc.Process(context.Background(), "hi @bob", uuid.New(), uuid.New(), 1)
	assert.Empty(t, mentioned)
}

func TestFormatForDisplay(t *testing.T) {
	bob := user("bob")
	resolver := &stubResolver{users: map[string]*models.User{"bob": bob}}
	svc := NewService(resolver, &recordingNotifier{}, zap.NewNop())

	got := svc.FormatForDisplay(context.Background(), `<b>hi</b> @bob & @ghost`)

	assert.Contains(t, got, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, got, `<span class="user-mention" data-uid="`+bob.ID.String()+`"`)
	assert.Contains(t, got, "&amp;")
	// Unresolvable mention stays plain escaped text.
	assert.Contains(t, got, "@ghost")
	assert.NotContains(t, got, `data-uid="">`)
}

func TestFormatForDisplayEscapesDisplayName(t *testing.T) {
	evil := &models.User{ID: uuid.New(), Username: "eve", DisplayName: `<img src=x>`}
	resolver := &stubResolver{users: map[string]*models.User{"eve": evil}}
	svc := NewService(resolver, &recordingNotifier{}, zap.NewNop())

	got := svc.FormatForDisplay(context.Background(), "hi @eve")

	assert.NotContains(t, got, "<img")
	assert.Contains(t, got, "&lt;img src=x&gt;")
}
