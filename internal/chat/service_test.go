package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Magnec/chatspace/internal/mention"
	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// In-memory message store with bigserial-style ids.
type memMessages struct {
	nextID int64
	rows   map[int64]*models.Message
}

func newMemMessages() *memMessages {
	return &memMessages{nextID: 1, rows: make(map[int64]*models.Message)}
}

func (m *memMessages) Create(_ context.Context, roomID, senderID uuid.UUID, body string) (*models.Message, error) {
	msg := &models.Message{
		ID:        m.nextID,
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		Status:    models.MessageActive,
		CreatedAt: time.Now(),
	}
	m.nextID++
	m.rows[msg.ID] = msg
	out := *msg
	return &out, nil
}

func (m *memMessages) GetByID(_ context.Context, id int64) (*models.Message, error) {
	msg, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	out := *msg
	return &out, nil
}

func (m *memMessages) ListRecent(_ context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	active := m.active(roomID)
	sort.Slice(active, func(i, j int) bool { return active[i].ID > active[j].ID })
	if len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (m *memMessages) ListSince(_ context.Context, roomID uuid.UUID, sinceID int64, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.active(roomID) {
		if msg.ID > sinceID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) UpdateBody(_ context.Context, id int64, body string, editorID uuid.UUID) (*models.Message, error) {
	msg, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	msg.Body = body
	msg.EditedAt = &now
	msg.EditedBy = &editorID
	out := *msg
	return &out, nil
}

func (m *memMessages) MarkDeleted(_ context.Context, id int64, actorID uuid.UUID) error {
	msg, ok := m.rows[id]
	if !ok {
		return errors.New("no rows")
	}
	now := time.Now()
	msg.Status = models.MessageDeleted
	msg.EditedAt = &now
	msg.EditedBy = &actorID
	return nil
}

func (m *memMessages) DeleteAllInRoom(_ context.Context, roomID uuid.UUID) (int64, error) {
	var n int64
	for id, msg := range m.rows {
		if msg.RoomID == roomID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memMessages) RecentSenderIDs(_ context.Context, roomID uuid.UUID, since time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, msg := range m.active(roomID) {
		if !msg.CreatedAt.Before(since) && !seen[msg.SenderID] {
			seen[msg.SenderID] = true
			out = append(out, msg.SenderID)
		}
	}
	return out, nil
}

func (m *memMessages) active(roomID uuid.UUID) []models.Message {
	var out []models.Message
	for _, msg := range m.rows {
		if msg.RoomID == roomID && msg.Status == models.MessageActive {
			out = append(out, *msg)
		}
	}
	return out
}

type stubRooms struct{ room *models.Room }

func (s *stubRooms) GetByID(_ context.Context, id uuid.UUID) (*models.Room, error) {
	if s.room != nil && s.room.ID == id {
		return s.room, nil
	}
	return nil, nil
}

func (s *stubRooms) GetBySlug(_ context.Context, slug string) (*models.Room, error) {
	if s.room != nil && s.room.Slug != nil && *s.room.Slug == slug {
		return s.room, nil
	}
	return nil, nil
}

type stubUsers struct{ users map[uuid.UUID]*models.User }

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

func (s *stubUsers) GetByUsername(_ context.Context, name string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == name {
			return u, nil
		}
	}
	return nil, nil
}

func (s *stubUsers) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *stubUsers) ListRecentPosters(context.Context, uuid.UUID, time.Time, string) ([]models.User, error) {
	return nil, nil
}

type stubMentions struct {
	processed []string
	result    []mention.MentionedUser
}

func (s *stubMentions) Process(_ context.Context, text string, _, _ uuid.UUID, _ int64) []mention.MentionedUser {
	s.processed = append(s.processed, text)
	return s.result
}

func (s *stubMentions) FormatForDisplay(_ context.Context, text string) string {
	return strings.ToUpper(text)
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (s *stubLimiter) Allow(context.Context, uuid.UUID) (bool, error) { return s.allowed, s.err }

type stubPresence struct {
	beats int
	err   error
}

func (s *stubPresence) Heartbeat(context.Context, uuid.UUID, uuid.UUID) error {
	s.beats++
	return s.err
}

type fixture struct {
	svc      *Service
	messages *memMessages
	mentions *stubMentions
	limiter  *stubLimiter
	presence *stubPresence
	room     *models.Room
	owner    *models.User
	member   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	slug := "general"
	owner := &models.User{ID: uuid.New(), Username: "alice", DisplayName: "Alice"}
	member := &models.User{ID: uuid.New(), Username: "bob", DisplayName: "Bob", AvatarURL: "http://a/b.png"}
	room := &models.Room{ID: uuid.New(), Slug: &slug, Title: "General", OwnerID: owner.ID}

	f := &fixture{
		messages: newMemMessages(),
		mentions: &stubMentions{},
		limiter:  &stubLimiter{allowed: true},
		presence: &stubPresence{},
		room:     room,
		owner:    owner,
		member:   member,
	}
	users := &stubUsers{users: map[uuid.UUID]*models.User{owner.ID: owner, member.ID: member}}
	f.svc = NewService(f.messages, &stubRooms{room: room}, users, f.mentions, f.limiter, f.presence, zap.NewNop())
	return f
}

func (f *fixture) actor(u *models.User) Actor { return Actor{ID: u.ID} }

func TestResolveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byID, err := f.svc.ResolveRoom(ctx, f.room.ID.String())
	require.NoError(t, err)
	assert.Equal(t, f.room.ID, byID.ID)

	bySlug, err := f.svc.ResolveRoom(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, f.room.ID, bySlug.ID)

	_, err = f.svc.ResolveRoom(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Send(ctx, f.room, f.actor(f.member), "  hello @alice  ")
	require.NoError(t, err)

	assert.Equal(t, "hello @alice", view.Message, "body is trimmed before storage")
	assert.Equal(t, "HELLO @ALICE", view.FormattedMessage)
	assert.Equal(t, "Bob", view.Name)
	assert.True(t, view.CanEdit)
	assert.True(t, view.CanDelete)
	assert.False(t, view.IsEdited)
	assert.Equal(t, []string{"hello @alice"}, f.mentions.processed)
	assert.Equal(t, 1, f.presence.beats, "sending counts as presence")
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.room, f.actor(f.member), "   \n\t ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Send(ctx, f.room, f.actor(f.member), strings.Repeat("x", MaxBodyLen+1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Exactly at the cap is fine.
	_, err = f.svc.Send(ctx, f.room, f.actor(f.member), strings.Repeat("x", MaxBodyLen))
	assert.NoError(t, err)
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.allowed = false

	_, err := f.svc.Send(context.Background(), f.room, f.actor(f.member), "hi")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, f.mentions.processed, "rate limit check runs before anything else")
}

func TestSendLimiterFailureAllows(t *testing.T) {
	f := newFixture(t)
	f.limiter.allowed = false
	f.limiter.err = errors.New("redis down")

	_, err := f.svc.Send(context.Background(), f.room, f.actor(f.member), "hi")
	assert.NoError(t, err)
}

func TestSendSurvivesPresenceFailure(t *testing.T) {
	f := newFixture(t)
	f.presence.err = errors.New("redis down")

	_, err := f.svc.Send(context.Background(), f.room, f.actor(f.member), "hi")
	assert.NoError(t, err)
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, f.room, f.actor(f.member), "first draft")
	require.NoError(t, err)
	f.mentions.processed = nil

	view, err := f.svc.Edit(ctx, f.room, sent.MessageID, f.actor(f.member), "second draft @alice")
	require.NoError(t, err)

	assert.Equal(t, sent.MessageID, view.MessageID, "id survives the edit")
	assert.Equal(t, "second draft @alice", view.Message)
	assert.True(t, view.IsEdited)
	assert.NotZero(t, view.EditedAt)
	assert.Empty(t, f.mentions.processed, "edits do not re-notify mentions")
}

func TestEditForbiddenForOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, f.room, f.actor(f.member), "mine")
	require.NoError(t, err)

	// Even the room owner and a site admin cannot edit someone else's
	// message.
	_, err = f.svc.Edit(ctx, f.room, sent.MessageID, f.actor(f.owner), "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Edit(ctx, f.room, sent.MessageID, Actor{ID: uuid.New(), IsAdmin: true}, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEditMissingMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Edit(context.Background(), f.room, 999, f.actor(f.member), "text")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	send := func() int64 {
		v, err := f.svc.Send(ctx, f.room, f.actor(f.member), "target")
		require.NoError(t, err)
		return v.MessageID
	}

	// Author may delete.
	assert.NoError(t, f.svc.Delete(ctx, f.room, send(), f.actor(f.member)))
	// Room owner may delete.
	assert.NoError(t, f.svc.Delete(ctx, f.room, send(), f.actor(f.owner)))
	// Site admin may delete.
	assert.NoError(t, f.svc.Delete(ctx, f.room, send(), Actor{ID: uuid.New(), IsAdmin: true}))
	// A random member may not.
	err := f.svc.Delete(ctx, f.room, send(), Actor{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteIsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, f.room, f.actor(f.member), "gone soon")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.room, sent.MessageID, f.actor(f.member)))

	// Gone from fetches.
	views, err := f.svc.Fetch(ctx, f.room, f.actor(f.member), 0)
	require.NoError(t, err)
	assert.Empty(t, views)

	// Gone from incremental polls below the cursor too.
	views, err = f.svc.Fetch(ctx, f.room, f.actor(f.member), sent.MessageID-1)
	require.NoError(t, err)
	assert.Empty(t, views)

	// Row still present for audit.
	row, err := f.messages.GetByID(ctx, sent.MessageID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, models.MessageDeleted, row.Status)
}

func TestFetchInitialAscending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		_, err := f.svc.Send(ctx, f.room, f.actor(f.member), body)
		require.NoError(t, err)
	}

	views, err := f.svc.Fetch(ctx, f.room, f.actor(f.owner), 0)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "one", views[0].Message)
	assert.Equal(t, "three", views[2].Message)
	assert.True(t, views[0].MessageID < views[1].MessageID)

	// Viewer is the room owner: delete yes, edit no.
	assert.False(t, views[0].CanEdit)
	assert.True(t, views[0].CanDelete)
}

func TestFetchInitialCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < InitialPageSize+10; i++ {
		_, err := f.svc.Send(ctx, f.room, f.actor(f.member), "m")
		require.NoError(t, err)
	}

	views, err := f.svc.Fetch(ctx, f.room, f.actor(f.member), 0)
	require.NoError(t, err)
	require.Len(t, views, InitialPageSize)
	// The newest messages win; the oldest ten fall off.
	assert.Equal(t, int64(11), views[0].MessageID)
}

func TestFetchIncremental(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var cursor int64
	for i := 0; i < 5; i++ {
		v, err := f.svc.Send(ctx, f.room, f.actor(f.member), "m")
		require.NoError(t, err)
		if i == 2 {
			cursor = v.MessageID
		}
	}

	views, err := f.svc.Fetch(ctx, f.room, f.actor(f.member), cursor)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Greater(t, views[0].MessageID, cursor)

	// Nothing past the newest id: empty batch, not an error.
	views, err = f.svc.Fetch(ctx, f.room, f.actor(f.member), views[1].MessageID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestFetchIncrementalCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < IncrementalPageSize+5; i++ {
		_, err := f.svc.Send(ctx, f.room, f.actor(f.member), "burst")
		require.NoError(t, err)
	}

	capped, err := f.svc.Fetch(ctx, f.room, f.actor(f.member), 1)
	require.NoError(t, err)
	assert.Len(t, capped, IncrementalPageSize, "burst beyond the cap is truncated")
	// The truncated batch starts right after the cursor; the remainder
	// comes on the next poll.
	assert.Equal(t, int64(2), capped[0].MessageID)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Send(ctx, f.room, f.actor(f.member), "m")
		require.NoError(t, err)
	}

	_, err := f.svc.ClearHistory(ctx, f.room, f.actor(f.member))
	assert.ErrorIs(t, err, ErrForbidden)

	count, err := f.svc.ClearHistory(ctx, f.room, f.actor(f.owner))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	views, err := f.svc.Fetch(ctx, f.room, f.actor(f.member), 0)
	require.NoError(t, err)
	assert.Empty(t, views)
}
