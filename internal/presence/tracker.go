// Package presence tracks who is in a room, who is online elsewhere,
// and who is typing. State lives in Redis sorted sets keyed by room,
// member = user id, score = unix seconds of last activity. Upserts are
// last-write-wins; stale members are trimmed lazily on read rather
// than by a background job.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Activity windows. A user is "active" in a room if they heartbeated or
// posted there within RoomActiveWindow; "online" with any site activity
// within OnlineWindow; listed at all only if seen within SeenWindow.
const (
	RoomActiveWindow = 3 * time.Minute
	OnlineWindow     = 5 * time.Minute
	SeenWindow       = 24 * time.Hour

	// TypingTTL is how long a typing indicator survives without a
	// refresh; covers clients that vanish without sending stop.
	TypingTTL = 5 * time.Second
)

type Tracker struct {
	client *redis.Client
	now    func() time.Time
}

func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client, now: time.Now}
}

func roomKey(roomID uuid.UUID) string   { return "presence:room:" + roomID.String() }
func typingKey(roomID uuid.UUID) string { return "typing:" + roomID.String() }

const siteKey = "presence:site"

// Heartbeat upserts the user's last activity for the room and for the
// site as a whole. Concurrent heartbeats from the same user are
// idempotent: the newest timestamp wins.
func (t *Tracker) Heartbeat(ctx context.Context, userID, roomID uuid.UUID) error {
	now := float64(t.now().Unix())
	member := userID.String()

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, roomKey(roomID), redis.Z{Score: now, Member: member})
	pipe.ZAdd(ctx, siteKey, redis.Z{Score: now, Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// TouchSite records site-wide activity without tying it to a room.
// Login and authenticated API traffic land here, so a user counts as
// online before they ever join a room.
func (t *Tracker) TouchSite(ctx context.Context, userID uuid.UUID) error {
	err := t.client.ZAdd(ctx, siteKey, redis.Z{
		Score:  float64(t.now().Unix()),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("touch site presence: %w", err)
	}
	return nil
}

// ActiveInRoom returns users with room activity inside RoomActiveWindow.
func (t *Tracker) ActiveInRoom(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	return t.membersSince(ctx, roomKey(roomID), t.now().Add(-RoomActiveWindow))
}

// Online returns users with any site activity inside OnlineWindow.
func (t *Tracker) Online(ctx context.Context) ([]uuid.UUID, error) {
	return t.membersSince(ctx, siteKey, t.now().Add(-OnlineWindow))
}

// SeenRecently returns last-seen times for every user with site
// activity inside SeenWindow, trimming older entries as a side effect.
func (t *Tracker) SeenRecently(ctx context.Context) (map[uuid.UUID]time.Time, error) {
	cutoff := t.now().Add(-SeenWindow)

	// Lazy GC: drop everything older than the widest window we ever
	// query, then read the rest.
	if err := t.client.ZRemRangeByScore(ctx, siteKey, "-inf", scoreBefore(cutoff)).Err(); err != nil {
		return nil, fmt.Errorf("presence trim: %w", err)
	}

	entries, err := t.client.ZRangeByScoreWithScores(ctx, siteKey, &redis.ZRangeBy{
		Min: score(cutoff),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence read: %w", err)
	}

	seen := make(map[uuid.UUID]time.Time, len(entries))
	for _, entry := range entries {
		id, err := uuid.Parse(entry.Member.(string))
		if err != nil {
			continue
		}
		seen[id] = time.Unix(int64(entry.Score), 0)
	}
	return seen, nil
}

// StartTyping upserts a typing indicator for the user in the room.
func (t *Tracker) StartTyping(ctx context.Context, userID, roomID uuid.UUID) error {
	err := t.client.ZAdd(ctx, typingKey(roomID), redis.Z{
		Score:  float64(t.now().Unix()),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("start typing: %w", err)
	}
	return nil
}

// StopTyping removes the indicator. Stopping when not typing is a no-op.
func (t *Tracker) StopTyping(ctx context.Context, userID, roomID uuid.UUID) error {
	if err := t.client.ZRem(ctx, typingKey(roomID), userID.String()).Err(); err != nil {
		return fmt.Errorf("stop typing: %w", err)
	}
	return nil
}

// Typing returns users whose indicator is younger than TypingTTL,
// sweeping expired ones. A client that went silent without an explicit
// stop disappears here after the TTL.
func (t *Tracker) Typing(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	cutoff := t.now().Add(-TypingTTL)
	if err := t.client.ZRemRangeByScore(ctx, typingKey(roomID), "-inf", scoreBefore(cutoff)).Err(); err != nil {
		return nil, fmt.Errorf("typing sweep: %w", err)
	}
	return t.membersSince(ctx, typingKey(roomID), cutoff)
}

func (t *Tracker) membersSince(ctx context.Context, key string, cutoff time.Time) ([]uuid.UUID, error) {
	members, err := t.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: score(cutoff),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence range %s: %w", key, err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func score(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// scoreBefore is an exclusive upper bound: "(N" in Redis range syntax.
func scoreBefore(t time.Time) string {
	return "(" + score(t)
}
