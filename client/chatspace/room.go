package chatspace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Magnec/chatspace/internal/chat"
	"github.com/Magnec/chatspace/internal/presence"
	"github.com/Magnec/chatspace/internal/render"
	"github.com/google/uuid"
)

// Room binds the client to one room by id or slug. It satisfies the
// polling engine's Backend interface, so a Room can be handed straight
// to a poller session.
type Room struct {
	client *Client
	ref    string
}

func (c *Client) Room(ref string) *Room {
	return &Room{client: c, ref: ref}
}

func (r *Room) path(suffix string) string {
	return "/v1/rooms/" + url.PathEscape(r.ref) + suffix
}

// Messages fetches past the cursor. since == 0 is the initial load.
func (r *Room) Messages(ctx context.Context, since int64) ([]chat.MessageView, error) {
	var resp struct {
		Messages []render.Item `json:"messages"`
		LastID   int64         `json:"last_id"`
	}
	path := r.path(fmt.Sprintf("/messages?since=%d", since))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	views := make([]chat.MessageView, 0, len(resp.Messages))
	for _, item := range resp.Messages {
		views = append(views, item.MessageView)
	}
	return views, nil
}

// Plan fetches past the cursor with the server's layout decisions
// attached.
func (r *Room) Plan(ctx context.Context, since int64) ([]render.Item, error) {
	var resp struct {
		Messages []render.Item `json:"messages"`
	}
	path := r.path(fmt.Sprintf("/messages?since=%d", since))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (r *Room) Send(ctx context.Context, body string) (*chat.MessageView, error) {
	var resp struct {
		Message chat.MessageView `json:"message"`
	}
	err := r.client.do(ctx, http.MethodPost, r.path("/messages"),
		map[string]string{"message": body}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (r *Room) Edit(ctx context.Context, messageID int64, body string) (*chat.MessageView, error) {
	var resp struct {
		Message chat.MessageView `json:"message"`
	}
	path := r.path(fmt.Sprintf("/messages/%d", messageID))
	if err := r.client.do(ctx, http.MethodPatch, path, map[string]string{"message": body}, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (r *Room) Delete(ctx context.Context, messageID int64) error {
	path := r.path(fmt.Sprintf("/messages/%d", messageID))
	return r.client.do(ctx, http.MethodDelete, path, nil, nil)
}

// ClearHistory wipes the room and returns how many messages went.
func (r *Room) ClearHistory(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := r.client.do(ctx, http.MethodDelete, r.path("/messages?confirm=1"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (r *Room) Users(ctx context.Context) ([]presence.RoomUser, presence.Stats, error) {
	var resp struct {
		Users []presence.RoomUser `json:"users"`
		Stats presence.Stats      `json:"stats"`
	}
	if err := r.client.do(ctx, http.MethodGet, r.path("/users"), nil, &resp); err != nil {
		return nil, presence.Stats{}, err
	}
	return resp.Users, resp.Stats, nil
}

func (r *Room) Typing(ctx context.Context) ([]string, error) {
	var resp struct {
		Typing []string `json:"typing"`
	}
	if err := r.client.do(ctx, http.MethodGet, r.path("/typing"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Typing, nil
}

func (r *Room) SetTyping(ctx context.Context, typing bool) error {
	return r.client.do(ctx, http.MethodPost, r.path("/typing"),
		map[string]bool{"typing": typing}, nil)
}

func (r *Room) Heartbeat(ctx context.Context) error {
	return r.client.do(ctx, http.MethodPost, r.path("/heartbeat"), nil, nil)
}

// Suggestion is one @mention autocomplete candidate.
type Suggestion struct {
	UID      uuid.UUID `json:"uid"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
}

func (r *Room) MentionSuggestions(ctx context.Context, query string) ([]Suggestion, error) {
	var resp struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	path := r.path("/mention-suggestions?q=" + url.QueryEscape(query))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}
