package chatspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresTokens(t *testing.T) {
	var sawAuth, sawCSRF string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/login":
			json.NewEncoder(w).Encode(map[string]any{
				"token":      "session-tok",
				"csrf_token": "csrf-tok",
				"user":       map[string]any{"username": "alice", "name": "Alice"},
			})
		case "/v1/rooms/general/heartbeat":
			sawAuth = r.Header.Get("Authorization")
			sawCSRF = r.Header.Get("X-CSRF-Token")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	user, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	require.NoError(t, c.Room("general").Heartbeat(context.Background()))
	assert.Equal(t, "Bearer session-tok", sawAuth)
	assert.Equal(t, "csrf-tok", sawCSRF)
}

func TestMutationRetriesOnceAfterCSRFRefresh(t *testing.T) {
	var sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/token":
			json.NewEncoder(w).Encode(map[string]string{"csrf_token": "fresh"})
		case "/v1/rooms/general/messages":
			sends.Add(1)
			if r.Header.Get("X-CSRF-Token") != "fresh" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"invalid token"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"message":{"message_id":1,"message":"hi"}}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("session"))
	view, err := c.Room("general").Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.MessageID)
	assert.Equal(t, int32(2), sends.Load(), "one failed attempt, one retry")
}

func TestGETDoesNotRetryOn403(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("session"))
	_, err := c.Room("general").Typing(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int32(1), gets.Load())
}

func TestMessagesParsesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("since"))
		w.Write([]byte(`{
			"messages": [
				{"message_id": 8, "message": "hello", "show_date_divider": true, "date_label": "Today"},
				{"message_id": 9, "message": "again", "grouped": true}
			],
			"last_id": 9
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("session"))
	views, err := c.Room("general").Messages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(8), views[0].MessageID)
	assert.Equal(t, "again", views[1].Message)

	plan, err := c.Room("general").Plan(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.True(t, plan[0].ShowDateDivider)
	assert.True(t, plan[1].Grouped)
}

func TestRateLimitedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"too many messages, slow down"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("session"))
	_, err := c.Room("general").Send(context.Background(), "spam")
	assert.True(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "slow down")
}
