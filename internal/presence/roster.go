package presence

import (
	"sort"
	"strings"
	"time"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
)

// Status of a user relative to a room. Precedence is
// active > online > offline; a user never appears with two statuses.
const (
	StatusActive  = "active"
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// RoomUser is one roster entry as returned to clients.
type RoomUser struct {
	UID        uuid.UUID `json:"uid"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar"`
	Status     string    `json:"status"`
	IsOnline   bool      `json:"is_online"`
	InRoom     bool      `json:"in_room"`
	LastAccess int64     `json:"last_access"`
}

// Stats summarizes a roster.
type Stats struct {
	Total           int `json:"total"`
	ActiveInRoom    int `json:"active_in_room"`
	OnlineElsewhere int `json:"online_elsewhere"`
	RecentlyActive  int `json:"recently_active"`
}

// BuildRoster classifies and sorts users for a room. Inputs:
//
//   - users: everyone seen site-wide within SeenWindow (nobody else is
//     listed at all)
//   - lastSeen: site-wide last activity per user
//   - inRoom: users with room activity within RoomActiveWindow
//     (heartbeats and recent message senders merged by the caller)
//   - online: users with site activity within OnlineWindow
//   - current: the requesting user, always active in their own view
//
// Sort order: active, then online, then offline; offline most recently
// seen first; ties by case-insensitive name.
func BuildRoster(users []models.User, lastSeen map[uuid.UUID]time.Time, inRoom, online map[uuid.UUID]bool, current uuid.UUID) ([]RoomUser, Stats) {
	roster := make([]RoomUser, 0, len(users))
	var stats Stats

	for _, u := range users {
		entry := RoomUser{
			UID:    u.ID,
			Name:   u.DisplayName,
			Avatar: u.AvatarURL,
		}
		if seen, ok := lastSeen[u.ID]; ok {
			entry.LastAccess = seen.Unix()
		}

		switch {
		case inRoom[u.ID] || u.ID == current:
			entry.Status = StatusActive
			stats.ActiveInRoom++
		case online[u.ID]:
			entry.Status = StatusOnline
			stats.OnlineElsewhere++
		default:
			entry.Status = StatusOffline
			stats.RecentlyActive++
		}
		entry.IsOnline = entry.Status != StatusOffline
		entry.InRoom = entry.Status == StatusActive

		roster = append(roster, entry)
	}
	stats.Total = len(roster)

	sort.SliceStable(roster, func(i, j int) bool {
		a, b := roster[i], roster[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		if a.Status == StatusOffline && a.LastAccess != b.LastAccess {
			return a.LastAccess > b.LastAccess
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	return roster, stats
}

func statusRank(status string) int {
	switch status {
	case StatusActive:
		return 0
	case StatusOnline:
		return 1
	default:
		return 2
	}
}
