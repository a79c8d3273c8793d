// Package render computes the display plan for a message list: where
// date dividers go and which consecutive messages collapse into a
// group. Pure functions so clients on any transport agree on layout.
package render

import (
	"time"

	"github.com/Magnec/chatspace/internal/chat"
)

// GroupWindow is the maximum gap between two messages from the same
// sender for the second to render as a continuation.
const GroupWindow = 5 * time.Minute

// Item is one message plus its layout decisions.
type Item struct {
	chat.MessageView

	// ShowDateDivider renders a divider with DateLabel above this
	// message.
	ShowDateDivider bool   `json:"show_date_divider"`
	DateLabel       string `json:"date_label,omitempty"`

	// Grouped suppresses the avatar and sender name; the message is a
	// continuation of the one above it.
	Grouped bool `json:"grouped"`
}

// Plan lays out messages for display. Messages must be in ascending
// display order. now anchors the Today/Yesterday labels; timestamps
// are interpreted in now's location.
func Plan(views []chat.MessageView, now time.Time) []Item {
	items := make([]Item, 0, len(views))
	loc := now.Location()

	for i, v := range views {
		item := Item{MessageView: v}
		ts := time.Unix(v.CreatedTimestamp, 0).In(loc)

		if i == 0 || !sameDay(ts, time.Unix(views[i-1].CreatedTimestamp, 0).In(loc)) {
			item.ShowDateDivider = true
			item.DateLabel = DateLabel(ts, now)
		}

		// A divider always breaks the group.
		if !item.ShowDateDivider {
			prev := views[i-1]
			if prev.UID == v.UID && v.CreatedTimestamp-prev.CreatedTimestamp < int64(GroupWindow/time.Second) {
				item.Grouped = true
			}
		}

		items = append(items, item)
	}
	return items
}

// DateLabel names a day relative to now: "Today", "Yesterday", or the
// full date.
func DateLabel(t, now time.Time) string {
	switch {
	case sameDay(t, now):
		return "Today"
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return t.Format("January 2, 2006")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
