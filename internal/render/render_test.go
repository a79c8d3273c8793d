package render

import (
	"testing"
	"time"

	"github.com/Magnec/chatspace/internal/chat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(uid uuid.UUID, at time.Time) chat.MessageView {
	return chat.MessageView{UID: uid, CreatedTimestamp: at.Unix()}
}

func TestPlanGrouping(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	alice := uuid.New()
	bob := uuid.New()

	items := Plan([]chat.MessageView{
		view(alice, now.Add(-10*time.Minute)),
		view(alice, now.Add(-9*time.Minute)),  // same sender, 1m gap: grouped
		view(alice, now.Add(-3*time.Minute)),  // same sender, 6m gap: new group
		view(bob, now.Add(-2*time.Minute)),    // sender change: new group
		view(alice, now.Add(-1*time.Minute)),  // sender change again
	}, now)

	require.Len(t, items, 5)
	assert.False(t, items[0].Grouped)
	assert.True(t, items[1].Grouped)
	assert.False(t, items[2].Grouped)
	assert.False(t, items[3].Grouped)
	assert.False(t, items[4].Grouped)
}

func TestPlanDateDividers(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	u := uuid.New()

	items := Plan([]chat.MessageView{
		view(u, now.AddDate(0, 0, -3)),
		view(u, now.AddDate(0, 0, -1)),
		view(u, now.AddDate(0, 0, -1).Add(time.Hour)),
		view(u, now.Add(-time.Hour)),
	}, now)

	require.Len(t, items, 4)
	assert.True(t, items[0].ShowDateDivider)
	assert.Equal(t, "March 7, 2026", items[0].DateLabel)
	assert.True(t, items[1].ShowDateDivider)
	assert.Equal(t, "Yesterday", items[1].DateLabel)
	assert.False(t, items[2].ShowDateDivider)
	assert.True(t, items[3].ShowDateDivider)
	assert.Equal(t, "Today", items[3].DateLabel)
}

// Same sender within the window but across midnight: the divider wins
// and the group breaks.
func TestPlanDividerBreaksGroup(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	u := uuid.New()
	beforeMidnight := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	afterMidnight := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)

	items := Plan([]chat.MessageView{view(u, beforeMidnight), view(u, afterMidnight)}, now)

	require.Len(t, items, 2)
	assert.True(t, items[1].ShowDateDivider)
	assert.False(t, items[1].Grouped)
}

func TestPlanEmpty(t *testing.T) {
	assert.Empty(t, Plan(nil, time.Now()))
}
