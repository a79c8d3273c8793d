// Package poller implements the client-side polling engine: an
// adaptive interval state machine and a session that drives the four
// recurring requests (messages, roster, heartbeat, typing) against a
// backend.
package poller

import "time"

// State is the polling speed.
type State int

const (
	// Fast is the burst rate right after message activity.
	Fast State = iota
	// Normal is the steady conversational rate.
	Normal
	// Slow is for rooms gone quiet.
	Slow
	// Idle is the floor for abandoned rooms.
	Idle
)

// Poll intervals per state. A hidden tab always polls at
// BackgroundInterval regardless of state.
const (
	FastInterval       = 300 * time.Millisecond
	NormalInterval     = 500 * time.Millisecond
	SlowInterval       = time.Second
	IdleInterval       = 2 * time.Second
	BackgroundInterval = 2 * time.Second
)

// EscalateAfter is how many consecutive empty polls are tolerated
// before the interval backs off.
const EscalateAfter = 10

// Quiet-time thresholds for choosing the backed-off state.
const (
	quietNormal = 10 * time.Second
	quietSlow   = 30 * time.Second
)

// Backoff tracks poll outcomes and picks the next interval. Not safe
// for concurrent use; Session serializes access.
type Backoff struct {
	state        State
	emptyPolls   int
	lastActivity time.Time
	visible      bool
}

func NewBackoff(now time.Time) *Backoff {
	return &Backoff{state: Fast, lastActivity: now, visible: true}
}

// Observe records a poll result. Any message snaps back to Fast and
// resets the empty counter; a run of empty polls beyond EscalateAfter
// backs off based on how long the room has been quiet.
func (b *Backoff) Observe(gotMessages bool, now time.Time) {
	if gotMessages {
		b.state = Fast
		b.emptyPolls = 0
		b.lastActivity = now
		return
	}

	b.emptyPolls++
	if b.emptyPolls <= EscalateAfter {
		return
	}

	quiet := now.Sub(b.lastActivity)
	switch {
	case quiet < quietNormal:
		b.state = Normal
	case quiet <= quietSlow:
		b.state = Slow
	default:
		b.state = Idle
	}
}

// SetVisible flags whether the client tab is visible. Returning to
// visible resumes the state the machine was in; it does not reset it.
func (b *Backoff) SetVisible(visible bool) {
	b.visible = visible
}

func (b *Backoff) State() State { return b.state }

// Interval returns the delay before the next messages poll.
func (b *Backoff) Interval() time.Duration {
	if !b.visible {
		return BackgroundInterval
	}
	switch b.state {
	case Fast:
		return FastInterval
	case Normal:
		return NormalInterval
	case Slow:
		return SlowInterval
	default:
		return IdleInterval
	}
}
