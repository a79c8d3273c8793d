package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffStartsFast(t *testing.T) {
	b := NewBackoff(time.Now())
	assert.Equal(t, Fast, b.State())
	assert.Equal(t, FastInterval, b.Interval())
}

func TestBackoffToleratesShortEmptyRuns(t *testing.T) {
	now := time.Now()
	b := NewBackoff(now)

	for i := 0; i < EscalateAfter; i++ {
		now = now.Add(FastInterval)
		b.Observe(false, now)
	}
	assert.Equal(t, Fast, b.State(), "escalation needs more than %d empty polls", EscalateAfter)
}

func TestBackoffEscalatesByQuietTime(t *testing.T) {
	start := time.Now()

	// Eleven empty polls, 5s since last activity: Normal.
	b := NewBackoff(start)
	for i := 0; i < EscalateAfter+1; i++ {
		b.Observe(false, start.Add(5*time.Second))
	}
	assert.Equal(t, Normal, b.State())

	// Same run but 20s quiet: Slow.
	b = NewBackoff(start)
	for i := 0; i < EscalateAfter+1; i++ {
		b.Observe(false, start.Add(20*time.Second))
	}
	assert.Equal(t, Slow, b.State())

	// 35s quiet: Idle.
	b = NewBackoff(start)
	for i := 0; i < EscalateAfter+1; i++ {
		b.Observe(false, start.Add(35*time.Second))
	}
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, IdleInterval, b.Interval())
}

func TestBackoffKeepsEscalatingAsQuietGrows(t *testing.T) {
	start := time.Now()
	b := NewBackoff(start)

	now := start
	for i := 0; i < 60; i++ {
		now = now.Add(time.Second)
		b.Observe(false, now)
	}
	assert.Equal(t, Idle, b.State())
}

func TestBackoffMessageSnapsBackToFast(t *testing.T) {
	start := time.Now()
	b := NewBackoff(start)
	for i := 0; i < EscalateAfter+5; i++ {
		b.Observe(false, start.Add(time.Minute))
	}
	assert.Equal(t, Idle, b.State())

	b.Observe(true, start.Add(2*time.Minute))
	assert.Equal(t, Fast, b.State())

	// The empty counter restarted too.
	for i := 0; i < EscalateAfter; i++ {
		b.Observe(false, start.Add(2*time.Minute))
	}
	assert.Equal(t, Fast, b.State())
}

func TestBackoffBackgroundOverride(t *testing.T) {
	b := NewBackoff(time.Now())
	b.SetVisible(false)
	assert.Equal(t, BackgroundInterval, b.Interval())
	assert.Equal(t, Fast, b.State(), "hiding the tab does not change state")

	b.SetVisible(true)
	assert.Equal(t, FastInterval, b.Interval(), "visibility restores the prior rate")
}
