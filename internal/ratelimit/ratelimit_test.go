package ratelimit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBucketKeyRollsOverWithWindow(t *testing.T) {
	uid := uuid.New()
	base := time.Unix(1_700_000_040, 0) // start of a 60s bucket

	sameWindow := bucketKey(uid, base.Add(59*time.Second), time.Minute)
	nextWindow := bucketKey(uid, base.Add(60*time.Second), time.Minute)

	assert.Equal(t, bucketKey(uid, base, time.Minute), sameWindow)
	assert.NotEqual(t, sameWindow, nextWindow)
}

func TestWithinCapBoundary(t *testing.T) {
	assert.True(t, withinCap(1, DefaultLimit))
	assert.True(t, withinCap(int64(DefaultLimit), DefaultLimit), "the 20th send in a window is accepted")
	assert.False(t, withinCap(int64(DefaultLimit)+1, DefaultLimit), "the 21st send in a window is rejected")
}

func TestBucketKeyIsPerUser(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t,
		bucketKey(uuid.New(), now, time.Minute),
		bucketKey(uuid.New(), now, time.Minute),
	)
}
