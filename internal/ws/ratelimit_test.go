package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "burst slot %d", i)
	}
	assert.False(t, rl.allow(), "bucket exhausted")
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := newRateLimiter(100, 10*time.Millisecond)
	for rl.allow() {
	}

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.allow(), "tokens refill over time")
}

func TestRateLimiter_BadInputsClamped(t *testing.T) {
	rl := newRateLimiter(0, 0)
	assert.True(t, rl.allow())
}
