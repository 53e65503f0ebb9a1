package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerClient(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2, nil)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.allow("a"))
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }

	rl.allow("old")
	now = now.Add(time.Hour)
	rl.allow("fresh")

	rl.mu.Lock()
	rl.pruneLocked(now)
	_, oldKept := rl.clients["old"]
	_, freshKept := rl.clients["fresh"]
	rl.mu.Unlock()

	assert.False(t, oldKept)
	assert.True(t, freshKept)
}
