package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var out entry
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrCacheMiss)

	in := entry{Name: "a", Tags: []string{"x"}}
	require.NoError(t, c.Set(ctx, "k", in, 0))
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, in, out)

	// readers get copies
	out.Tags[0] = "changed"
	var again entry
	require.NoError(t, c.Get(ctx, "k", &again))
	assert.Equal(t, "x", again.Tags[0])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "forever", 2, 0))

	now = now.Add(2 * time.Minute)

	var v int
	assert.ErrorIs(t, c.Get(ctx, "short", &v), ErrCacheMiss)
	require.NoError(t, c.Get(ctx, "forever", &v))
	assert.Equal(t, 2, v)
}
