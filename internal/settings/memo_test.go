package settings

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/store/cache"
)

func TestMemo_ConcurrentLoadsShareOneCall(t *testing.T) {
	m := NewMemo(cache.NewMemoryCache(), time.Minute, nil)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, bool, error) {
		calls.Add(1)
		<-release
		return "value", true, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := remember(ctx, m, "k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestMemo_InvalidateDuringLoadDropsStaleResult(t *testing.T) {
	m := NewMemo(cache.NewMemoryCache(), 0, nil)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string)
	go func() {
		v, _ := remember(ctx, m, "k", func(context.Context) (string, bool, error) {
			close(started)
			<-release
			return "stale", true, nil
		})
		done <- v
	}()

	<-started
	m.Invalidate(ctx, "k")
	close(release)
	assert.Equal(t, "stale", <-done)

	v, err := remember(ctx, m, "k", func(context.Context) (string, bool, error) {
		return "fresh", true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestMemo_UncacheableResult(t *testing.T) {
	m := NewMemo(nil, 0, nil)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) (int, bool, error) {
		calls.Add(1)
		return 1, false, nil
	}
	_, _ = remember(ctx, m, "k", load)
	_, _ = remember(ctx, m, "k", load)
	assert.Equal(t, int32(2), calls.Load())
}
