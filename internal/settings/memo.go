package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nulzo/misan-console/internal/store/cache"
)

// Memo keys.
const (
	memoSite    = "settings:site"
	memoPricing = "settings:pricing"
	memoPayment = "settings:payment"
	memoLLM     = "settings:llm"
)

// Memo caches loaded settings. Concurrent loads of one key share a single call,
// and a load that started before an Invalidate never writes its result back.
type Memo struct {
	cache  cache.CacheService
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

// NewMemo wraps c. A zero ttl keeps entries until invalidated.
func NewMemo(c cache.CacheService, ttl time.Duration, logger *zap.Logger) *Memo {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memo{cache: c, ttl: ttl, logger: logger, gen: make(map[string]uint64)}
}

func (m *Memo) generation(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen[key]
}

// Invalidate drops keys from the cache and forgets in-flight loads.
func (m *Memo) Invalidate(ctx context.Context, keys ...string) {
	m.mu.Lock()
	for _, k := range keys {
		m.gen[k]++
	}
	m.mu.Unlock()

	for _, k := range keys {
		m.group.Forget(k)
		if err := m.cache.Delete(ctx, k); err != nil {
			m.logger.Warn("settings cache delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// loadResult carries whether a loaded value may be cached.
type loadResult[T any] struct {
	value     T
	cacheable bool
}

// remember returns the cached value for key, or runs load once for all
// concurrent callers. load reports whether its value may be cached.
func remember[T any](ctx context.Context, m *Memo, key string, load func(ctx context.Context) (T, bool, error)) (T, error) {
	var cached T
	err := m.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		m.logger.Warn("settings cache read failed", zap.String("key", key), zap.Error(err))
	}

	gen := m.generation(key)
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		value, cacheable, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if cacheable && m.generation(key) == gen {
			if err := m.cache.Set(ctx, key, value, m.ttl); err != nil {
				m.logger.Warn("settings cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return loadResult[T]{value: value, cacheable: cacheable}, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(loadResult[T]).value, nil
}
