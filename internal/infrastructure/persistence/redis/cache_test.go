package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/pkg/circuitbreaker"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// unreachable points at a port nothing listens on.
func unreachable(t *testing.T) *Cache {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.DialTimeout = 100 * time.Millisecond
	c, err := NewCacheLazy(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_Key(t *testing.T) {
	c := unreachable(t)
	assert.Equal(t, "progress:u1:heatmap:Math", c.Key("u1", "heatmap", "Math"))
	assert.Equal(t, "progress:a%3Ab:heatmap:x%2A%5B%3F", c.Key("a:b", "heatmap", "x*[?"))
	assert.Equal(t, "progress:a%2Ab:heatmap:*", c.Pattern("a*b", "heatmap"))
}

func TestHeatmapCache_KeysNeverCollideAcrossUsers(t *testing.T) {
	h := NewHeatmapCache(unreachable(t), time.Minute, logger.Nop())

	assert.NotEqual(t, h.key("alice:heatmap:0:x", "", 0), h.key("alice", "x:heatmap:0:all", 0))
	assert.NotEqual(t, h.key("alice:heatmap:x", "", 0), h.key("alice", "x:heatmap:_all", 0))
	assert.NotEqual(t, h.key("u1", "", 0), h.key("u1", "all", 0), "a subject named like the unfiltered segment")
	assert.NotEqual(t, h.key("u1", "", 0), h.key("u1", "", 1))
	assert.Equal(t, "progress:u1:heatmap:0:all", h.key("u1", "", 0))
	assert.Equal(t, "progress:u1:heatmap:3:s.Math", h.key("u1", "Math", 3))

	// The generation counter sits outside the invalidation pattern.
	assert.Equal(t, "progress:u1:heatmap-gen", h.generationKey("u1"))
	assert.Equal(t, "progress:u1:heatmap:*", h.cache.Pattern("u1", "heatmap"))
}

func TestConfig_URLOverridesHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"
	opts, err := cfg.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, cfg.ReadTimeout, opts.ReadTimeout)

	cfg.URL = "://bad"
	_, err = cfg.options()
	assert.Error(t, err)
}

func TestCache_EmptyKey(t *testing.T) {
	c := unreachable(t)
	ctx := context.Background()
	_, err := c.Int64(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	_, err = c.Incr(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Second), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.DeleteByPattern(ctx, ""), ErrCacheKeyEmpty)
}

func TestNewCache_FailsWhenUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.DialTimeout = 100 * time.Millisecond
	_, err := NewCache(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestHeatmapCache_DegradesToMissAndOpensBreaker(t *testing.T) {
	h := NewHeatmapCache(unreachable(t), time.Minute, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, gen, ok := h.Get(ctx, "u1", "")
		assert.False(t, ok)
		assert.Equal(t, int64(-1), gen, "unknown generation is never stored")
	}
	assert.Equal(t, circuitbreaker.StateOpen, h.BreakerState())

	// Rejected without touching the network.
	h.Set(ctx, "u1", "", 0, mastery.Heatmap{})
	err := h.Invalidate(ctx, "u1")
	assert.True(t, circuitbreaker.IsRejected(err))
}
