package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/circuitbreaker"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// DefaultHeatmapTTL bounds how stale a cached heatmap can get between
// writes. Decay moves in 30-day steps, so a minute is well inside it.
const DefaultHeatmapTTL = time.Minute

// allSubjects is the key segment for an unfiltered heatmap. Filtered
// segments carry subjectPrefix, so no subject name can produce it.
const (
	allSubjects   = "all"
	subjectPrefix = "s."
)

// HeatmapCache caches built heatmaps per user and subject filter. Every
// call runs through a circuit breaker; an open breaker reads as a miss.
type HeatmapCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewHeatmapCache creates a new HeatmapCache.
func NewHeatmapCache(cache *Cache, ttl time.Duration, log *logger.Logger) *HeatmapCache {
	if ttl <= 0 {
		ttl = DefaultHeatmapTTL
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("heatmap_cache"))

	breaker := circuitbreaker.New("redis-heatmap",
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithTimeout(15*time.Second),
		circuitbreaker.WithIsFailure(func(err error) bool {
			return err != nil && !errors.Is(err, ErrCacheMiss)
		}),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("cache breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)

	return &HeatmapCache{
		cache:   cache,
		ttl:     ttl,
		breaker: breaker,
		logger:  log,
	}
}

func (h *HeatmapCache) key(userID shared.UserID, subject string, generation int64) string {
	segment := allSubjects
	if subject != "" {
		segment = subjectPrefix + subject
	}
	return h.cache.Key(userID.String(), "heatmap", strconv.FormatInt(generation, 10), segment)
}

func (h *HeatmapCache) generationKey(userID shared.UserID) string {
	return h.cache.Key(userID.String(), "heatmap-gen")
}

// Get returns the cached heatmap and true on a hit. The returned generation
// must be handed back to Set; -1 means the entry must not be stored.
func (h *HeatmapCache) Get(ctx context.Context, userID shared.UserID, subject string) (mastery.Heatmap, int64, bool) {
	var hm mastery.Heatmap
	generation := int64(-1)
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		gen, err := h.cache.Int64(ctx, h.generationKey(userID))
		if err != nil {
			return err
		}
		generation = gen
		return h.cache.Get(ctx, h.key(userID, subject, gen), &hm)
	})
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !circuitbreaker.IsRejected(err) {
			h.logger.Warn("heatmap cache read failed", logger.UserID(userID.String()), logger.Err(err))
		}
		return mastery.Heatmap{}, generation, false
	}
	return hm, generation, true
}

// Set stores hm under the generation observed by Get. A write that
// invalidated in between has moved the generation on, so a stale hm lands
// under a key nothing reads. Failures are logged and swallowed.
func (h *HeatmapCache) Set(ctx context.Context, userID shared.UserID, subject string, generation int64, hm mastery.Heatmap) {
	if generation < 0 {
		return
	}
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.Set(ctx, h.key(userID, subject, generation), hm, h.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		h.logger.Warn("heatmap cache write failed", logger.UserID(userID.String()), logger.Err(err))
	}
}

// Invalidate moves the user to a new generation, then drops the old
// entries.
func (h *HeatmapCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	return h.breaker.Execute(ctx, func(ctx context.Context) error {
		if _, err := h.cache.Incr(ctx, h.generationKey(userID)); err != nil {
			return err
		}
		return h.cache.DeleteByPattern(ctx, h.cache.Pattern(userID.String(), "heatmap"))
	})
}

// BreakerState reports the cache breaker state for readiness output.
func (h *HeatmapCache) BreakerState() circuitbreaker.State {
	return h.breaker.State()
}
