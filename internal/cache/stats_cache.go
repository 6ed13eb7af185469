// Package cache keeps per-scope idea statistics in Redis.
//
// Entries are namespaced by a generation counter. Invalidation increments the
// counter, which orphans every entry at once; orphans expire through their TTL.
// Writers store a snapshot only if the generation they read before counting
// is still current, so a snapshot computed before an invalidation is never
// published after it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/idea-service/internal/domain"
)

const (
	keyPrefix     = "stats:v2:"
	generationKey = keyPrefix + "gen"
)

// ErrMiss is returned by Get when no snapshot is cached.
var ErrMiss = errors.New("stats cache miss")

// setIfCurrent writes KEYS[2] only while KEYS[1] still holds ARGV[1].
var setIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// StatsCache stores Stats snapshots keyed by generation and visibility scope.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache returns nil when client is nil; every method tolerates a nil
// receiver by reporting a miss.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{client: client, ttl: ttl}
}

// ScopeFor names the visible set identity's stats cover. It is empty for
// roles that cannot view stats.
func ScopeFor(identity domain.Identity) string {
	switch identity.Scope(domain.ActionViewStats) {
	case domain.ScopeAll:
		return "all"
	case domain.ScopeOwn:
		return "customer:" + identity.UserID
	case domain.ScopeAssigned:
		return "developer:" + identity.UserID
	default:
		return ""
	}
}

// EntryKey is the Redis key of scope's snapshot in generation gen.
func EntryKey(gen int64, scope string) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + scope
}

// Generation reads the current generation. An unset counter is generation 0.
func (c *StatsCache) Generation(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get loads scope's snapshot from generation gen. It returns ErrMiss when
// nothing is stored.
func (c *StatsCache) Get(ctx context.Context, gen int64, scope string) (domain.Stats, error) {
	if c == nil || scope == "" {
		return domain.Stats{}, ErrMiss
	}
	raw, err := c.client.Get(ctx, EntryKey(gen, scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Stats{}, ErrMiss
	}
	if err != nil {
		return domain.Stats{}, err
	}
	var stats domain.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// SetIfCurrent stores a snapshot computed under generation gen. It reports
// false, storing nothing, when the generation has moved on.
func (c *StatsCache) SetIfCurrent(ctx context.Context, gen int64, scope string, stats domain.Stats) (bool, error) {
	if c == nil || scope == "" {
		return false, nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return false, err
	}
	stored, err := setIfCurrent.Run(ctx, c.client,
		[]string{generationKey, EntryKey(gen, scope)},
		strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate starts a new generation and returns it.
func (c *StatsCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	return c.client.Incr(ctx, generationKey).Result()
}
