package alerting

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/patrickmn/go-cache"
)

// CachedRuleSource memoises per-service rule lists for a short TTL so a tick
// does not hit the database once per service for rules that rarely change.
type CachedRuleSource struct {
	source RuleSource
	cache  *cache.Cache
}

// NewCachedRuleSource wraps source. A non-positive ttl disables caching and
// returns source unchanged.
func NewCachedRuleSource(source RuleSource, ttl time.Duration) RuleSource {
	if ttl <= 0 {
		return source
	}
	return &CachedRuleSource{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func cacheKey(serviceID uint) string {
	return "service:" + strconv.FormatUint(uint64(serviceID), 10)
}

// ListActiveForService returns a copy of the cached rules, loading them on a miss.
func (c *CachedRuleSource) ListActiveForService(ctx context.Context, serviceID uint) ([]entities.AlertRule, error) {
	key := cacheKey(serviceID)
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v.([]entities.AlertRule)), nil
	}
	rules, err := c.source.ListActiveForService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, slices.Clone(rules))
	return rules, nil
}

// Invalidate drops the cached rules of one service.
func (c *CachedRuleSource) Invalidate(serviceID uint) {
	c.cache.Delete(cacheKey(serviceID))
}

// Flush drops every cached entry.
func (c *CachedRuleSource) Flush() {
	c.cache.Flush()
}
