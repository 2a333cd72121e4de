package tagging

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// CachedRules is a TaggingRuleRepository that keeps each organization's rule list in a
// TTL-bounded LRU. Single-rule lookups are not cached.
type CachedRules struct {
	repository.TaggingRuleRepository
	cache  *expirable.LRU[string, []model.TaggingRule]
	hits   prometheus.Counter
	misses prometheus.Counter
}

var _ repository.TaggingRuleRepository = (*CachedRules)(nil)

// NewCachedRules wraps repo. Cache metrics are registered on reg when it is not nil.
func NewCachedRules(repo repository.TaggingRuleRepository, size int, ttl time.Duration, reg prometheus.Registerer) *CachedRules {
	if size <= 0 {
		size = 1000
	}
	c := &CachedRules{
		TaggingRuleRepository: repo,
		cache:                 expirable.NewLRU[string, []model.TaggingRule](size, nil, ttl),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagging_rule_cache_hits_total",
			Help: "Number of tagging rule lookups served from cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagging_rule_cache_misses_total",
			Help: "Number of tagging rule lookups that hit the repository.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.hits, c.misses)
	}
	return c
}

func cacheKey(organizationID string, enabledOnly bool) string {
	if enabledOnly {
		return organizationID + ":enabled"
	}
	return organizationID + ":all"
}

func (c *CachedRules) ListByOrganization(ctx context.Context, organizationID string, enabledOnly bool) ([]model.TaggingRule, error) {
	key := cacheKey(organizationID, enabledOnly)
	if rules, ok := c.cache.Get(key); ok {
		c.hits.Inc()
		return rules, nil
	}
	c.misses.Inc()
	rules, err := c.TaggingRuleRepository.ListByOrganization(ctx, organizationID, enabledOnly)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, rules)
	return rules, nil
}

// Invalidate drops the cached rules of an organization.
func (c *CachedRules) Invalidate(organizationID string) {
	c.cache.Remove(cacheKey(organizationID, true))
	c.cache.Remove(cacheKey(organizationID, false))
}
