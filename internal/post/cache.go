package post

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ownerCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commboard",
		Subsystem: "post_owner_cache",
		Name:      "hits_total",
		Help:      "Post owner lookups served from the cache.",
	})
	ownerCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commboard",
		Subsystem: "post_owner_cache",
		Name:      "misses_total",
		Help:      "Post owner lookups that went to the database.",
	})
)

// OwnerLookup resolves the author of a post.
type OwnerLookup interface {
	OwnerID(ctx context.Context, postID int64) (int64, error)
}

// CachedOwners caches post authors per instance.
// Only successful lookups are cached, so a deleted post is noticed once its entry expires.
// With a zero ttl every lookup goes to next and deletions are seen immediately.
type CachedOwners struct {
	next  OwnerLookup
	cache *expirable.LRU[int64, int64]
}

// NewCachedOwners wraps next with an LRU of maxSize entries living ttl each.
func NewCachedOwners(next OwnerLookup, maxSize int, ttl time.Duration) *CachedOwners {
	if ttl <= 0 || maxSize <= 0 {
		return &CachedOwners{next: next}
	}
	return &CachedOwners{
		next:  next,
		cache: expirable.NewLRU[int64, int64](maxSize, nil, ttl),
	}
}

func (c *CachedOwners) OwnerID(ctx context.Context, postID int64) (int64, error) {
	if c.cache == nil {
		return c.next.OwnerID(ctx, postID)
	}
	if owner, ok := c.cache.Get(postID); ok {
		ownerCacheHits.Inc()
		return owner, nil
	}
	ownerCacheMisses.Inc()

	owner, err := c.next.OwnerID(ctx, postID)
	if err != nil {
		return 0, err
	}
	c.cache.Add(postID, owner)
	return owner, nil
}
