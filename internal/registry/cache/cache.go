// Package cache provides a redis read-through cache for owner lookups, the
// registry's hottest read path. Registrations are immutable, so cached
// entries can never go stale; the TTL only bounds memory.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/internal/registry/models"
	id "registrar/pkg/domain"
)

const keyPrefix = "registry:owner:"

// OwnerCache caches name→owner entries.
type OwnerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOwnerCache(client *redis.Client, ttl time.Duration) *OwnerCache {
	return &OwnerCache{client: client, ttl: ttl}
}

// Get returns the cached owner and true on a hit. Absent keys (redis.Nil)
// and redis failures are both treated as a miss; the store remains the
// source of truth.
func (c *OwnerCache) Get(ctx context.Context, name models.Name) (id.AccountID, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+name.String()).Result()
	if err != nil {
		return id.AccountID{}, false
	}
	owner, err := id.ParseAccountID(raw)
	if err != nil {
		return id.AccountID{}, false
	}
	return owner, true
}

// Put stores an owner entry, best effort.
func (c *OwnerCache) Put(ctx context.Context, name models.Name, owner id.AccountID) {
	_ = c.client.Set(ctx, keyPrefix+name.String(), owner.String(), c.ttl).Err()
}
