package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gasly-backend/logger"
	"gasly-backend/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultPolicyCacheKey = "gasly:rewards:policy"
	DefaultPolicyCacheTTL = 30 * time.Second
)

// CachedPolicyStore serves policy reads from redis and falls through to the
// wrapped store on a miss. Redis failures degrade to uncached reads.
type CachedPolicyStore struct {
	Store PolicyStore
	Redis *redis.Client
	Key   string
	TTL   time.Duration
}

func NewCachedPolicyStore(store PolicyStore, client *redis.Client, ttl time.Duration) *CachedPolicyStore {
	if ttl <= 0 {
		ttl = DefaultPolicyCacheTTL
	}
	return &CachedPolicyStore{
		Store: store,
		Redis: client,
		Key:   DefaultPolicyCacheKey,
		TTL:   ttl,
	}
}

var _ PolicyStore = (*CachedPolicyStore)(nil)

func (c *CachedPolicyStore) GetPolicy(ctx context.Context) (*models.RewardsPolicy, error) {
	raw, err := c.Redis.Get(ctx, c.Key).Bytes()
	switch {
	case err == nil:
		var policy models.RewardsPolicy
		if jsonErr := json.Unmarshal(raw, &policy); jsonErr == nil {
			policy.ID = models.PolicyID
			return &policy, nil
		}
		logger.L.Warn("discarding unreadable cached rewards policy", zap.String("key", c.Key))
	case !errors.Is(err, redis.Nil):
		logger.L.Warn("rewards policy cache read failed", zap.String("key", c.Key), zap.Error(err))
	}

	policy, err := c.Store.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.put(ctx, policy); err != nil {
		logger.L.Warn("rewards policy cache write failed", zap.String("key", c.Key), zap.Error(err))
	}
	return policy, nil
}

func (c *CachedPolicyStore) UpdatePolicy(ctx context.Context, changes PolicyChanges, role models.Role) (*models.RewardsPolicy, error) {
	policy, err := c.Store.UpdatePolicy(ctx, changes, role)
	if err != nil {
		return nil, err
	}
	if err := c.put(ctx, policy); err != nil {
		// A stale entry must not outlive the update.
		if delErr := c.Redis.Del(ctx, c.Key).Err(); delErr != nil {
			logger.L.Error("rewards policy cache is stale after update",
				zap.String("key", c.Key), zap.Error(err), zap.NamedError("del_error", delErr))
		}
	}
	return policy, nil
}

func (c *CachedPolicyStore) put(ctx context.Context, policy *models.RewardsPolicy) error {
	raw, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, c.Key, raw, c.TTL).Err()
}
