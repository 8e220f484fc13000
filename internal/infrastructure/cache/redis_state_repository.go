package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/redis/go-redis/v9"
)

const defaultStateKeyPrefix = "oauth:state:"

// consumeScript deletes the key only while it still belongs to the expected shop
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrStateExists is returned when an issued token collides with a live one
var ErrStateExists = errors.New("oauth state already exists")

// RedisStateRepository implements OAuthStateRepository using Redis.
// Each token is a key holding the shop domain; Redis expires it at the token's expiry.
type RedisStateRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStateRepository creates a state store with an existing Redis client
func NewRedisStateRepository(client redis.UniversalClient, keyPrefix string) ports.OAuthStateRepository {
	if keyPrefix == "" {
		keyPrefix = defaultStateKeyPrefix
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// CreateState stores the token with SET NX so an existing token is never overwritten
func (r *RedisStateRepository) CreateState(ctx context.Context, state *domain.OAuthState) error {
	if state.Expired(state.CreatedAt) {
		return fmt.Errorf("oauth state expires before it is created")
	}
	var ttl time.Duration
	if state.ExpiresAt != nil {
		ttl = state.ExpiresAt.Sub(state.CreatedAt)
	}

	ok, err := r.client.SetNX(ctx, r.keyPrefix+state.State, state.ShopDomain, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	if !ok {
		return ErrStateExists
	}
	state.ID = state.State
	return nil
}

// ConsumeState atomically deletes the token if it belongs to shopDomain
func (r *RedisStateRepository) ConsumeState(ctx context.Context, state, shopDomain string, _ time.Time) (bool, error) {
	deleted, err := consumeScript.Run(ctx, r.client, []string{r.keyPrefix + state}, shopDomain).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return deleted == 1, nil
}

// DeleteExpired is a no-op; Redis expires keys itself
func (r *RedisStateRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
