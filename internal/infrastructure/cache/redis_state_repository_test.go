package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shopify-multishop-layer/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStateRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStateRepository(client, "").(*RedisStateRepository)
}

func issue(t *testing.T, repo *RedisStateRepository, token, shop string, ttl time.Duration) {
	t.Helper()
	now := time.Now()
	expires := now.Add(ttl)
	require.NoError(t, repo.CreateState(context.Background(), &domain.OAuthState{
		State: token, ShopDomain: shop, CreatedAt: now, ExpiresAt: &expires,
	}))
}

func TestRedisStateRepository_Consume(t *testing.T) {
	ctx := context.Background()
	mr, repo := newTestStore(t)

	issue(t, repo, "tok", "alpha.myshopify.com", 10*time.Minute)
	assert.True(t, mr.Exists("oauth:state:tok"))
	assert.Equal(t, 10*time.Minute, mr.TTL("oauth:state:tok"))

	ok, err := repo.ConsumeState(ctx, "tok", "beta.myshopify.com", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "other shop cannot consume")

	ok, err = repo.ConsumeState(ctx, "tok", "alpha.myshopify.com", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeState(ctx, "tok", "alpha.myshopify.com", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "single use")
}

func TestRedisStateRepository_Expiry(t *testing.T) {
	mr, repo := newTestStore(t)
	issue(t, repo, "tok", "alpha.myshopify.com", time.Minute)

	mr.FastForward(2 * time.Minute)

	ok, err := repo.ConsumeState(context.Background(), "tok", "alpha.myshopify.com", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStateRepository_Duplicate(t *testing.T) {
	_, repo := newTestStore(t)
	issue(t, repo, "tok", "alpha.myshopify.com", time.Minute)

	now := time.Now()
	expires := now.Add(time.Minute)
	err := repo.CreateState(context.Background(), &domain.OAuthState{State: "tok", ShopDomain: "beta.myshopify.com", CreatedAt: now, ExpiresAt: &expires})
	assert.ErrorIs(t, err, ErrStateExists)
}

func TestRedisStateRepository_ConcurrentConsume(t *testing.T) {
	_, repo := newTestStore(t)
	issue(t, repo, "tok", "alpha.myshopify.com", time.Minute)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeState(context.Background(), "tok", "alpha.myshopify.com", time.Now())
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
