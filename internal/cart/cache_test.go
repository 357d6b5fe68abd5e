package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestCacheGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	sessionKey := "sess-123"

	cart := &Cart{
		Items: []CartItem{
			{ID: "1", ProductID: 1, Quantity: 2, UnitPrice: 4.00},
			{ID: "2", ProductID: 2, Quantity: 3, UnitPrice: 1.00},
		},
		Count: 5,
		Total: 11.00,
	}
	cartJSON, _ := json.Marshal(cart)
	mr.Set(cacheKey(sessionKey), string(cartJSON))

	result, err := cache.Get(ctx, sessionKey)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 5, result.Count)
	assert.Equal(t, 11.00, result.Total)
}

func TestCacheGet_Miss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestCacheGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	sessionKey := "sess-123"
	require.NoError(t, mr.Set(cacheKey(sessionKey), `{"items": [truncated`))

	_, err := cache.Get(context.Background(), sessionKey)
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestCacheSet_RoundTripAndTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	sessionKey := "sess-123"
	cart := &Cart{
		Items: []CartItem{{ID: "1", ProductID: 1, Quantity: 2, UnitPrice: 4.00}},
		Count: 2,
		Total: 8.00,
	}

	require.NoError(t, cache.Set(ctx, sessionKey, cart))

	result, err := cache.Get(ctx, sessionKey)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	// TTL is base plus up to five minutes of jitter.
	ttl := mr.TTL(cacheKey(sessionKey))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.LessOrEqual(t, ttl, 20*time.Minute)

	// Expired entry is a miss again.
	mr.FastForward(21 * time.Minute)
	_, err = cache.Get(ctx, sessionKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheDelete(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	sessionKey := "sess-123"
	require.NoError(t, cache.Set(ctx, sessionKey, &Cart{}))

	require.NoError(t, cache.Delete(ctx, sessionKey))
	_, err := cache.Get(ctx, sessionKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheDelete_MissingKeyIsNoError(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Delete(context.Background(), "never-set"))
}
