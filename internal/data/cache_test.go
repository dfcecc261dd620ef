package data

import (
	"context"
	"testing"
	"time"

	"KuroAccounts/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (CacheClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCacheClient(rdb), mr
}

func TestCache_SetGet(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	key := BuildCacheKey(CacheKeyCustomerDetails, "9876543210")

	view := &model.CustomerDetails{
		Name:         "Jane",
		MobileNumber: "9876543210",
		Account:      &model.AccountDetails{AccountNumber: 1234567890, AccountType: model.AccountTypeSavings},
		Cards:        &model.CardsDetails{CardNumber: "4111", TotalLimit: 100000},
	}
	require.NoError(t, cache.Set(ctx, key, view, time.Minute))

	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	var got model.CustomerDetails
	require.NoError(t, cache.Get(ctx, key, &got))
	assert.Equal(t, *view, got)
	assert.Nil(t, got.Loans)
}

func TestCache_GetMissing(t *testing.T) {
	cache, _ := setupTestCache(t)

	var got model.CustomerDetails
	err := cache.Get(context.Background(), "customer_details:missing", &got)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCache_GetInvalidJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	require.NoError(t, mr.Set("customer_details:bad", "{not json"))

	var got model.CustomerDetails
	err := cache.Get(context.Background(), "customer_details:bad", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestCache_Delete(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "customer_details:1", "v", time.Minute))
	require.NoError(t, cache.Delete(ctx, "customer_details:1"))
	assert.False(t, mr.Exists("customer_details:1"))

	assert.NoError(t, cache.Delete(ctx, "customer_details:never-set"))
}

func TestCache_RedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	ctx := context.Background()
	var got string
	assert.Error(t, cache.Get(ctx, "k", &got))
	assert.NotErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheNotFound)
	assert.Error(t, cache.Set(ctx, "k", "v", time.Minute))
}

func TestCache_NilClient(t *testing.T) {
	cache := NewCacheClient(nil)
	ctx := context.Background()

	var got string
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrRedisUnavailable)
	assert.ErrorIs(t, cache.Set(ctx, "k", "v", time.Minute), ErrRedisUnavailable)
	assert.ErrorIs(t, cache.Delete(ctx, "k"), ErrRedisUnavailable)
}

func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "customer_details:9876543210", BuildCacheKey(CacheKeyCustomerDetails, "9876543210"))
	assert.Equal(t, "circuit:cards", BuildCacheKey(CacheKeyCircuit, "cards"))
	assert.Equal(t, "circuit", BuildCacheKey(CacheKeyCircuit))
}
