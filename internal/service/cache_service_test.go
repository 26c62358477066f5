package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis down")
}

func (failingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis down")
}

func (failingCacheRepo) Delete(ctx context.Context, keys ...string) error {
	return errors.New("redis down")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, cache.Get(ctx, "k", &out))

	cache.Set(ctx, "k", map[string]int{"seats": 3}, 0)
	require.True(t, cache.Get(ctx, "k", &out))
	assert.Equal(t, 3, out["seats"])

	cache.Invalidate(ctx, "k")
	assert.False(t, cache.Get(ctx, "k", &out))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheMisses))
}

func TestCacheServiceDisabledAndFailing(t *testing.T) {
	ctx := context.Background()
	var out map[string]int

	disabled := NewCacheService(newMemCacheRepo(), nil, 0, nil, false)
	disabled.Set(ctx, "k", map[string]int{}, 0)
	assert.False(t, disabled.Get(ctx, "k", &out))

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	nilCache.Invalidate(ctx, "k")

	failing := NewCacheService(failingCacheRepo{}, nil, 0, nil, true)
	failing.Set(ctx, "k", 1, 0)
	failing.Invalidate(ctx, "k")
	assert.False(t, failing.Get(ctx, "k", &out))
}

func TestCacheServiceRotateRetiresVersionedKey(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	before := cache.VersionedKey(ctx, "seating:stats")
	assert.Equal(t, "seating:stats:", before)
	cache.Set(ctx, before, map[string]int{"seats": 3}, 0)

	cache.Rotate(ctx, "seating:stats")
	after := cache.VersionedKey(ctx, "seating:stats")
	assert.NotEqual(t, before, after)
	assert.NotContains(t, repo.data, before)

	var out map[string]int
	assert.False(t, cache.Get(ctx, after, &out))

	cache.Set(ctx, before, map[string]int{"seats": 1}, 0)
	assert.False(t, cache.Get(ctx, cache.VersionedKey(ctx, "seating:stats"), &out))

	var disabled *CacheService
	assert.Equal(t, "seating:stats:", disabled.VersionedKey(ctx, "seating:stats"))
	disabled.Rotate(ctx, "seating:stats")
}
