package utils

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/dukaflow/retailer_backend/config"
)

func GetCacheLifespan() time.Duration {
	minutes := config.IntFromEnv("CACHE_LIFESPAN_MINUTES", 10)
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

func cacheKey[T any](id string) string {
	return GetTypeName[T]() + ":" + id
}

// CachedFetch reads T from Redis, falling back to load and caching the result.
// Cache errors are logged and never fail the request.
func CachedFetch[T any](ctx context.Context, id string, load func(context.Context) (*T, error)) (*T, error) {
	key := cacheKey[T](id)
	var cached T
	found, err := config.GetRedisObject(ctx, key, &cached)
	if err != nil {
		config.LogError(config.GetLogger(), "utils", "CachedFetch", "read cache", key, err)
	}
	if found {
		return &cached, nil
	}

	result, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, key, result, GetCacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "utils", "CachedFetch", "write cache", key, err)
	}
	return result, nil
}

func InvalidateCache[T any](ctx context.Context, id string) error {
	if err := config.RemoveRedisKey(ctx, cacheKey[T](id)); err != nil {
		return fmt.Errorf("invalidate %s: %w", cacheKey[T](id), err)
	}
	return nil
}
