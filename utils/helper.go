package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/go-playground/validator/v10"
)

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["_"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Namespace()] = ve.Tag()
	}
	return errorResponse
}

func UniqueSlice[T comparable](slice []T) []T {
	keys := make(map[T]bool)
	list := []T{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// RetailerLock obtains a short-lived Redis lock for lockType+key within the retailer.
// It returns a no-op release when Redis is not connected or the lock is held
// elsewhere; callers must not rely on it for correctness.
func RetailerLock(ctx context.Context, retailerId string, lockType string, key string) func() {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		return noop
	}
	lockKey := fmt.Sprintf("%s:%s:%s", lockType, retailerId, key)
	lock, err := locker.Obtain(ctx, lockKey, 5*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 10),
	})
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(config.GetLogger(), "utils", "RetailerLock", "obtain lock", lockKey, err)
		}
		return noop
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}
}
