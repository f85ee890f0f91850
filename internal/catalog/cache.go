package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "catalog:v1:"

// CachedRepository serves single bank and country lookups from Redis,
// falling back to the wrapped repository. Listings are not cached.
type CachedRepository struct {
	Repository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository wraps repo with a Redis read-through cache.
func NewCachedRepository(repo Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRepository{Repository: repo, cache: cache, ttl: ttl, logger: logger}
}

// GetBank returns the bank, caching it on a miss.
func (r *CachedRepository) GetBank(ctx context.Context, id int64) (Bank, error) {
	key := fmt.Sprintf("%sbank:%d", cachePrefix, id)
	var b Bank
	if r.load(ctx, key, &b) {
		return b, nil
	}
	b, err := r.Repository.GetBank(ctx, id)
	if err != nil {
		return Bank{}, err
	}
	r.store(ctx, key, b)
	return b, nil
}

// GetCountry returns the country, caching it on a miss.
func (r *CachedRepository) GetCountry(ctx context.Context, id int64) (Country, error) {
	key := fmt.Sprintf("%scountry:%d", cachePrefix, id)
	var c Country
	if r.load(ctx, key, &c) {
		return c, nil
	}
	c, err := r.Repository.GetCountry(ctx, id)
	if err != nil {
		return Country{}, err
	}
	r.store(ctx, key, c)
	return c, nil
}

// Invalidate drops cached entries for a bank and its country.
func (r *CachedRepository) Invalidate(ctx context.Context, bankID, countryID int64) error {
	return r.cache.Del(ctx,
		fmt.Sprintf("%sbank:%d", cachePrefix, bankID),
		fmt.Sprintf("%scountry:%d", cachePrefix, countryID),
	).Err()
}

func (r *CachedRepository) load(ctx context.Context, key string, dst any) bool {
	raw, err := r.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && r.logger != nil {
			r.logger.Warn("catalog cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		if r.logger != nil {
			r.logger.Warn("catalog cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	return true
}

func (r *CachedRepository) store(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, payload, r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.Warn("catalog cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
