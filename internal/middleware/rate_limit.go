package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const authFailurePrefix = "rl:auth:"

// AuthFailureLimit blocks an IP for the rest of the minute once it collected
// maxPerMin unauthorized responses. Without Redis it is a no-op.
func AuthFailureLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 20
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		key := authFailurePrefix + c.IP()

		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		cnt, err := cache.Get(ctx, key).Int()
		cancel()
		if err != nil && err != redis.Nil {
			logger.Warn("auth rate limit lookup failed", slog.Any("error", err))
			return c.Next() // fail-open on cache errors
		}
		if cnt >= maxPerMin {
			return fiber.NewError(http.StatusTooManyRequests, "too many failed authentication attempts, try again later")
		}

		err = c.Next()
		if statusOf(c, err) != http.StatusUnauthorized {
			return err
		}

		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, incErr := cache.Incr(ctx, key).Result()
		if incErr == nil && n == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		return err
	}
}
