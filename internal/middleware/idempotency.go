package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/redis/go-redis/v9"
)

// CorrelationIDHeader identifies one logical mutation across retries
const CorrelationIDHeader = "X-Correlation-ID"

// IdempotencyMiddleware provides idempotency for POST/PATCH requests using X-Correlation-ID
// If the same caller repeats a correlation ID on the same path within the TTL, the cached response is replayed
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := utils.CopyString(c.Get(CorrelationIDHeader))
		if correlationID == "" {
			// No correlation ID = no idempotency check
			return c.Next()
		}

		userID, _ := c.Locals(UserIDKey).(string)
		key := IdempotencyKey(userID, c.Path(), correlationID)

		// Check if we have a cached response
		cached, err := redisClient.Get(c.UserContext(), key).Bytes()
		if err == nil && len(cached) > 0 {
			c.Set("X-Idempotent-Replay", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}
		if err != nil && err != redis.Nil {
			log.Printf("[Idempotency] lookup failed for %s: %v", correlationID, err)
		}

		// Process the request
		if err := c.Next(); err != nil {
			return err
		}

		// Cache successful responses (2xx status codes)
		statusCode := c.Response().StatusCode()
		if statusCode >= 200 && statusCode < 300 {
			// fasthttp reuses the response buffer once the handler returns
			body := append([]byte(nil), c.Response().Body()...)
			if len(body) > 0 {
				go func() {
					bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := redisClient.Set(bgCtx, key, body, ttl).Err(); err != nil {
						log.Printf("[Idempotency] failed to store response for %s: %v", correlationID, err)
					}
				}()
			}
		}

		return nil
	}
}

// IdempotencyKey is the Redis key of a cached response
func IdempotencyKey(userID, path, correlationID string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", userID, path, correlationID)
}
