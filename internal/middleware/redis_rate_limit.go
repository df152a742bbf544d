package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthub/backend/internal/cache"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/metrics"
)

// RedisRateLimitMiddleware creates a distributed per-IP rate limiter using
// Redis, so limits hold across multiple server instances. scope names the
// limited surface for metrics ("auth", "api").
func RedisRateLimitMiddleware(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := cache.GetRedisClient()
		if redisClient == nil {
			// No Redis means no shared counter; allow rather than block everything
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := fmt.Sprintf("agenthub:rate_limit:%s:%s", scope, clientIP)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		count, err := redisClient.Incr(ctx, key)
		if err != nil {
			logger.Log.Error("rate limit check failed, rejecting request",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			c.JSON(503, gin.H{"error": "service temporarily unavailable"})
			c.Abort()
			return
		}

		if count == 1 {
			if err := redisClient.Expire(ctx, key, window); err != nil {
				logger.Log.Warn("failed to set rate limit expiration",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
			}
		}

		if count > int64(maxRequests) {
			metrics.Get().RateLimitExceededTotal.WithLabelValues(scope).Inc()
			logger.Log.Warn("rate limit exceeded",
				logger.WithIP(clientIP),
				zap.String("scope", scope),
				zap.Int64("current_requests", count),
			)
			c.JSON(429, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
