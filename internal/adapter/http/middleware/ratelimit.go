package middleware

import (
	"fmt"
	"strconv"
	"time"

	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Endpoint groups with their own counters.
const (
	GroupPurchases = "purchases"
	GroupFlows     = "flows"
	GroupReads     = "reads"
	GroupAdmin     = "admin"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-actor limits used when none are configured.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupPurchases: {Limit: 20, Window: time.Minute},
		GroupFlows:     {Limit: 60, Window: time.Minute},
		GroupReads:     {Limit: 120, Window: time.Minute},
		GroupAdmin:     {Limit: 120, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Store errors let the request through.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := max(result.ResetAt-time.Now().Unix(), 1)
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits by actor, falling back to the client address.
func extractIdentifier(c *gin.Context) string {
	if actorID := ActorID(c); actorID != "" {
		return "actor:" + actorID
	}
	if actorID := c.GetHeader(HeaderActorID); actorID != "" {
		return "actor:" + actorID
	}
	return "ip:" + c.ClientIP()
}
