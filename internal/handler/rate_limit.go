package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/service"
	"github.com/prperemyshlev/passcode-auth/pkg/observability"
	"go.uber.org/zap"
)

// RateLimitMiddleware throttles requests per client IP and matched route
func RateLimitMiddleware(rateLimiter *service.RateLimiter, metrics *observability.AuthMetrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()

		decision, err := rateLimiter.Check(c.Request.Context(), ClientIP(c), route)
		if decision != nil && decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.ResetAt.IsZero() {
				c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			}
		}

		if err != nil {
			metrics.RateLimitRejected(c.Request.Context(), route)
			respondError(c, logger, err)
			return
		}

		c.Next()
	}
}

// ClientIP returns the caller address. Forwarding headers are honoured only
// when the request arrives from a trusted proxy.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

func clientInfo(c *gin.Context) domain.ClientInfo {
	return domain.ClientInfo{
		IP:        ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}
}
