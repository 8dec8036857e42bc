package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowmarket/flowmarket/internal/usercontext"
)

const userIDHeader = "X-User-ID"

// UserRequired resolves the caller from the gateway-injected identity header
// and stores it in the request context. Authentication itself happens
// upstream; this service only trusts the header.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(userIDHeader))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := snowflake.ParseString(raw)
		if err != nil || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CopyRateLimit throttles the copy endpoint per user when redis is wired.
func (s *Server) CopyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.copyLimiter == nil || !s.copyLimiter.Enabled() {
			c.Next()
			return
		}

		userID, ok := usercontext.UserIDFromContext(c.Request.Context())
		if !ok || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		res, err := s.copyLimiter.Allow(c.Request.Context(), userID.String())
		if err != nil {
			s.log.Warn("copy rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", retryAfterSeconds(res.RetryAfter))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(d / time.Second)
	if d%time.Second > 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}
