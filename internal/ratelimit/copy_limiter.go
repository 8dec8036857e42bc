package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/flowmarket/flowmarket/internal/config"
)

const keyCopyUser = "copy:user:%s"

// CopyLimiter throttles copy recording per user. A nil limiter allows
// everything, so callers never need to branch on configuration.
type CopyLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewCopyLimiter(cfg config.Config) (*CopyLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit enabled but redis addr is empty")
	}
	if limitCfg.CopyRate <= 0 || limitCfg.CopyBurst <= 0 {
		return nil, errors.New("rate limit enabled but copy rate/burst is not positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &CopyLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.CopyRate,
		burst:   limitCfg.CopyBurst,
	}, nil
}

func (l *CopyLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CopyLimiter) Allow(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCopyUser, strings.TrimSpace(userID)), l.rate, l.burst)
}
