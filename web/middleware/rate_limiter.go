// Package middleware holds gin middleware for the extraction API.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// An extraction run fans out into one oracle call per chunk, so a single
// unthrottled client can monopolize the model server. Uploads are therefore
// rate limited per client IP with a token bucket.

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(maxTokens, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can proceed and consumes a token if so.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Remaining returns the number of whole tokens currently available.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	return int(min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate)))
}

// UploadRateLimiter tracks one bucket per client IP.
type UploadRateLimiter struct {
	uploadsPerMinute int
	burstSize        int
	buckets          map[string]*TokenBucket
	mu               sync.Mutex
	logger           *zap.Logger
}

func NewUploadRateLimiter(uploadsPerMinute, burstSize int, logger *zap.Logger) *UploadRateLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	return &UploadRateLimiter{
		uploadsPerMinute: uploadsPerMinute,
		burstSize:        burstSize,
		buckets:          make(map[string]*TokenBucket),
		logger:           logger,
	}
}

func (rl *UploadRateLimiter) bucketFor(clientIP string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Buckets refill to full within a minute, so resetting the map is
	// equivalent to every client having an idle minute.
	if len(rl.buckets) > 10000 {
		rl.logger.Info("Resetting upload rate limiter cache",
			zap.Int("buckets", len(rl.buckets)))
		rl.buckets = make(map[string]*TokenBucket)
	}

	bucket, exists := rl.buckets[clientIP]
	if !exists {
		refillRate := float64(rl.uploadsPerMinute) / 60.0
		bucket = NewTokenBucket(float64(rl.burstSize), refillRate)
		rl.buckets[clientIP] = bucket
	}
	return bucket
}

// Allow reports whether a client may start another extraction run now.
func (rl *UploadRateLimiter) Allow(clientIP string) (allowed bool, remaining int) {
	bucket := rl.bucketFor(clientIP)
	return bucket.Allow(), bucket.Remaining()
}

// RateLimit is the gin middleware wrapping an UploadRateLimiter.
func RateLimit(limiter *UploadRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		allowed, remaining := limiter.Allow(clientIP)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.burstSize))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			limiter.logger.Warn("Upload rate limit exceeded",
				zap.String("client_ip", clientIP))
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}
