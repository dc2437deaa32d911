package middleware

import (
	"testing"

	"go.uber.org/zap"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	bucket := NewTokenBucket(2, 0) // no refill: only the burst is spendable
	if !bucket.Allow() || !bucket.Allow() {
		t.Fatal("burst tokens should be spendable immediately")
	}
	if bucket.Allow() {
		t.Error("third request should be denied with an empty bucket")
	}
}

func TestUploadRateLimiterIsolatesClients(t *testing.T) {
	limiter := NewUploadRateLimiter(6, 1, zap.NewNop())

	if allowed, _ := limiter.Allow("10.0.0.1"); !allowed {
		t.Fatal("first upload from a client should pass")
	}
	if allowed, _ := limiter.Allow("10.0.0.1"); allowed {
		t.Error("burst of 1 should deny the immediate second upload")
	}
	if allowed, _ := limiter.Allow("10.0.0.2"); !allowed {
		t.Error("a different client must have its own bucket")
	}
}
