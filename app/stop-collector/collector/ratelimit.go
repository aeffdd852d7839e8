package collector

import (
	"fmt"
	"sync"
	"time"
)

// acquirePollInterval is how long a blocked caller sleeps before re-checking the bucket
const acquirePollInterval = 10 * time.Millisecond

// TokenBucketRateLimiter throttles how fast fetches may start, shared across all
// worker goroutines. Tokens refill continuously at tokensPerSecond, computed
// lazily from elapsed wall clock time on each access, there is no background timer.
type TokenBucketRateLimiter struct {
	tokensPerSecond float64
	bucketCapacity  float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// MakeTokenBucketRateLimiter creates a limiter refilling at tokensPerSecond.
// bucketCapacity <= 0 selects the default capacity of twice the refill rate.
// A non positive tokensPerSecond is a configuration error.
func MakeTokenBucketRateLimiter(tokensPerSecond float64, bucketCapacity float64) (*TokenBucketRateLimiter, error) {
	if tokensPerSecond <= 0 {
		return nil, fmt.Errorf("tokensPerSecond must be positive, got %v", tokensPerSecond)
	}
	if bucketCapacity <= 0 {
		bucketCapacity = tokensPerSecond * 2
	}
	return &TokenBucketRateLimiter{
		tokensPerSecond: tokensPerSecond,
		bucketCapacity:  bucketCapacity,
		tokens:          bucketCapacity,
		lastRefill:      time.Now(),
	}, nil
}

// Acquire blocks until n tokens are available and debits them.
// Requesting zero or fewer tokens returns immediately without consuming any.
func (l *TokenBucketRateLimiter) Acquire(n int) {
	if n <= 0 {
		return
	}
	needed := float64(n)
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= needed {
			l.tokens -= needed
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()
		time.Sleep(acquirePollInterval)
	}
}

// AvailableTokens reports the current token count, refilled to the moment of the call
func (l *TokenBucketRateLimiter) AvailableTokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// refill adds tokens for the elapsed time since the last refill, capped at capacity.
// callers must hold l.mu
func (l *TokenBucketRateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.tokensPerSecond
	if l.tokens > l.bucketCapacity {
		l.tokens = l.bucketCapacity
	}
	l.lastRefill = now
}
