package httputil

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	bucketCleanupThreshold = 1 * time.Hour
	cleanupInterval        = 30 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter grants each client capacity requests per refill window
type RateLimiter struct {
	mu          sync.Mutex
	capacity    int
	every       rate.Limit
	clients     map[string]*clientBucket
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter starts a limiter and its cleanup goroutine. Call Stop when done.
// A capacity of zero or less disables limiting.
func NewRateLimiter(capacity int, refillDur time.Duration) *RateLimiter {
	every := rate.Inf
	if capacity > 0 && refillDur > 0 {
		every = rate.Every(refillDur / time.Duration(capacity))
	}
	rl := &RateLimiter{
		capacity:    capacity,
		every:       every,
		clients:     make(map[string]*clientBucket),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for ip, bucket := range r.clients {
		if now.Sub(bucket.lastSeen) > bucketCleanupThreshold {
			delete(r.clients, ip)
		}
	}
}

// Stop ends the cleanup goroutine
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCleanup) })
}

// Allow consumes one token for ip
func (r *RateLimiter) Allow(ip string) bool {
	if r.capacity <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket, exists := r.clients[ip]
	if !exists {
		bucket = &clientBucket{limiter: rate.NewLimiter(r.every, r.capacity)}
		r.clients[ip] = bucket
	}
	bucket.lastSeen = now

	return bucket.limiter.AllowN(now, 1)
}
