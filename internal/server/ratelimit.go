package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter enforces a per-client-IP token bucket rate limit. Idle
// clients are evicted by a background cleanup goroutine so the map cannot
// grow without bound.
type ClientLimiter struct {
	mu          sync.Mutex
	perMinute   int
	burst       int
	clients     map[string]*clientBucket
	stopCleanup chan struct{}
	closeOnce   sync.Once
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const clientIdleTTL = 5 * time.Minute

// NewClientLimiter creates a limiter allowing perMinute requests with the
// given burst per client IP. perMinute <= 0 disables limiting entirely.
func NewClientLimiter(perMinute, burst int) *ClientLimiter {
	cl := &ClientLimiter{
		perMinute:   perMinute,
		burst:       burst,
		clients:     make(map[string]*clientBucket),
		stopCleanup: make(chan struct{}),
	}

	go cl.cleanupLoop()

	return cl
}

// Allow reports whether a request from ip is within the limit and consumes
// a token when it is.
func (cl *ClientLimiter) Allow(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.perMinute <= 0 {
		return true
	}

	b, ok := cl.clients[ip]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(cl.perMinute)/60.0), cl.burst),
		}
		cl.clients[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

// SetLimit updates the rate applied to new and existing clients. Existing
// buckets are dropped so the new limit takes effect immediately.
func (cl *ClientLimiter) SetLimit(perMinute, burst int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.perMinute == perMinute && cl.burst == burst {
		return
	}
	cl.perMinute = perMinute
	cl.burst = burst
	cl.clients = make(map[string]*clientBucket)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (cl *ClientLimiter) Close() {
	cl.closeOnce.Do(func() {
		close(cl.stopCleanup)
	})
}

func (cl *ClientLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cl.cleanup()
		case <-cl.stopCleanup:
			return
		}
	}
}

func (cl *ClientLimiter) cleanup() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := time.Now().Add(-clientIdleTTL)
	for ip, b := range cl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(cl.clients, ip)
		}
	}
}
