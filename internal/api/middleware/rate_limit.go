package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// clientLimiter pairs a token bucket with its last-seen time so idle
// clients can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	lifetime time.Duration
}

// NewRateLimiter creates a per-client rate limiter.
// rps: sustained requests per second per client
// burst: maximum burst size per client
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = int(rps) * 2
	}
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		lifetime: 10 * time.Minute,
	}
}

func (rl *RateLimiter) limiterFor(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if entry, exists := rl.clients[clientIP]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	// Evict idle clients before adding a new one
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > rl.lifetime {
			delete(rl.clients, ip)
		}
	}

	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.clients[clientIP] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// Middleware rejects requests above the per-client rate with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			utils.SendError(c, http.StatusTooManyRequests,
				utils.NewAppError(utils.ErrCodeRateLimit, "Too many requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}
