package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/http/response"
)

const (
	defaultRateLimit = 5
	defaultRateBurst = 10

	limiterIdleTTL = 5 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per client IP token bucket. Entries idle for five minutes
// are evicted every minute.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	log      *logger.Logger
}

// NewRateLimiter starts the eviction loop; call the returned stop function
// on shutdown.
func NewRateLimiter(rps float64, burst int, log *logger.Logger) (*RateLimiter, func()) {
	if rps <= 0 {
		rps = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultRateBurst
	}
	if log == nil {
		log = logger.Nop()
	}
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	var once sync.Once
	return rl, func() { once.Do(func() { close(stopCh) }) }
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (rl *RateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict(time.Now())
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-limiterIdleTTL)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.getLimiter(ip).Allow() {
			rl.log.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
			c.Header("Retry-After", "1")
			response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
