package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientIdleTimeout is how long a client may stay silent before its limiter
// is dropped.
const clientIdleTimeout = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	clients   map[string]*clientLimiter
	mu        *sync.Mutex
	r         rate.Limit
	b         int
	now       func() time.Time
	lastSweep time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with bursts of b.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		clients: make(map[string]*clientLimiter),
		mu:      &sync.Mutex{},
		r:       r,
		b:       b,
		now:     time.Now,
	}
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastSweep) > clientIdleTimeout {
		i.sweep(now)
	}

	cl, exists := i.clients[ip]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(i.r, i.b)}
		i.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Len returns the number of tracked clients.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clients)
}

func (i *IPRateLimiter) sweep(now time.Time) {
	for ip, cl := range i.clients {
		if now.Sub(cl.lastSeen) > clientIdleTimeout {
			delete(i.clients, ip)
		}
	}
	i.lastSweep = now
}

// RateLimiter rejects clients exceeding their bucket with 429 and a Retry-After hint.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return rateLimit(NewIPRateLimiter(r, b))
}

func rateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	retryAfter := "1"
	if limiter.r > 0 && limiter.r < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / float64(limiter.r))))
	}
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
