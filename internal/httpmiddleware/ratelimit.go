package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucket limits requests per client IP. State lives in process memory,
// so with multiple API replicas each replica enforces its own budget.
type TokenBucket struct {
	capacity  int
	perMinute int
	mu        sync.Mutex
	clients   map[string]*clientBucket
}

type clientBucket struct {
	tokens   int
	refilled time.Time
}

// NewTokenBucket allows bursts up to capacity and refills perMinute tokens.
// A non-positive capacity falls back to perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity:  capacity,
		perMinute: perMinute,
		clients:   make(map[string]*clientBucket),
	}
}

// GinMiddleware rejects over-budget clients with 429.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.take(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *TokenBucket) take(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	b, ok := l.clients[key]
	if !ok {
		l.clients[key] = &clientBucket{tokens: l.capacity - 1, refilled: now}
		return true
	}
	earned := int(now.Sub(b.refilled).Minutes() * float64(l.perMinute))
	if earned > 0 {
		b.tokens += earned
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.refilled = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
