package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterPool tracks one token bucket per client IP. Entries idle for
// longer than staleAfter are evicted by a periodic sweep so the map does
// not grow with every auditor or scheduler that ever connected.
type limiterPool struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	rps     int
	burst   int
}

type clientBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

const (
	sweepEvery = 5 * time.Minute
	staleAfter = 10 * time.Minute
)

func (p *limiterPool) allow(ip string) bool {
	p.mu.Lock()
	cb, ok := p.clients[ip]
	if !ok {
		cb = &clientBucket{bucket: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.clients[ip] = cb
	}
	cb.lastSeen = time.Now()
	p.mu.Unlock()

	return cb.bucket.Allow()
}

func (p *limiterPool) sweep() {
	for {
		time.Sleep(sweepEvery)
		p.mu.Lock()
		for ip, cb := range p.clients {
			if time.Since(cb.lastSeen) > staleAfter {
				delete(p.clients, ip)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimiter returns per-client-IP token-bucket middleware for the ledger
// API: append, verification, and the anchoring trigger are all cheap to
// request and expensive to serve, so each caller gets rps steady-state
// requests per second with the given burst.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	pool := &limiterPool{
		clients: make(map[string]*clientBucket),
		rps:     rps,
		burst:   burst,
	}
	go pool.sweep()

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
