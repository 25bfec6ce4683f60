package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused client limiter is kept
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP
type RateLimiter struct {
	rps   rate.Limit
	burst int
	log   *logger.Logger

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastPrune time.Time
}

// NewRateLimiter returns nil when rps is not positive; a nil limiter allows everything
func NewRateLimiter(rps float64, burst int, log *logger.Logger) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log.WithComponent("rate_limiter"),
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether the client may make one more request now
func (rl *RateLimiter) Allow(ip string) bool {
	if rl == nil {
		return true
	}
	now := time.Now()

	rl.mu.Lock()
	if now.Sub(rl.lastPrune) > idleLimiterTTL {
		for key, cl := range rl.clients {
			if now.Sub(cl.lastSeen) > idleLimiterTTL {
				delete(rl.clients, key)
			}
		}
		rl.lastPrune = now
	}
	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// Middleware answers 429 once a client exhausts its bucket
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			err := apperrors.NewRateLimited("Rate limit exceeded")
			rl.log.WithField("client_ip", ip).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), api_models.ErrorResponse{
				Success: false,
				Error:   err.PublicMessage(),
			})
			return
		}
		c.Next()
	}
}
