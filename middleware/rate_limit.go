package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/quill/utils"
)

const limiterIdle = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

type ipLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	nextSweep time.Time
}

func newIPLimiters(perMinute int, now func() time.Time) *ipLimiters {
	perMinute = max(perMinute, 1)
	return &ipLimiters{
		limiters:  map[string]*rateLimiter{},
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     max(perMinute/2, 1),
		now:       now,
		nextSweep: now().Add(limiterIdle),
	}
}

// RateLimit applies a per client IP token bucket to POST requests; reads are never limited.
func RateLimit(perMinute int) gin.HandlerFunc {
	l := newIPLimiters(perMinute, time.Now)

	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost {
			ctx.Next()
			return
		}
		if !l.get(ctx.ClientIP()).Allow() {
			utils.Sugar.Warnw("rate limit exceeded", "ip", ctx.ClientIP(), "path", ctx.Request.URL.Path)
			utils.Abort(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			return
		}
		ctx.Next()
	}
}

func (l *ipLimiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !now.Before(l.nextSweep) {
		// idle buckets are dropped at most once per idle period
		for k, v := range l.limiters {
			if now.After(v.expires) {
				delete(l.limiters, k)
			}
		}
		l.nextSweep = now.Add(limiterIdle)
	}

	if v, ok := l.limiters[key]; ok {
		v.expires = now.Add(limiterIdle)
		return v.limiter
	}
	v := &rateLimiter{limiter: rate.NewLimiter(l.limit, l.burst), expires: now.Add(limiterIdle)}
	l.limiters[key] = v
	return v.limiter
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
