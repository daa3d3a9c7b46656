package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*clientLimiter
	limit      rate.Limit
	burst      int
	trustProxy bool
	now        func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. trustProxy enables X-Forwarded-For and X-Real-IP.
func NewRateLimiter(rps float64, burst int, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*clientLimiter),
		limit:      rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

// Reserve takes a token for ip. When none is available it returns false and
// how long the client should wait.
func (rl *RateLimiter) Reserve(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	cl, ok := rl.limiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	if cl.limiter.AllowN(now, 1) {
		return true, 0
	}
	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// Cleanup removes buckets idle for longer than the idle TTL.
func (rl *RateLimiter) Cleanup() {
	cutoff := rl.now().Add(-limiterIdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// RunCleanup calls Cleanup periodically until done is closed.
func (rl *RateLimiter) RunCleanup(done <-chan struct{}) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, rl.trustProxy)
		if ok, wait := rl.Reserve(ip); !ok {
			seconds := int(wait.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, please try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP address. Proxy headers are only honored
// when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
