package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/forcemap/internal/apierr"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdleTimeout   = 3 * time.Minute
)

// RateLimiter enforces a global token bucket plus one bucket per client IP.
// The global limit protects the database; the per-IP limit keeps one client
// from starving the rest, which matters for the expensive layout-trigger
// endpoint.
type RateLimiter struct {
	global  *rate.Limiter
	perIP   map[string]*ipLimiter
	mu      sync.RWMutex
	sweeper *time.Ticker
	stop    chan struct{}
	ipRate  rate.Limit
	ipBurst int
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter with the given global and per-IP rates
// (requests per second) and bursts, and starts the idle-entry sweeper.
func NewRateLimiter(globalRate float64, globalBurst int, ipRate float64, ipBurst int) *RateLimiter {
	rl := &RateLimiter{
		global:  rate.NewLimiter(rate.Limit(globalRate), globalBurst),
		perIP:   make(map[string]*ipLimiter),
		sweeper: time.NewTicker(limiterSweepInterval),
		stop:    make(chan struct{}),
		ipRate:  rate.Limit(ipRate),
		ipBurst: ipBurst,
	}
	go rl.sweep()
	return rl
}

// getLimiter returns the bucket for ip, creating it on first sight.
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	entry, ok := rl.perIP[ip]
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !ok {
		// re-check; another request may have created it between the locks
		if entry, ok = rl.perIP[ip]; !ok {
			entry = &ipLimiter{limiter: rate.NewLimiter(rl.ipRate, rl.ipBurst)}
			rl.perIP[ip] = entry
		}
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// sweep drops buckets that have been idle past limiterIdleTimeout so the map
// does not grow with every client ever seen.
func (rl *RateLimiter) sweep() {
	for {
		select {
		case <-rl.sweeper.C:
			rl.mu.Lock()
			for ip, entry := range rl.perIP {
				if time.Since(entry.lastSeen) > limiterIdleTimeout {
					delete(rl.perIP, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop halts the sweeper goroutine.
func (rl *RateLimiter) Stop() {
	rl.sweeper.Stop()
	close(rl.stop)
}

// Limit rejects requests over either budget with a structured 429. The
// global check runs first so an exhausted instance answers cheaply.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.global.Allow() {
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitGlobal())
			return
		}
		if !rl.getLimiter(getClientIP(r)).Allow() {
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitIP())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP resolves the client address behind the usual proxy headers:
// first hop of X-Forwarded-For, then X-Real-IP, then RemoteAddr without the
// port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
