package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterTTL = 10 * time.Minute

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

// RateLimit allows limit requests per window per client IP, with bursts up
// to limit. A non-positive limit disables the middleware.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	every := rate.Every(per / time.Duration(limit))
	retryAfter := strconv.Itoa(int((per / time.Duration(limit)).Seconds()) + 1)

	var (
		limiters  sync.Map
		sweepMu   sync.Mutex
		lastSweep = time.Now()
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			limiter := getOrCreateLimiter(&limiters, clientIPForRateLimit(r), every, limit, now)
			if !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}

			sweepMu.Lock()
			if now.Sub(lastSweep) > limiterTTL {
				lastSweep = now
				limiters.Range(func(key, value any) bool {
					if now.After(value.(*cachedLimiter).expiresAt) {
						limiters.Delete(key)
					}
					return true
				})
			}
			sweepMu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

func getOrCreateLimiter(limiters *sync.Map, key string, every rate.Limit, burst int, now time.Time) *rate.Limiter {
	if v, ok := limiters.Load(key); ok {
		cached := v.(*cachedLimiter)
		if now.Before(cached.expiresAt) {
			return cached.limiter
		}
		// expired, start a fresh bucket
	}
	cached := &cachedLimiter{limiter: rate.NewLimiter(every, burst), expiresAt: now.Add(limiterTTL)}
	limiters.Store(key, cached)
	return cached.limiter
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
