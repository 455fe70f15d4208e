package sharrock

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate            float64                                      // requests per second
	Burst           int                                          // max burst
	KeyFunc         func(r *http.Request) string                 // default: remote IP
	OnLimit         func(w http.ResponseWriter, r *http.Request) // default: 429 problem response
	CleanupInterval time.Duration                                // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                                // remove limiters idle longer than this (default: 5m)
}

// RemoteIP keys rate limiting by client address.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ServiceKey keys rate limiting by client address and addressed service, so
// one noisy service cannot starve a client's calls to the others. The
// service is the /<app>/<version>/<slug> prefix of the path without its
// extension.
func ServiceKey(r *http.Request) string {
	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	if n := len(parts); n > 0 {
		parts[n-1], _ = splitExt(parts[n-1])
	}
	return RemoteIP(r) + " " + strings.Join(parts, "/")
}

// RateLimit returns middleware that applies per-key rate limiting.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RemoteIP
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, _ *http.Request) {
			writeErrorResponse(w, Error(http.StatusTooManyRequests, "rate limit exceeded"))
		}
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5 * time.Minute
	}

	var (
		limiters    = cmap.New[*limiterEntry]()
		cleanupMu   sync.Mutex
		lastCleanup time.Time
	)

	prune := func(now time.Time) {
		if !cleanupMu.TryLock() {
			return
		}
		defer cleanupMu.Unlock()
		if now.Sub(lastCleanup) < cleanupInterval {
			return
		}
		for _, k := range limiters.Keys() {
			limiters.RemoveCb(k, func(_ string, e *limiterEntry, exists bool) bool {
				return exists && now.Sub(time.Unix(0, e.lastSeen.Load())) > maxIdle
			})
		}
		lastCleanup = now
	}

	retryAfter := "1"
	if cfg.Rate > 0 && cfg.Rate < 1 {
		retryAfter = strconv.FormatFloat(1/cfg.Rate, 'f', 0, 64)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			prune(now)

			entry := limiters.Upsert(cfg.KeyFunc(r), nil,
				func(exists bool, current, _ *limiterEntry) *limiterEntry {
					if exists {
						return current
					}
					return &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)}
				})
			entry.lastSeen.Store(now.UnixNano())

			if !entry.limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				cfg.OnLimit(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}
