package middleware

import (
	"fmt"
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limiter defaults: a steady 2 requests per second with bursts of 5.
const (
	DefaultRatePerSecond = 2
	DefaultBurst         = 5

	// idleTTL is how long an untouched bucket is kept. After this long it
	// has refilled completely, so dropping it changes nothing.
	idleTTL = 3 * time.Minute
)

// MsgNoClientIP is sent when no client address can be determined.
const MsgNoClientIP = "Couldn't find the client IP"

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	extractor IPExtractor
	now       func() time.Time

	mu        sync.Mutex
	visitors  map[netip.Addr]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter refilling perSecond tokens per second
// up to burst.
func NewRateLimiter(perSecond float64, burst int, extractor IPExtractor) *RateLimiter {
	return &RateLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		extractor: extractor,
		now:       time.Now,
		visitors:  make(map[netip.Addr]*visitor),
	}
}

// Handler is the middleware. Rejected requests get 429 with Retry-After
// set to the whole seconds until a token is available.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, ok := rl.extractor.ClientIP(r)
		if !ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(MsgNoClientIP))
			return
		}

		if wait, allowed := rl.take(ip); !allowed {
			secs := strconv.Itoa(int(math.Ceil(wait.Seconds())))
			w.Header().Set("Retry-After", secs)
			w.Header().Set("X-RateLimit-After", secs)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = fmt.Fprintf(w, "Too Many Requests! Wait for %ss", secs)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes a token for ip. When none is available it reports how long
// until one will be.
func (rl *RateLimiter) take(ip netip.Addr) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepLocked(now)

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return 0, false
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return wait, false
	}
	return 0, true
}

// sweepLocked drops idle buckets at most once per idleTTL.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < idleTTL {
		return
	}
	rl.lastSweep = now
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= idleTTL {
			delete(rl.visitors, ip)
		}
	}
}

// Len reports how many client buckets are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}
