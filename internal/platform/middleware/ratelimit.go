package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hearth/internal/platform/metrics"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/httputil"
	"hearth/pkg/platform/middleware/metadata"
	"hearth/pkg/requestcontext"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	sweepEveryN      = 1024
	burstMultiplier  = 2
	minimumBurstSize = 1
)

// RateLimiter keeps one token bucket per caller: the authenticated user when
// known, the client IP otherwise.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	entries  map[string]*limiterEntry
	requests int
	metrics  *metrics.Metrics
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per caller. rps <= 0 disables
// limiting.
func NewRateLimiter(rps float64, m *metrics.Metrics) *RateLimiter {
	burst := int(rps * burstMultiplier)
	if burst < minimumBurstSize {
		burst = minimumBurstSize
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		metrics: m,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.requests++
	if l.requests%sweepEveryN == 0 {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Middleware rejects callers over their budget with 429. It must run after
// authentication so that users are keyed by identity.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + metadata.ClientIPFromRequest(r)
		if userID := requestcontext.UserID(r.Context()); !userID.IsNil() {
			key = "user:" + userID.String()
		}
		if !l.Allow(key) {
			l.metrics.IncrementRateLimited(routePattern(r))
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
