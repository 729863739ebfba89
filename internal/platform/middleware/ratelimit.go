package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/httputil"
	"taskboard/pkg/requestcontext"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 1024
)

// IPRateLimiter throttles requests per client IP with a token bucket per address.
type IPRateLimiter struct {
	rps      rate.Limit
	burst    int
	logger   *slog.Logger
	disabled bool
	now      func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	calls    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitOption configures an IPRateLimiter.
type RateLimitOption func(*IPRateLimiter)

// WithRateLimitDisabled turns the limiter into a pass-through.
func WithRateLimitDisabled(disabled bool) RateLimitOption {
	return func(l *IPRateLimiter) {
		l.disabled = disabled
	}
}

// WithRateLimitClock overrides the clock used for idle eviction.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(l *IPRateLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewIPRateLimiter allows rps requests per second per IP with the given burst.
func NewIPRateLimiter(rps float64, burst int, logger *slog.Logger, opts ...RateLimitOption) *IPRateLimiter {
	l := &IPRateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		logger:   logger,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.disabled {
		logger.Info("auth rate limiting disabled")
	}
	return l
}

// Allow consumes one token for ip and reports whether the request may proceed
// and, if not, how long until a token frees up.
func (l *IPRateLimiter) Allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%limiterSweepEvery == 0 {
		l.evictIdle(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *IPRateLimiter) evictIdle(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, ip)
		}
	}
}

// RateLimitByIP rejects requests beyond the per-IP budget with 429.
// It reads the client IP set by the metadata middleware.
func (l *IPRateLimiter) RateLimitByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))

		allowed, retryAfter := l.Allow(ip)
		if !allowed {
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", ip,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Too many requests, please retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
