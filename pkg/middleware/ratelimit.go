package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/platinummonkey/helpdesk-rbac/pkg/contextkeys"
	"github.com/platinummonkey/helpdesk-rbac/pkg/httputil"
	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// DefaultMaxCallers bounds the number of buckets the in-memory limiter keeps
const DefaultMaxCallers = 10000

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         60,
	}
}

// Enabled reports whether the configuration limits anything
func (c *RateLimitConfig) Enabled() bool {
	return c != nil && c.RequestsPerWindow > 0 && c.WindowDuration > 0
}

// Result is the outcome of one Allow call
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a caller may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RateLimiter is a per-caller token bucket held in process memory.
// Idle buckets are evicted once they would have refilled completely.
type RateLimiter struct {
	config  *RateLimitConfig
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	now     func() time.Time
}

// NewRateLimiter creates a new in-memory rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	limit := rate.Limit(float64(config.RequestsPerWindow) / config.WindowDuration.Seconds())
	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}

	idle := config.WindowDuration
	if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
		idle = refill
	}

	return &RateLimiter{
		config:  config,
		limit:   limit,
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](DefaultMaxCallers, nil, idle),
		now:     time.Now,
	}
}

// Allow takes one token from the caller's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := rl.now()

	rl.mu.Lock()
	bucket, ok := rl.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(rl.limit, rl.burst)
	}
	// Re-adding restarts the idle timer
	rl.buckets.Add(key, bucket)
	rl.mu.Unlock()

	result := Result{Limit: rl.burst}
	if bucket.AllowN(now, 1) {
		result.Allowed = true
		result.Remaining = int(math.Max(0, math.Floor(bucket.TokensAt(now))))
		return result, nil
	}

	reservation := bucket.ReserveN(now, 1)
	result.RetryAfter = reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return result, nil
}

// Len returns the number of tracked callers
func (rl *RateLimiter) Len() int {
	return rl.buckets.Len()
}

// RateLimitMiddleware rejects callers that exceed their limit with 429.
// Limiter errors let the request through.
func RateLimitMiddleware(limiter Limiter, name string, log *logrus.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	if log == nil {
		log = logrus.New()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := CallerKey(r)

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"limiter":    name,
					"request_id": contextkeys.GetRequestID(r.Context()),
				}).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				retry := int(math.Ceil(result.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				metrics.RecordRateLimited(name)
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerKey identifies the caller by verified email, or by client address
// when the request carries no identity.
func CallerKey(r *http.Request) string {
	if email := contextkeys.GetUserID(r.Context()); email != "" {
		return "user:" + email
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop, falling back to RemoteAddr
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
