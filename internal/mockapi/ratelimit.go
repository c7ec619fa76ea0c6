package mockapi

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimiter is an in-memory echo RateLimiterStore that can also report
// and clear its buckets, backing /rate-limit/status and /rate-limit/reset.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	window   time.Duration
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	hits     int
}

// NewRateLimiter allows burst requests per window for each identifier.
func NewRateLimiter(burst int, window time.Duration) *RateLimiter {
	burst = max(burst, 1)
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    rate.Every(window / time.Duration(burst)),
		burst:    burst,
		window:   window,
		visitors: map[string]*visitor{},
		now:      time.Now,
	}
}

func (r *RateLimiter) Allow(identifier string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.expire(now)
	v, ok := r.visitors[identifier]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[identifier] = v
	}
	v.lastSeen = now
	v.hits++
	return v.limiter.AllowN(now, 1), nil
}

// expire drops visitors idle for a whole window; their bucket is full again.
func (r *RateLimiter) expire(now time.Time) {
	for id, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.window {
			delete(r.visitors, id)
		}
	}
}

type ActiveLimit struct {
	Identifier        string    `json:"identifier"`
	TimeWindowSeconds int       `json:"time_window_seconds"`
	Limit             int       `json:"limit"`
	Requests          int       `json:"requests"`
	Remaining         int       `json:"remaining"`
	LastRequest       time.Time `json:"last_request"`
}

type RateLimitStatus struct {
	Enabled           bool          `json:"enabled"`
	StorageType       string        `json:"storage_type"`
	TotalActiveLimits int           `json:"total_active_limits"`
	ActiveLimits      []ActiveLimit `json:"active_limits"`
}

func (r *RateLimiter) Status() RateLimitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.expire(now)
	limits := make([]ActiveLimit, 0, len(r.visitors))
	for id, v := range r.visitors {
		limits = append(limits, ActiveLimit{
			Identifier:        id,
			TimeWindowSeconds: int(r.window.Seconds()),
			Limit:             r.burst,
			Requests:          v.hits,
			Remaining:         max(int(v.limiter.TokensAt(now)), 0),
			LastRequest:       v.lastSeen.UTC(),
		})
	}
	sort.Slice(limits, func(i, j int) bool { return limits[i].Identifier < limits[j].Identifier })
	return RateLimitStatus{Enabled: true, StorageType: "memory", TotalActiveLimits: len(limits), ActiveLimits: limits}
}

// Reset clears every bucket and returns how many were dropped.
func (r *RateLimiter) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.visitors)
	r.visitors = map[string]*visitor{}
	return n
}

// Middleware limits by client IP, answering 429 in the API's error shape.
func (r *RateLimiter) Middleware() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: r,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return "ip:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return fail(c, http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return fail(c, http.StatusTooManyRequests, "Rate limit exceeded")
		},
	})
}
