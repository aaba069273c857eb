package billing

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/petvoice/subscriptions/pkg/cache"
)

// CheckLimiter holds one token bucket per user. Idle buckets fall out of the
// LRU after limiterIdle; a fresh bucket starts full.
type CheckLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.TTL[uuid.UUID, *rate.Limiter]
}

const limiterIdle = 10 * time.Minute

// NewCheckLimiter returns nil, which allows everything, when the rate is not
// positive.
func NewCheckLimiter(cfg Config, opts ...cache.Option) *CheckLimiter {
	if cfg.CheckRateLimit <= 0 {
		return nil
	}
	burst := max(cfg.CheckRateBurst, 1)
	size := cfg.CheckLimiterSize
	if size <= 0 {
		size = 10000
	}
	return &CheckLimiter{
		limit:    rate.Limit(cfg.CheckRateLimit),
		burst:    burst,
		limiters: cache.NewTTL[uuid.UUID, *rate.Limiter](size, limiterIdle, opts...),
	}
}

// Allow consumes one token from the user's bucket.
func (l *CheckLimiter) Allow(userID uuid.UUID, now time.Time) bool {
	if l == nil {
		return true
	}
	lim := l.limiters.GetOrSet(userID, func() *rate.Limiter {
		return rate.NewLimiter(l.limit, l.burst)
	})
	return lim.AllowN(now, 1)
}
