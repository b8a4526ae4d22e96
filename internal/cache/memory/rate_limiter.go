package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A bucket refills limit tokens per window, which approximates the Redis
// sliding window closely enough for a single process.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	waitRate rate.Limit
}

// NewRateLimiter creates a RateLimiter. Wait admits waitLimit calls per
// waitWindow for each key.
func NewRateLimiter(waitLimit int, waitWindow time.Duration) *RateLimiter {
	if waitLimit <= 0 {
		waitLimit = 1
	}
	if waitWindow <= 0 {
		waitWindow = time.Second
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		waitRate: rate.Every(waitWindow / time.Duration(waitLimit)),
	}
}

func (rl *RateLimiter) limiter(key string, r rate.Limit, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(r, burst)
		rl.limiters[key] = l
		return l
	}
	if l.Limit() != r {
		l.SetLimit(r)
	}
	if l.Burst() != burst {
		l.SetBurst(burst)
	}
	return l
}

// Allow reports whether key may make another call.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	r := rate.Limit(float64(limit) / window.Seconds())
	return rl.limiter(key, r, limit).Allow(), nil
}

// Wait blocks until key may proceed under the default budget.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.limiter(key, rl.waitRate, 1).Wait(ctx)
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
