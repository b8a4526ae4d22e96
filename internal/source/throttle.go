// Package source holds the quote source plumbing shared by every venue
// adapter: per-source throttling and an optional shared quota.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"golang.org/x/time/rate"
)

// Quota shares a request budget for one source across processes.
type Quota struct {
	Limiter domain.RateLimiter
	Limit   int
	Window  time.Duration
}

// Gate paces requests to one upstream API: a minimum delay between requests
// in this process, plus the shared quota when one is configured. Adapters
// that cache responses call Wait only before a real request.
type Gate struct {
	id      string
	limiter *rate.Limiter
	quota   *Quota
	logger  *slog.Logger
}

// NewGate creates a gate for the source id. A zero minInterval disables
// local pacing; a nil quota disables the shared budget.
func NewGate(id string, minInterval time.Duration, quota *Quota, logger *slog.Logger) *Gate {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if quota != nil && (quota.Limiter == nil || quota.Limit <= 0 || quota.Window <= 0) {
		quota = nil
	}
	return &Gate{
		id:      id,
		limiter: rate.NewLimiter(limit, 1),
		quota:   quota,
		logger:  logger.With(slog.String("source", id)),
	}
}

// Wait blocks until the next request slot. Waiting honours ctx, so a
// caller's timeout also bounds time spent queued.
func (g *Gate) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("source %s: throttle: %w", g.id, err)
	}
	if g.quota == nil {
		return nil
	}
	allowed, err := g.quota.Limiter.Allow(ctx, "source:"+g.id, g.quota.Limit, g.quota.Window)
	switch {
	case err != nil:
		// Shared quota is best effort; the local limiter still applies.
		g.logger.DebugContext(ctx, "quota check failed", slog.String("error", err.Error()))
	case !allowed:
		return fmt.Errorf("source %s: %w", g.id, domain.ErrRateLimited)
	}
	return nil
}

// Throttled passes every Fetch through a Gate, for sources where each call
// is a request upstream (RPC venues). Each source gets its own Throttled.
type Throttled struct {
	inner domain.QuoteSource
	gate  *Gate
}

// NewThrottled wraps inner; see NewGate for minInterval and quota.
func NewThrottled(inner domain.QuoteSource, minInterval time.Duration, quota *Quota, logger *slog.Logger) *Throttled {
	return &Throttled{
		inner: inner,
		gate:  NewGate(inner.ID(), minInterval, quota, logger),
	}
}

// ID returns the wrapped source's ID.
func (t *Throttled) ID() string { return t.inner.ID() }

// Fetch waits for the source's next slot and delegates.
func (t *Throttled) Fetch(ctx context.Context, base, quote domain.Token) (domain.Quote, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return domain.Quote{}, err
	}
	return t.inner.Fetch(ctx, base, quote)
}

var _ domain.QuoteSource = (*Throttled)(nil)
