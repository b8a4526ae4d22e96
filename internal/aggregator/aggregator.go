// Package aggregator reconciles quotes from independent sources into a
// consensus price with a confidence label and a manipulation flag.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Config holds consensus parameters. Category maps fall back to the
// package defaults for missing keys.
type Config struct {
	SourceTimeout  time.Duration
	MaxQuoteAge    time.Duration
	MaxConcurrency int
	MinSources     map[domain.Category]int
	MaxDeviation   map[domain.Category]float64
	StableBandLow  float64
	StableBandHigh float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SourceTimeout:  2 * time.Second,
		MaxQuoteAge:    5 * time.Second,
		MaxConcurrency: 32,
		MinSources: map[domain.Category]int{
			domain.CategoryStablecoin: 2,
			domain.CategoryMajor:      2,
			domain.CategoryOther:      2,
		},
		MaxDeviation: map[domain.Category]float64{
			domain.CategoryStablecoin: 0.15,
			domain.CategoryMajor:      0.20,
			domain.CategoryOther:      0.25,
		},
		StableBandLow:  0.95,
		StableBandHigh: 1.05,
	}
}

// Aggregator fans out to every configured source for a pair. Calls for
// different pairs are independent; the only thing they share is the cap on
// in-flight source requests.
type Aggregator struct {
	sources  []domain.QuoteSource
	cfg      Config
	inflight *semaphore.Weighted
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Aggregator over sources.
func New(sources []domain.QuoteSource, cfg Config, logger *slog.Logger) *Aggregator {
	def := DefaultConfig()
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = def.SourceTimeout
	}
	if cfg.MaxQuoteAge <= 0 {
		cfg.MaxQuoteAge = def.MaxQuoteAge
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.StableBandLow <= 0 || cfg.StableBandHigh <= cfg.StableBandLow {
		cfg.StableBandLow, cfg.StableBandHigh = def.StableBandLow, def.StableBandHigh
	}
	cfg.MinSources = withDefaults(cfg.MinSources, def.MinSources)
	cfg.MaxDeviation = withDefaults(cfg.MaxDeviation, def.MaxDeviation)

	return &Aggregator{
		sources:  sources,
		cfg:      cfg,
		inflight: semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		logger:   logger.With(slog.String("component", "aggregator")),
		now:      time.Now,
	}
}

// SourceIDs lists the configured sources.
func (a *Aggregator) SourceIDs() []string {
	ids := make([]string, len(a.sources))
	for i, s := range a.sources {
		ids[i] = s.ID()
	}
	return ids
}

// GetConsensusPrice queries every source for base/quote and reconciles the
// fresh results. It returns an error wrapping domain.ErrNotAvailable when
// fewer than the category's minimum number of sources answered in time.
func (a *Aggregator) GetConsensusPrice(ctx context.Context, base, quote domain.Token) (domain.ConsensusPrice, error) {
	pair := domain.NewPairKey(base, quote)
	results := make([]*domain.Quote, len(a.sources))

	// Source failures are independent, so the group never cancels siblings.
	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			q, err := a.fetch(ctx, src, base, quote)
			if err != nil {
				a.logger.DebugContext(ctx, "source failed",
					slog.String("source", src.ID()),
					slog.String("pair", pair.String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.ConsensusPrice{}, fmt.Errorf("aggregator: %s: %w", pair, err)
	}

	quotes := make([]domain.Quote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return a.Reconcile(base, quote, quotes)
}

func (a *Aggregator) fetch(ctx context.Context, src domain.QuoteSource, base, quote domain.Token) (domain.Quote, error) {
	if err := a.inflight.Acquire(ctx, 1); err != nil {
		return domain.Quote{}, err
	}
	defer a.inflight.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()

	q, err := src.Fetch(callCtx, base, quote)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Base.Symbol != base.Symbol || q.Quote.Symbol != quote.Symbol {
		return domain.Quote{}, fmt.Errorf("%w: %s answered %s for %s", domain.ErrInvalidQuote, src.ID(), q.Pair(), domain.NewPairKey(base, quote))
	}
	if !q.Fresh(a.now(), a.cfg.MaxQuoteAge) {
		return domain.Quote{}, fmt.Errorf("%w: %s observed %s ago", domain.ErrStaleQuote, src.ID(), a.now().Sub(q.ObservedAt).Round(time.Millisecond))
	}
	return q, nil
}

// Reconcile turns an already-collected set of quotes into a consensus price.
// Stale quotes are dropped before counting.
func (a *Aggregator) Reconcile(base, quote domain.Token, quotes []domain.Quote) (domain.ConsensusPrice, error) {
	now := a.now()
	cat := domain.PairCategory(base, quote)
	pair := domain.NewPairKey(base, quote)

	prices := make([]float64, 0, len(quotes))
	liquidity := 0.0
	for _, q := range quotes {
		if !q.Fresh(now, a.cfg.MaxQuoteAge) {
			continue
		}
		prices = append(prices, q.Price)
		if q.LiquidityUSD > 0 && (liquidity == 0 || q.LiquidityUSD < liquidity) {
			liquidity = q.LiquidityUSD
		}
	}

	need := a.cfg.MinSources[cat]
	if len(prices) < need || len(prices) == 0 {
		return domain.ConsensusPrice{}, fmt.Errorf("aggregator: %s: %d of %d sources: %w", pair, len(prices), need, domain.ErrNotAvailable)
	}

	median := Median(prices)
	maxDev := MaxDeviation(prices, median)

	manipulated := maxDev > a.cfg.MaxDeviation[cat]
	if cat == domain.CategoryStablecoin && (median < a.cfg.StableBandLow || median > a.cfg.StableBandHigh) {
		manipulated = true
	}
	if manipulated {
		a.logger.Warn("manipulation suspected",
			slog.String("pair", pair.String()),
			slog.Float64("median", median),
			slog.Float64("max_deviation", maxDev),
			slog.Int("sources", len(prices)),
		)
	}

	return domain.ConsensusPrice{
		Base:                 base,
		Quote:                quote,
		Category:             cat,
		MedianPrice:          median,
		Confidence:           Confidence(len(prices), maxDev),
		ManipulationDetected: manipulated,
		ContributingSources:  len(prices),
		MaxDeviation:         maxDev,
		LiquidityUSD:         liquidity,
		ComputedAt:           now,
	}, nil
}

// Median returns the median of prices: the middle value, or the mean of the
// two middle values for an even count. It does not modify prices.
func Median(prices []float64) float64 {
	if len(prices) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), prices...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// MaxDeviation returns max |p - median| / median.
func MaxDeviation(prices []float64, median float64) float64 {
	if median <= 0 {
		return math.Inf(1)
	}
	var dev float64
	for _, p := range prices {
		dev = math.Max(dev, math.Abs(p-median)/median)
	}
	return dev
}

// Confidence maps source count and spread onto the confidence ladder. More
// sources or a tighter spread never lower the result.
func Confidence(sources int, maxDev float64) domain.ConfidenceLevel {
	switch {
	case maxDev <= 0.01 && sources >= 4:
		return domain.ConfidenceVeryHigh
	case maxDev <= 0.02 && sources >= 3:
		return domain.ConfidenceHigh
	case maxDev <= 0.05 && sources >= 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// IsNotAvailable reports whether err means the pair had no consensus.
func IsNotAvailable(err error) bool {
	return errors.Is(err, domain.ErrNotAvailable)
}

func withDefaults[V any](m, def map[domain.Category]V) map[domain.Category]V {
	out := make(map[domain.Category]V, len(def))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range m {
		out[k] = v
	}
	return out
}
