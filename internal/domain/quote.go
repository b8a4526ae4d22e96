package domain

import (
	"fmt"
	"math"
	"time"
)

// Quote is one price/liquidity observation from a single source. It is
// consumed once by the aggregator and never mutated.
type Quote struct {
	SourceID     string
	Base         Token
	Quote        Token
	Price        float64 // units of Quote per unit of Base
	LiquidityUSD float64 // 0 when the source does not report liquidity
	ObservedAt   time.Time
	Latency      time.Duration
}

// NewQuote validates a raw observation at the adapter boundary.
func NewQuote(sourceID string, base, quote Token, price, liquidityUSD float64, observedAt time.Time, latency time.Duration) (Quote, error) {
	switch {
	case sourceID == "":
		return Quote{}, fmt.Errorf("%w: empty source id", ErrInvalidQuote)
	case base.Symbol == "" || quote.Symbol == "":
		return Quote{}, fmt.Errorf("%w: missing token", ErrInvalidQuote)
	case base.Symbol == quote.Symbol:
		return Quote{}, fmt.Errorf("%w: %s quoted against itself", ErrInvalidQuote, base.Symbol)
	case math.IsNaN(price) || math.IsInf(price, 0) || price <= 0:
		return Quote{}, fmt.Errorf("%w: %s price %v", ErrInvalidQuote, sourceID, price)
	case math.IsNaN(liquidityUSD) || math.IsInf(liquidityUSD, 0) || liquidityUSD < 0:
		return Quote{}, fmt.Errorf("%w: %s liquidity %v", ErrInvalidQuote, sourceID, liquidityUSD)
	case observedAt.IsZero():
		return Quote{}, fmt.Errorf("%w: %s missing timestamp", ErrInvalidQuote, sourceID)
	}
	return Quote{
		SourceID:     sourceID,
		Base:         base,
		Quote:        quote,
		Price:        price,
		LiquidityUSD: liquidityUSD,
		ObservedAt:   observedAt,
		Latency:      latency,
	}, nil
}

// Pair returns the directed pair key for the quote.
func (q Quote) Pair() PairKey { return NewPairKey(q.Base, q.Quote) }

// Fresh reports whether the quote is no older than maxAge at now.
func (q Quote) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(q.ObservedAt) <= maxAge
}
