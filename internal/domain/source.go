package domain

import (
	"context"
	"time"
)

// QuoteSource returns a single price/liquidity observation for a pair from
// one venue. Implementations must honour ctx cancellation.
type QuoteSource interface {
	ID() string
	Fetch(ctx context.Context, base, quote Token) (Quote, error)
}

// GasOracle reports the current gas price in gwei.
type GasOracle interface {
	GasPriceGwei(ctx context.Context) (float64, error)
}

// ExecutionResult is what an external executor reports back.
type ExecutionResult struct {
	Success     bool
	TxHash      string
	GasUsedUSD  float64
	RealizedUSD float64
	FinishedAt  time.Time
}

// TradeExecutor submits an opportunity on-chain. The scanner only produces
// ranked candidates and never calls it.
type TradeExecutor interface {
	Execute(ctx context.Context, opp Opportunity) (ExecutionResult, error)
}
