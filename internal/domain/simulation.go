package domain

import "time"

// ProjectionLabel accompanies every projection so it is never read as a
// forecast.
const ProjectionLabel = "linear projection assuming constant opportunity frequency; not a guarantee"

// TradeOutcome is one simulated trial.
type TradeOutcome struct {
	Trial         int
	OpportunityID string
	PathID        string
	Success       bool
	GasMultiplier float64
	GasCostUSD    float64
	RealizedUSD   float64
}

// SimulationError records an opportunity the simulator could not replay.
type SimulationError struct {
	Trial         int
	OpportunityID string
	Reason        string
}

// Projection scales the mean realized profit per trade to longer horizons.
type Projection struct {
	TradesPerDay int
	Daily        float64
	Weekly       float64
	Annual       float64
	Label        string
}

// SimulationSummary aggregates a back-test batch.
type SimulationSummary struct {
	ID               string
	Trials           int
	SuccessfulTrades int
	FailedTrades     int
	SkippedTrials    int
	SuccessRate      float64
	TotalProfitUSD   float64 // realized gross of successful trades, before gas
	TotalGasUSD      float64 // gas spent across every executed trial
	NetProfitUSD     float64
	GasEfficiency    float64 // NetProfitUSD / TotalGasUSD, 0 when no gas was spent
	Best             *TradeOutcome
	Worst            *TradeOutcome
	Errors           []SimulationError
	Projection       Projection
	Seed             uint64
	CreatedAt        time.Time
}
