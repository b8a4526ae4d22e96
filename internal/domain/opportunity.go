package domain

import (
	"errors"
	"fmt"
	"time"
)

// Opportunity is an evaluated path. It is built fresh every cycle and never
// mutated after ranking.
type Opportunity struct {
	ID               string
	CycleID          string
	Path             Path
	SizedAmountUSD   float64
	GrossProfitUSD   float64 // after per-hop fees and slippage, before gas
	FeesUSD          float64
	SlippageUSD      float64
	GasCostUSD       float64
	NetProfitUSD     float64
	EdgeUSD          float64 // price discrepancy before any cost
	Confidence       ConfidenceLevel
	ConfidenceScore  float64
	ManipulationRisk bool
	Efficiency       float64 // NetProfitUSD per hop
	Actionable       bool
	DetectedAt       time.Time
}

// Hops is the number of swaps in the opportunity's path.
func (o Opportunity) Hops() int { return o.Path.Hops() }

// RejectReason names why a path was not turned into an opportunity.
type RejectReason string

const (
	RejectInsufficientPriceConfidence RejectReason = "insufficient_price_confidence"
	RejectManipulationDetected        RejectReason = "manipulation_detected"
	RejectInsufficientLiquidity       RejectReason = "insufficient_liquidity"
	RejectSizingFailed                RejectReason = "sizing_failed"
	RejectLowConfidence               RejectReason = "low_confidence"
	RejectBelowProfitFloor            RejectReason = "below_profit_floor"
	RejectGasUnavailable              RejectReason = "gas_unavailable"
	RejectInvalidPath                 RejectReason = "invalid_path"
)

// Rejection is the explicit "not an opportunity" result of an evaluation.
type Rejection struct {
	Reason RejectReason
	Detail string
}

// Reject builds a Rejection with a formatted detail.
func Reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "rejected: " + string(r.Reason)
	}
	return "rejected: " + string(r.Reason) + ": " + r.Detail
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (RejectReason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
