package scanner

import "math"

// Volatility tracks the reference pair between cycles and decides when the
// scanner should poll faster. It is owned by a single Scanner goroutine.
type Volatility struct {
	threshold float64
	last      float64
}

// NewVolatility creates a tracker that flags relative moves above threshold.
func NewVolatility(threshold float64) *Volatility {
	return &Volatility{threshold: threshold}
}

// Observe records price and returns the relative move since the previous
// observation and whether it exceeded the threshold. The first observation
// and non-positive prices never trigger.
func (v *Volatility) Observe(price float64) (move float64, fast bool) {
	if price <= 0 || math.IsNaN(price) {
		return 0, false
	}
	prev := v.last
	v.last = price
	if prev <= 0 {
		return 0, false
	}
	move = math.Abs(price-prev) / prev
	return move, v.threshold > 0 && move > v.threshold
}

// Last returns the most recent reference price, 0 before the first one.
func (v *Volatility) Last() float64 { return v.last }
