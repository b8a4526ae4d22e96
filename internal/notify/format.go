package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/shopspring/decimal"
)

func usd(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// FormatOpportunity renders an actionable opportunity.
func FormatOpportunity(o domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Arbitrage %s (%d hops)", o.Path.ID, o.Hops())
	var b strings.Builder
	fmt.Fprintf(&b, "Size: %s\n", usd(o.SizedAmountUSD))
	fmt.Fprintf(&b, "Net profit: %s\n", usd(o.NetProfitUSD))
	fmt.Fprintf(&b, "Edge: %s, fees %s, slippage %s, gas %s\n",
		usd(o.EdgeUSD), usd(o.FeesUSD), usd(o.SlippageUSD), usd(o.GasCostUSD))
	fmt.Fprintf(&b, "Confidence: %s (%s)\n", o.Confidence, decimal.NewFromFloat(o.ConfidenceScore).StringFixed(2))
	fmt.Fprintf(&b, "Cycle: %s", o.CycleID)
	return title, b.String()
}

// FormatSimulation renders a back-test summary. The projection label is
// always included.
func FormatSimulation(s domain.SimulationSummary) (title, message string) {
	title = fmt.Sprintf("Simulation %d trials", s.Trials)
	var b strings.Builder
	fmt.Fprintf(&b, "Success: %d/%d (%s%%)\n",
		s.SuccessfulTrades, s.SuccessfulTrades+s.FailedTrades,
		decimal.NewFromFloat(s.SuccessRate*100).StringFixed(1))
	fmt.Fprintf(&b, "Profit %s, gas %s, net %s\n", usd(s.TotalProfitUSD), usd(s.TotalGasUSD), usd(s.NetProfitUSD))
	if s.Best != nil && s.Worst != nil {
		fmt.Fprintf(&b, "Best %s (%s), worst %s (%s)\n",
			usd(s.Best.RealizedUSD), s.Best.PathID, usd(s.Worst.RealizedUSD), s.Worst.PathID)
	}
	if s.SkippedTrials > 0 {
		fmt.Fprintf(&b, "Skipped: %d\n", s.SkippedTrials)
	}
	p := s.Projection
	fmt.Fprintf(&b, "Projection at %d trades/day: daily %s, weekly %s, annual %s\n",
		p.TradesPerDay, usd(p.Daily), usd(p.Weekly), usd(p.Annual))
	b.WriteString("_" + p.Label + "_")
	return title, b.String()
}

// FormatAbandoned renders a cycle that hit its deadline.
func FormatAbandoned(c domain.ScanCycle) (title, message string) {
	return "Scan cycle abandoned", fmt.Sprintf("Cycle %s exceeded its deadline after %s; %d of %d pairs priced, results discarded.",
		c.ID, c.Duration.Round(time.Millisecond), c.PairsAvailable, c.PairsRequested)
}
