// Package evaluator turns a candidate path and a price snapshot into a sized,
// costed opportunity, or an explicit rejection.
package evaluator

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds sizing, cost and gating parameters. Category maps fall back
// to DefaultConfig for missing keys.
type Config struct {
	MinTradeUSD      float64
	MaxTradeUSD      float64
	FallbackTradeUSD float64 // 0 rejects paths with unknown liquidity
	TradeFraction    map[domain.Category]float64

	FeeBps                      float64
	FeeBpsByCategory            map[domain.Category]float64
	UnknownLiquiditySlippageBps float64
	GasUnitsPerHop              uint64

	ConfidenceFloor      map[domain.Category]domain.ConfidenceLevel
	HopPenalty           float64
	MinConfidenceScore   float64
	MinProfitUSD         float64
	ProfitPerExtraHopUSD float64
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		MinTradeUSD:      1_000,
		MaxTradeUSD:      50_000,
		FallbackTradeUSD: 5_000,
		TradeFraction: map[domain.Category]float64{
			domain.CategoryStablecoin: 0.05,
			domain.CategoryMajor:      0.03,
			domain.CategoryOther:      0.02,
		},
		FeeBps:                      25,
		FeeBpsByCategory:            map[domain.Category]float64{},
		UnknownLiquiditySlippageBps: 10,
		GasUnitsPerHop:              150_000,
		ConfidenceFloor: map[domain.Category]domain.ConfidenceLevel{
			domain.CategoryStablecoin: domain.ConfidenceMedium,
			domain.CategoryMajor:      domain.ConfidenceLow,
			domain.CategoryOther:      domain.ConfidenceLow,
		},
		HopPenalty:           0.10,
		MinConfidenceScore:   0.75,
		MinProfitUSD:         30,
		ProfitPerExtraHopUSD: 10,
	}
}

// Evaluator is stateless apart from its configuration and is safe for
// concurrent use.
type Evaluator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Evaluator.
func New(cfg Config, logger *slog.Logger) *Evaluator {
	def := DefaultConfig()
	cfg.TradeFraction = merge(cfg.TradeFraction, def.TradeFraction)
	cfg.ConfidenceFloor = merge(cfg.ConfidenceFloor, def.ConfidenceFloor)
	if cfg.FeeBpsByCategory == nil {
		cfg.FeeBpsByCategory = map[domain.Category]float64{}
	}
	if cfg.HopPenalty <= 0 {
		cfg.HopPenalty = def.HopPenalty
	}
	if cfg.GasUnitsPerHop == 0 {
		cfg.GasUnitsPerHop = def.GasUnitsPerHop
	}
	return &Evaluator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "evaluator")),
		now:    time.Now,
	}
}

// hop is the resolved consensus for one swap of a path.
type hop struct {
	from, to domain.Token
	price    domain.ConsensusPrice
}

// Evaluate walks path against snap. It returns a *domain.Rejection error
// when the path must not become an opportunity.
func (e *Evaluator) Evaluate(snap *domain.Snapshot, path domain.Path) (domain.Opportunity, error) {
	hops, err := e.resolve(snap, path)
	if err != nil {
		return domain.Opportunity{}, err
	}

	size, err := e.size(hops, path)
	if err != nil {
		return domain.Opportunity{}, err
	}

	// carried stays in start-amount terms; ratio converts it to the amount
	// returned. Costs are valued at the full path ratio so that gross, fees
	// and slippage add up to the frictionless edge.
	carried := size
	ratio := 1.0
	var fees, slippage float64
	minScore := math.Inf(1)
	for _, h := range hops {
		feeRate := e.feeRate(h.price.Category)
		fee := carried * feeRate
		afterFee := carried - fee

		slipRate := e.slippageRate(afterFee, h.price.LiquidityUSD)
		slip := afterFee * slipRate

		fees += fee
		slippage += slip
		carried = afterFee - slip
		ratio *= h.price.MedianPrice
		minScore = math.Min(minScore, h.price.Confidence.Score())
	}
	final := carried * ratio
	gross := final - size
	fees *= ratio
	slippage *= ratio

	gas, err := e.gasCost(snap, path.Hops())
	if err != nil {
		return domain.Opportunity{}, err
	}
	net := gross - gas

	score := minScore - e.cfg.HopPenalty*float64(path.Hops()-domain.MinPathHops)
	score = math.Round(score*1e9) / 1e9
	if score < e.cfg.MinConfidenceScore {
		return domain.Opportunity{}, domain.Reject(domain.RejectLowConfidence,
			"%s: score %.2f below %.2f", path.ID, score, e.cfg.MinConfidenceScore)
	}

	if floor := e.ProfitFloor(path.Hops()); net < floor {
		return domain.Opportunity{}, domain.Reject(domain.RejectBelowProfitFloor,
			"%s: net $%.2f below $%.2f", path.ID, net, floor)
	}

	return domain.Opportunity{
		ID:              uuid.NewString(),
		CycleID:         snap.CycleID,
		Path:            path,
		SizedAmountUSD:  size,
		GrossProfitUSD:  gross,
		FeesUSD:         fees,
		SlippageUSD:     slippage,
		GasCostUSD:      gas,
		NetProfitUSD:    net,
		EdgeUSD:         size*ratio - size,
		Confidence:      domain.ConfidenceForScore(score),
		ConfidenceScore: score,
		Efficiency:      net / float64(path.Hops()),
		DetectedAt:      e.now(),
	}, nil
}

// CalculateOptimalPositionSize returns the USD amount to risk on path: the
// smallest hop liquidity times the strictest trade fraction among the path's
// tokens, clamped to [MinTradeUSD, MaxTradeUSD] and rounded down to cents.
func (e *Evaluator) CalculateOptimalPositionSize(snap *domain.Snapshot, path domain.Path) (float64, error) {
	hops, err := e.resolve(snap, path)
	if err != nil {
		return 0, err
	}
	return e.size(hops, path)
}

// ProfitFloor is the minimum net profit for a path of the given length.
func (e *Evaluator) ProfitFloor(hops int) float64 {
	extra := max(hops-domain.MinPathHops, 0)
	return e.cfg.MinProfitUSD + float64(extra)*e.cfg.ProfitPerExtraHopUSD
}

func (e *Evaluator) resolve(snap *domain.Snapshot, path domain.Path) ([]hop, error) {
	if n := path.Hops(); n < domain.MinPathHops || n > domain.MaxPathHops {
		return nil, domain.Reject(domain.RejectInvalidPath, "%s: %d hops", path.ID, n)
	}
	hops := make([]hop, 0, path.Hops())
	for i := 0; i+1 < len(path.Tokens); i++ {
		from, to := path.Tokens[i], path.Tokens[i+1]
		cp, ok := snap.Price(from, to)
		if !ok {
			return nil, domain.Reject(domain.RejectInsufficientPriceConfidence,
				"%s: no consensus for %s/%s", path.ID, from, to)
		}
		if cp.ManipulationDetected {
			return nil, domain.Reject(domain.RejectManipulationDetected,
				"%s: %s/%s deviation %.2f%%", path.ID, from, to, cp.MaxDeviation*100)
		}
		if floor := e.cfg.ConfidenceFloor[cp.Category]; cp.Confidence < floor {
			return nil, domain.Reject(domain.RejectInsufficientPriceConfidence,
				"%s: %s/%s confidence %s below %s", path.ID, from, to, cp.Confidence, floor)
		}
		hops = append(hops, hop{from: from, to: to, price: cp})
	}
	return hops, nil
}

func (e *Evaluator) size(hops []hop, path domain.Path) (float64, error) {
	minLiq := math.Inf(1)
	for _, h := range hops {
		if h.price.LiquidityUSD <= 0 {
			minLiq = 0
			break
		}
		minLiq = math.Min(minLiq, h.price.LiquidityUSD)
	}

	if minLiq == 0 {
		if e.cfg.FallbackTradeUSD <= 0 {
			return 0, domain.Reject(domain.RejectSizingFailed, "%s: liquidity unknown", path.ID)
		}
		size := math.Min(math.Max(e.cfg.FallbackTradeUSD, e.cfg.MinTradeUSD), e.cfg.MaxTradeUSD)
		e.logger.Debug("liquidity unknown, using fallback size",
			slog.String("path", path.ID),
			slog.Float64("size_usd", size),
		)
		return cents(size), nil
	}

	capUSD := minLiq * e.tradeFraction(path)
	if capUSD < e.cfg.MinTradeUSD {
		return 0, domain.Reject(domain.RejectInsufficientLiquidity,
			"%s: cap $%.2f below minimum $%.2f", path.ID, capUSD, e.cfg.MinTradeUSD)
	}
	return cents(math.Min(capUSD, e.cfg.MaxTradeUSD)), nil
}

// tradeFraction is the smallest fraction among the categories of the path's
// tokens.
func (e *Evaluator) tradeFraction(path domain.Path) float64 {
	frac := math.Inf(1)
	for _, t := range path.Tokens {
		if f, ok := e.cfg.TradeFraction[t.Category]; ok {
			frac = math.Min(frac, f)
		}
	}
	if math.IsInf(frac, 1) {
		return e.cfg.TradeFraction[domain.CategoryOther]
	}
	return frac
}

func (e *Evaluator) feeRate(cat domain.Category) float64 {
	if bps, ok := e.cfg.FeeBpsByCategory[cat]; ok {
		return bps / 10_000
	}
	return e.cfg.FeeBps / 10_000
}

// slippageRate is the constant-product price impact of trading amount into a
// pool whose input side holds half of liquidityUSD.
func (e *Evaluator) slippageRate(amount, liquidityUSD float64) float64 {
	if liquidityUSD <= 0 {
		return e.cfg.UnknownLiquiditySlippageBps / 10_000
	}
	return amount / (liquidityUSD/2 + amount)
}

func (e *Evaluator) gasCost(snap *domain.Snapshot, hops int) (float64, error) {
	if snap.GasPriceGwei <= 0 || snap.NativeUSD <= 0 {
		return 0, domain.Reject(domain.RejectGasUnavailable,
			"gas %.2f gwei, native $%.2f", snap.GasPriceGwei, snap.NativeUSD)
	}
	units := float64(e.cfg.GasUnitsPerHop) * float64(hops)
	return snap.GasPriceGwei * 1e-9 * units * snap.NativeUSD, nil
}

// cents rounds v down to two decimal places.
func cents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Truncate(2).Float64()
	return f
}

func merge[V any](m, def map[domain.Category]V) map[domain.Category]V {
	out := make(map[domain.Category]V, len(def))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String renders an opportunity for logs and notifications.
func String(o domain.Opportunity) string {
	return fmt.Sprintf("%s size=$%s net=$%s conf=%s",
		o.Path.ID,
		decimal.NewFromFloat(o.SizedAmountUSD).StringFixed(2),
		decimal.NewFromFloat(o.NetProfitUSD).StringFixed(2),
		o.Confidence)
}
