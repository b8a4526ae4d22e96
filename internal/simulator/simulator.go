// Package simulator replays ranked opportunities against a stochastic model
// of gas variance and execution failure. It is a back-testing tool and has no
// influence on live ranking.
package simulator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/google/uuid"
)

// Config holds the sampling model.
type Config struct {
	SuccessProbability float64
	GasStdDev          float64
	ProfitMean         float64
	ProfitStdDev       float64
	TradesPerDay       int
	Seed               uint64
}

// DefaultConfig returns the model used for back-tests.
func DefaultConfig() Config {
	return Config{
		SuccessProbability: 0.9,
		GasStdDev:          0.2,
		ProfitMean:         0.95,
		ProfitStdDev:       0.05,
		TradesPerDay:       400,
		Seed:               1,
	}
}

// ErrNoInput is returned when there is nothing to simulate.
var ErrNoInput = errors.New("simulator: no opportunities")

// Simulator runs seeded Monte Carlo batches. Each Simulate call starts from
// the configured seed, so equal inputs give equal summaries.
type Simulator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Simulator.
func New(cfg Config, logger *slog.Logger) *Simulator {
	if cfg.TradesPerDay <= 0 {
		cfg.TradesPerDay = DefaultConfig().TradesPerDay
	}
	return &Simulator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "simulator")),
		now:    time.Now,
	}
}

// Simulate runs trials trials; trial t replays opps[t % len(opps)].
// Malformed opportunities are recorded in Errors and skipped.
func (s *Simulator) Simulate(opps []domain.Opportunity, trials int) (domain.SimulationSummary, error) {
	if len(opps) == 0 {
		return domain.SimulationSummary{}, ErrNoInput
	}
	if trials < 1 {
		return domain.SimulationSummary{}, fmt.Errorf("simulator: trials must be >= 1, got %d", trials)
	}

	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))
	sum := domain.SimulationSummary{
		ID:        uuid.NewString(),
		Trials:    trials,
		Seed:      s.cfg.Seed,
		CreatedAt: s.now(),
	}

	var best, worst *domain.TradeOutcome
	for t := 0; t < trials; t++ {
		o := opps[t%len(opps)]
		if err := validate(o); err != nil {
			sum.SkippedTrials++
			sum.Errors = append(sum.Errors, domain.SimulationError{Trial: t, OpportunityID: o.ID, Reason: err.Error()})
			continue
		}

		gasMult := math.Max(0, 1+s.cfg.GasStdDev*rng.NormFloat64())
		success := rng.Float64() < s.cfg.SuccessProbability
		out := domain.TradeOutcome{
			Trial:         t,
			OpportunityID: o.ID,
			PathID:        o.Path.ID,
			Success:       success,
			GasMultiplier: gasMult,
			GasCostUSD:    o.GasCostUSD * gasMult,
		}
		if success {
			realized := o.GrossProfitUSD * (s.cfg.ProfitMean + s.cfg.ProfitStdDev*rng.NormFloat64())
			out.RealizedUSD = realized - out.GasCostUSD
			sum.SuccessfulTrades++
			sum.TotalProfitUSD += realized
		} else {
			// Gas is spent on a revert.
			out.RealizedUSD = -out.GasCostUSD
			sum.FailedTrades++
		}
		sum.TotalGasUSD += out.GasCostUSD

		if best == nil || out.RealizedUSD > best.RealizedUSD {
			b := out
			best = &b
		}
		if worst == nil || out.RealizedUSD < worst.RealizedUSD {
			w := out
			worst = &w
		}
	}

	executed := sum.SuccessfulTrades + sum.FailedTrades
	sum.NetProfitUSD = sum.TotalProfitUSD - sum.TotalGasUSD
	sum.Best, sum.Worst = best, worst
	if executed > 0 {
		sum.SuccessRate = float64(sum.SuccessfulTrades) / float64(executed)
		perTrade := sum.NetProfitUSD / float64(executed)
		daily := perTrade * float64(s.cfg.TradesPerDay)
		sum.Projection = domain.Projection{
			TradesPerDay: s.cfg.TradesPerDay,
			Daily:        daily,
			Weekly:       daily * 7,
			Annual:       daily * 365,
			Label:        domain.ProjectionLabel,
		}
	}
	if sum.TotalGasUSD > 0 {
		sum.GasEfficiency = sum.NetProfitUSD / sum.TotalGasUSD
	}

	s.logger.Info("simulation complete",
		slog.String("id", sum.ID),
		slog.Int("trials", trials),
		slog.Int("skipped", sum.SkippedTrials),
		slog.Float64("success_rate", sum.SuccessRate),
		slog.Float64("net_usd", sum.NetProfitUSD),
	)
	return sum, nil
}

func validate(o domain.Opportunity) error {
	// Checked in order so the first bad field is always the one reported.
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"size", o.SizedAmountUSD},
		{"gross", o.GrossProfitUSD},
		{"fees", o.FeesUSD},
		{"slippage", o.SlippageUSD},
		{"gas", o.GasCostUSD},
		{"net", o.NetProfitUSD},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
	}
	switch {
	case o.SizedAmountUSD <= 0:
		return fmt.Errorf("size %.2f is not positive", o.SizedAmountUSD)
	case o.FeesUSD < 0 || o.SlippageUSD < 0 || o.GasCostUSD < 0:
		return errors.New("negative cost")
	}
	return nil
}
