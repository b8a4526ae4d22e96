package app

import (
	"fmt"

	"github.com/alanyoungcy/tokenarb/internal/aggregator"
	"github.com/alanyoungcy/tokenarb/internal/config"
	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/evaluator"
	"github.com/alanyoungcy/tokenarb/internal/pathfind"
	"github.com/alanyoungcy/tokenarb/internal/scanner"
	"github.com/alanyoungcy/tokenarb/internal/simulator"
)

func aggregatorConfig(c config.AggregatorConfig) (aggregator.Config, error) {
	minSources, err := byCategory(c.MinSources)
	if err != nil {
		return aggregator.Config{}, fmt.Errorf("aggregator.min_sources: %w", err)
	}
	maxDev, err := byCategory(c.MaxDeviation)
	if err != nil {
		return aggregator.Config{}, fmt.Errorf("aggregator.max_deviation: %w", err)
	}
	return aggregator.Config{
		SourceTimeout:  c.SourceTimeout.Duration,
		MaxQuoteAge:    c.MaxQuoteAge.Duration,
		MaxConcurrency: c.MaxConcurrency,
		MinSources:     minSources,
		MaxDeviation:   maxDev,
		StableBandLow:  c.StableBandLow,
		StableBandHigh: c.StableBandHigh,
	}, nil
}

func evaluatorConfig(c config.EvaluatorConfig, gasUnitsPerHop uint64) (evaluator.Config, error) {
	fractions, err := byCategory(c.TradeFraction)
	if err != nil {
		return evaluator.Config{}, fmt.Errorf("evaluator.trade_fraction: %w", err)
	}
	fees, err := byCategory(c.FeeBpsByCategory)
	if err != nil {
		return evaluator.Config{}, fmt.Errorf("evaluator.fee_bps_by_category: %w", err)
	}
	floors := make(map[domain.Category]domain.ConfidenceLevel, len(c.ConfidenceFloor))
	for name, lvl := range c.ConfidenceFloor {
		cat, err := domain.ParseCategory(name)
		if err != nil {
			return evaluator.Config{}, fmt.Errorf("evaluator.confidence_floor: %w", err)
		}
		floor, err := domain.ParseConfidence(lvl)
		if err != nil {
			return evaluator.Config{}, fmt.Errorf("evaluator.confidence_floor: %s: %w", name, err)
		}
		floors[cat] = floor
	}
	return evaluator.Config{
		MinTradeUSD:                 c.MinTradeUSD,
		MaxTradeUSD:                 c.MaxTradeUSD,
		FallbackTradeUSD:            c.FallbackTradeUSD,
		TradeFraction:               fractions,
		FeeBps:                      c.FeeBps,
		FeeBpsByCategory:            fees,
		UnknownLiquiditySlippageBps: c.UnknownLiquiditySlippageBps,
		GasUnitsPerHop:              gasUnitsPerHop,
		ConfidenceFloor:             floors,
		HopPenalty:                  c.HopPenalty,
		MinConfidenceScore:          c.MinConfidenceScore,
		MinProfitUSD:                c.MinProfitUSD,
		ProfitPerExtraHopUSD:        c.ProfitPerExtraHopUSD,
	}, nil
}

func simulatorConfig(c config.SimulatorConfig) simulator.Config {
	return simulator.Config{
		SuccessProbability: c.SuccessProbability,
		GasStdDev:          c.GasStdDev,
		ProfitMean:         c.ProfitMean,
		ProfitStdDev:       c.ProfitStdDev,
		TradesPerDay:       c.TradesPerDay,
		Seed:               uint64(c.Seed),
	}
}

func scannerConfig(cfg *config.Config, u *config.Universe) (scanner.Config, error) {
	lookup := func(field, symbol string) (domain.Token, error) {
		if symbol == "" {
			return domain.Token{}, nil
		}
		t, ok := u.Lookup(symbol)
		if !ok {
			return domain.Token{}, fmt.Errorf("%s: unknown token %q", field, symbol)
		}
		return t, nil
	}

	sc := cfg.Scanner
	out := scanner.Config{
		Interval:            sc.Interval.Duration,
		FastInterval:        sc.FastInterval.Duration,
		VolatilityThreshold: sc.VolatilityThreshold,
		CycleDeadline:       sc.CycleDeadline.Duration,
		PairConcurrency:     sc.PairConcurrency,
		EvalConcurrency:     sc.EvalConcurrency,
		MinPairsAvailable:   sc.MinPairsAvailable,
		LeaderLockTTL:       sc.LeaderLockTTL.Duration,
		NotifyTimeout:       sc.NotifyTimeout.Duration,
	}
	var err error
	if out.ReferenceBase, err = lookup("scanner.reference_base", sc.ReferenceBase); err != nil {
		return scanner.Config{}, err
	}
	if out.ReferenceQuote, err = lookup("scanner.reference_quote", sc.ReferenceQuote); err != nil {
		return scanner.Config{}, err
	}
	if out.Native, err = lookup("chain.native_symbol", cfg.Chain.NativeSymbol); err != nil {
		return scanner.Config{}, err
	}
	if out.USD, err = lookup("chain.usd_symbol", cfg.Chain.USDSymbol); err != nil {
		return scanner.Config{}, err
	}
	return out, nil
}

// buildPaths enumerates the candidate cycles over the configured base tokens.
func buildPaths(c config.PathfindConfig, u *config.Universe) ([]domain.Path, error) {
	base, err := u.Select(c.BaseTokens)
	if err != nil {
		return nil, fmt.Errorf("pathfind.base_tokens: %w", err)
	}
	var start []domain.Token
	if len(c.StartTokens) > 0 {
		if start, err = u.Select(c.StartTokens); err != nil {
			return nil, fmt.Errorf("pathfind.start_tokens: %w", err)
		}
	}
	paths, err := pathfind.Enumerate(base, pathfind.Options{
		MinHops:  c.MinHops,
		MaxHops:  c.MaxHops,
		Start:    start,
		MaxPaths: c.MaxPaths,
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("pathfind: no cycles over %d tokens", len(base))
	}
	return paths, nil
}

func byCategory[V any](m map[string]V) (map[domain.Category]V, error) {
	out := make(map[domain.Category]V, len(m))
	for name, v := range m {
		cat, err := domain.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out[cat] = v
	}
	return out, nil
}
