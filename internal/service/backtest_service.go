// Package service holds the use cases shared by the HTTP API and the
// command-line modes: back-testing and opportunity queries.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/notify"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
	"github.com/alanyoungcy/tokenarb/internal/simulator"
)

// ErrNoHistory is returned when a back-test has no input opportunities.
var ErrNoHistory = errors.New("service: no opportunities to simulate")

// BacktestRequest selects the input and size of a simulation batch.
type BacktestRequest struct {
	Trials         int
	Limit          int    // opportunities loaded from history or the store
	InputPath      string // blob path; overrides history when set
	ActionableOnly bool
	Seed           uint64 // 0 keeps the configured seed
}

// BacktestResult is a stored simulation and where its report was archived.
type BacktestResult struct {
	Summary     domain.SimulationSummary
	Inputs      int
	ArchivePath string
}

// BacktestService loads opportunities, runs the simulator, and records the
// summary. Every collaborator except the simulator config is optional.
type BacktestService struct {
	simCfg    simulator.Config
	maxTrials int
	history   *ranker.History
	opps      domain.OpportunityStore
	sims      domain.SimulationStore
	archiver  domain.ReportArchiver
	bus       domain.SignalBus
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewBacktestService creates a BacktestService. maxTrials <= 0 disables the
// cap.
func NewBacktestService(simCfg simulator.Config, maxTrials int, logger *slog.Logger) *BacktestService {
	return &BacktestService{
		simCfg:    simCfg,
		maxTrials: maxTrials,
		logger:    logger.With(slog.String("component", "backtest")),
	}
}

// WithHistory uses the in-process ranking history as an input.
func (s *BacktestService) WithHistory(h *ranker.History) *BacktestService {
	s.history = h
	return s
}

// WithStores sets the opportunity input store and the summary output store.
func (s *BacktestService) WithStores(opps domain.OpportunityStore, sims domain.SimulationStore) *BacktestService {
	s.opps = opps
	s.sims = sims
	return s
}

// WithArchiver enables report archiving and blob inputs.
func (s *BacktestService) WithArchiver(a domain.ReportArchiver) *BacktestService {
	s.archiver = a
	return s
}

// WithBus publishes summaries on domain.ChannelSimulations.
func (s *BacktestService) WithBus(bus domain.SignalBus) *BacktestService {
	s.bus = bus
	return s
}

// WithNotifier sends a summary notification after each run.
func (s *BacktestService) WithNotifier(n *notify.Notifier) *BacktestService {
	s.notifier = n
	return s
}

// MaxTrials returns the configured per-request cap (0 = none).
func (s *BacktestService) MaxTrials() int { return s.maxTrials }

// Run executes one back-test. Storage, archive, bus, and notification
// failures are logged and do not fail the run.
func (s *BacktestService) Run(ctx context.Context, req BacktestRequest) (BacktestResult, error) {
	if req.Trials < 1 {
		return BacktestResult{}, fmt.Errorf("service: trials must be >= 1, got %d", req.Trials)
	}
	if s.maxTrials > 0 && req.Trials > s.maxTrials {
		return BacktestResult{}, fmt.Errorf("service: %d trials exceeds the limit of %d", req.Trials, s.maxTrials)
	}

	inputs, err := s.load(ctx, req)
	if err != nil {
		return BacktestResult{}, err
	}
	if len(inputs) == 0 {
		return BacktestResult{}, ErrNoHistory
	}

	cfg := s.simCfg
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	summary, err := simulator.New(cfg, s.logger).Simulate(inputs, req.Trials)
	if err != nil {
		return BacktestResult{}, fmt.Errorf("service: simulate: %w", err)
	}

	res := BacktestResult{Summary: summary, Inputs: len(inputs)}
	s.record(ctx, &res, inputs)

	s.logger.InfoContext(ctx, "back-test complete",
		slog.String("simulation_id", summary.ID),
		slog.Int("inputs", len(inputs)),
		slog.Int("trials", summary.Trials),
		slog.Float64("success_rate", summary.SuccessRate),
		slog.Float64("net_profit_usd", summary.NetProfitUSD),
	)
	return res, nil
}

func (s *BacktestService) load(ctx context.Context, req BacktestRequest) ([]domain.Opportunity, error) {
	var (
		opps []domain.Opportunity
		err  error
	)
	switch {
	case req.InputPath != "":
		if s.archiver == nil {
			return nil, fmt.Errorf("service: input path %q given but no archive is configured", req.InputPath)
		}
		opps, err = s.archiver.LoadOpportunities(ctx, req.InputPath)
	case s.opps != nil && req.ActionableOnly:
		opps, err = s.opps.ListActionable(ctx, req.Limit)
	case s.opps != nil:
		opps, err = s.opps.ListRecent(ctx, domain.ListOpts{Limit: req.Limit})
	case s.history != nil:
		opps = s.history.Recent(req.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("service: load opportunities: %w", err)
	}

	if req.ActionableOnly && (req.InputPath != "" || s.opps == nil) {
		kept := opps[:0:0]
		for _, o := range opps {
			if o.Actionable {
				kept = append(kept, o)
			}
		}
		opps = kept
	}
	if req.Limit > 0 && len(opps) > req.Limit {
		opps = opps[:req.Limit]
	}
	return opps, nil
}

func (s *BacktestService) record(ctx context.Context, res *BacktestResult, inputs []domain.Opportunity) {
	sum := res.Summary
	if s.sims != nil {
		if err := s.sims.Insert(ctx, sum); err != nil {
			s.logger.WarnContext(ctx, "store simulation failed",
				slog.String("simulation_id", sum.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.archiver != nil {
		path, err := s.archiver.ArchiveSimulation(ctx, sum, inputs)
		if err != nil {
			s.logger.WarnContext(ctx, "archive simulation failed",
				slog.String("simulation_id", sum.ID),
				slog.String("error", err.Error()),
			)
		}
		res.ArchivePath = path
	}
	if s.bus != nil {
		if payload, err := json.Marshal(sum); err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelSimulations, payload); err != nil {
				s.logger.WarnContext(ctx, "publish simulation failed", slog.String("error", err.Error()))
			}
		}
	}
	if s.notifier.Enabled() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		title, msg := notify.FormatSimulation(sum)
		if err := s.notifier.Notify(nctx, notify.EventSimulation, title, msg); err != nil {
			s.logger.WarnContext(ctx, "simulation notification failed", slog.String("error", err.Error()))
		}
	}
}
