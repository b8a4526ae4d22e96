package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tokenarb/internal/scanner"
	"github.com/alanyoungcy/tokenarb/internal/server"
	"github.com/alanyoungcy/tokenarb/internal/server/handler"
	"github.com/alanyoungcy/tokenarb/internal/server/ws"
	"github.com/alanyoungcy/tokenarb/internal/service"
)

// ScanMode runs scan cycles until ctx is cancelled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode", slog.Int("paths", len(deps.Paths)))

	sc, err := a.newScanner(deps)
	if err != nil {
		return err
	}
	return sc.Run(ctx)
}

// BacktestMode simulates the configured input once, records the summary and
// returns.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backtest mode",
		slog.Int("trials", a.cfg.Simulator.Trials),
		slog.String("input_path", a.cfg.Simulator.InputPath),
	)

	// The configured trial count is trusted here; the cap guards the API.
	res, err := a.newBacktestService(deps, 0).Run(ctx, service.BacktestRequest{
		Trials:         a.cfg.Simulator.Trials,
		Limit:          a.cfg.Simulator.HistoryLimit,
		InputPath:      a.cfg.Simulator.InputPath,
		ActionableOnly: true,
	})
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}

	sum := res.Summary
	a.logger.InfoContext(ctx, "backtest finished",
		slog.String("id", sum.ID),
		slog.Int("inputs", res.Inputs),
		slog.Int("successful", sum.SuccessfulTrades),
		slog.Int("failed", sum.FailedTrades),
		slog.Int("skipped", sum.SkippedTrials),
		slog.Float64("net_usd", sum.NetProfitUSD),
		slog.Float64("daily_usd", sum.Projection.Daily),
		slog.String("archive_path", res.ArchivePath),
	)
	return nil
}

// ServerMode serves the HTTP API and WebSocket hub over the stores and the
// shared bus; scanning happens in another process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode runs the scanner, the HTTP API and the WebSocket hub in one
// process. The API reads the scanner's in-process history.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode", slog.Int("paths", len(deps.Paths)))

	sc, err := a.newScanner(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sc.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sc)
	}
	return g.Wait()
}

func (a *App) newScanner(deps *Dependencies) (*scanner.Scanner, error) {
	scCfg, err := scannerConfig(a.cfg, deps.Universe)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	sc := scanner.New(scCfg, deps.Paths, deps.Aggregator, deps.Gas, deps.Evaluator, deps.Ranker, deps.History, a.logger).
		WithStores(deps.OpportunityStore, deps.ScanCycleStore).
		WithBus(deps.SignalBus).
		WithNotifier(deps.Notifier).
		WithPriceBook(deps.PriceBook)
	if a.cfg.Scanner.LeaderLock && deps.LockManager != nil {
		sc = sc.WithLeaderLock(deps.LockManager)
	}
	return sc, nil
}

func (a *App) newBacktestService(deps *Dependencies, maxTrials int) *service.BacktestService {
	svc := service.NewBacktestService(simulatorConfig(a.cfg.Simulator), maxTrials, a.logger).
		WithHistory(deps.History).
		WithBus(deps.SignalBus).
		WithNotifier(deps.Notifier)
	if deps.OpportunityStore != nil || deps.SimulationStore != nil {
		svc = svc.WithStores(deps.OpportunityStore, deps.SimulationStore)
	}
	if deps.Archiver != nil {
		svc = svc.WithArchiver(deps.Archiver)
	}
	return svc
}

// startHTTPServer registers the API and hub goroutines on g. status is the
// in-process scanner, or nil when the scanner runs elsewhere.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, status *scanner.Scanner) {
	var provider handler.StatusProvider
	var hubStatus ws.StatusProvider
	history := deps.History
	if status != nil {
		provider, hubStatus = status, status
	} else {
		history = nil
	}

	hub := ws.NewHub(deps.SignalBus, hubStatus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, provider),
		Opportunities: handler.NewOpportunityHandler(service.NewOpportunityService(history, deps.OpportunityStore), a.logger),
		Prices:        handler.NewPriceHandler(deps.PriceBook, a.logger),
		Simulations: handler.NewSimulationHandler(
			a.newBacktestService(deps, a.cfg.Server.MaxSimulationTrials),
			deps.SimulationStore,
			a.logger,
		),
	}
	if deps.ScanCycleStore != nil {
		handlers.Cycles = handler.NewCycleHandler(deps.ScanCycleStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		port := a.cfg.Server.Port
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
