// Package scanner runs scan cycles: it refreshes the consensus price book,
// evaluates every candidate path against it, ranks the results and hands
// them to storage, the signal bus and notifications.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/notify"
	"github.com/alanyoungcy/tokenarb/internal/pathfind"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const leaderLockKey = "tokenarb:scanner:leader"

// PriceSource produces consensus prices; *aggregator.Aggregator satisfies it.
type PriceSource interface {
	GetConsensusPrice(ctx context.Context, base, quote domain.Token) (domain.ConsensusPrice, error)
	SourceIDs() []string
}

// PathEvaluator turns a path into an opportunity or a rejection;
// *evaluator.Evaluator satisfies it.
type PathEvaluator interface {
	Evaluate(snap *domain.Snapshot, path domain.Path) (domain.Opportunity, error)
}

// Notifier is the subset of *notify.Notifier the scanner uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
	NotifyOnce(ctx context.Context, event, key, title, message string) error
}

// Config holds cycle scheduling and concurrency parameters.
type Config struct {
	Interval            time.Duration
	FastInterval        time.Duration
	VolatilityThreshold float64
	ReferenceBase       domain.Token
	ReferenceQuote      domain.Token
	// Native/USD prices gas; it is always part of the pair set.
	Native            domain.Token
	USD               domain.Token
	CycleDeadline     time.Duration
	PairConcurrency   int
	EvalConcurrency   int
	MinPairsAvailable int
	LeaderLockTTL     time.Duration
	NotifyTimeout     time.Duration
}

// Scanner owns the per-cycle price book. Paths are fixed at construction.
type Scanner struct {
	cfg     Config
	paths   []domain.Path
	pairs   [][2]domain.Token
	prices  PriceSource
	gas     domain.GasOracle
	eval    PathEvaluator
	rank    *ranker.Ranker
	history *ranker.History
	vol     *Volatility

	opps     domain.OpportunityStore
	cycles   domain.ScanCycleStore
	bus      domain.SignalBus
	notifier Notifier
	locks    domain.LockManager
	book     domain.PriceBook

	snapshot  atomic.Pointer[domain.Snapshot]
	lastCycle atomic.Pointer[domain.ScanCycle]
	cycleNum  atomic.Int64
	running   atomic.Bool
	startedAt time.Time
	notifyWG  sync.WaitGroup

	logger *slog.Logger
	now    func() time.Time
}

// New creates a Scanner. Storage, bus, notifications and the leader lock are
// optional and attached with the With* methods.
func New(cfg Config, paths []domain.Path, prices PriceSource, gas domain.GasOracle, eval PathEvaluator, rank *ranker.Ranker, history *ranker.History, logger *slog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 6800 * time.Millisecond
	}
	if cfg.FastInterval <= 0 || cfg.FastInterval > cfg.Interval {
		cfg.FastInterval = cfg.Interval
	}
	if cfg.CycleDeadline <= 0 {
		cfg.CycleDeadline = 5 * time.Second
	}
	if cfg.PairConcurrency <= 0 {
		cfg.PairConcurrency = 8
	}
	if cfg.EvalConcurrency <= 0 {
		cfg.EvalConcurrency = 16
	}
	if cfg.MinPairsAvailable <= 0 {
		cfg.MinPairsAvailable = 1
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if history == nil {
		history = ranker.NewHistory(500)
	}

	return &Scanner{
		cfg:       cfg,
		paths:     paths,
		pairs:     pairSet(paths, cfg),
		prices:    prices,
		gas:       gas,
		eval:      eval,
		rank:      rank,
		history:   history,
		vol:       NewVolatility(cfg.VolatilityThreshold),
		startedAt: time.Now(),
		logger:    logger.With(slog.String("component", "scanner")),
		now:       time.Now,
	}
}

// WithStores attaches persistence. Either store may be nil.
func (s *Scanner) WithStores(opps domain.OpportunityStore, cycles domain.ScanCycleStore) *Scanner {
	s.opps, s.cycles = opps, cycles
	return s
}

// WithBus publishes cycle results on bus.
func (s *Scanner) WithBus(bus domain.SignalBus) *Scanner {
	s.bus = bus
	return s
}

// WithNotifier sends actionable opportunities and abandoned cycles to n.
func (s *Scanner) WithNotifier(n Notifier) *Scanner {
	s.notifier = n
	return s
}

// WithPriceBook shares each cycle's consensus prices with other processes.
func (s *Scanner) WithPriceBook(book domain.PriceBook) *Scanner {
	s.book = book
	return s
}

// WithLeaderLock makes cycles mutually exclusive across scanner instances.
func (s *Scanner) WithLeaderLock(locks domain.LockManager) *Scanner {
	s.locks = locks
	return s
}

// pairSet is every directed pair the paths need, plus the reference and
// native/USD pairs.
func pairSet(paths []domain.Path, cfg Config) [][2]domain.Token {
	pairs := pathfind.Pairs(paths)
	seen := make(map[domain.PairKey]bool, len(pairs)+2)
	for _, p := range pairs {
		seen[domain.NewPairKey(p[0], p[1])] = true
	}
	for _, extra := range [][2]domain.Token{
		{cfg.ReferenceBase, cfg.ReferenceQuote},
		{cfg.Native, cfg.USD},
	} {
		if extra[0].Symbol == "" || extra[1].Symbol == "" || extra[0].Symbol == extra[1].Symbol {
			continue
		}
		k := domain.NewPairKey(extra[0], extra[1])
		if !seen[k] {
			seen[k] = true
			pairs = append(pairs, extra)
		}
	}
	return pairs
}

// Snapshot returns the price book of the last completed refresh, or nil.
func (s *Scanner) Snapshot() *domain.Snapshot { return s.snapshot.Load() }

// History returns the ranked-opportunity buffer.
func (s *Scanner) History() *ranker.History { return s.history }

// Status reports the scanner's operational state.
func (s *Scanner) Status() domain.ScannerStatus {
	st := domain.ScannerStatus{
		Running: s.running.Load(),
		Cycles:  s.cycleNum.Load(),
		Paths:   len(s.paths),
		Sources: s.prices.SourceIDs(),
	}
	st.UptimeSeconds = int64(s.now().Sub(s.startedAt).Seconds())
	if c := s.lastCycle.Load(); c != nil {
		cp := *c
		st.LastCycle = &cp
	}
	stats := s.history.Stats()
	st.HistoryCount = stats.Count
	st.HistoryBestUSD = stats.BestNetUSD
	return st
}

// Run executes cycles until ctx is cancelled. The wait before the next cycle
// shortens to FastInterval after the reference pair moved by more than the
// volatility threshold.
func (s *Scanner) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)
	defer s.notifyWG.Wait()

	s.logger.InfoContext(ctx, "scanner started",
		slog.Int("paths", len(s.paths)),
		slog.Int("pairs", len(s.pairs)),
		slog.Any("sources", s.prices.SourceIDs()),
	)

	for {
		interval := s.cfg.Interval
		cycle, err := s.runLeaderCycle(ctx)
		switch {
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			s.logger.Info("scanner stopped")
			return nil
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.DebugContext(ctx, "another scanner holds the cycle lock", slog.String("detail", err.Error()))
		case err != nil:
			s.logger.WarnContext(ctx, "scan cycle failed", slog.String("error", err.Error()))
		}
		if cycle.Fast {
			interval = s.cfg.FastInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scanner stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Scanner) runLeaderCycle(ctx context.Context) (domain.ScanCycle, error) {
	if s.locks == nil {
		return s.RunCycle(ctx)
	}
	ttl := s.cfg.LeaderLockTTL
	if ttl < s.cfg.CycleDeadline {
		ttl = 2 * s.cfg.CycleDeadline
	}
	unlock, err := s.locks.Acquire(ctx, leaderLockKey, ttl)
	if err != nil {
		return domain.ScanCycle{}, err
	}
	defer unlock()
	return s.RunCycle(ctx)
}

// RunCycle performs one scan. It returns an error wrapping
// domain.ErrQuorumNotMet when too few pairs had consensus and
// domain.ErrCycleAbandoned when the deadline expired; in both cases nothing
// is ranked or reported as actionable. RunCycle is not safe for concurrent
// use; Run is its only caller in production.
func (s *Scanner) RunCycle(ctx context.Context) (domain.ScanCycle, error) {
	cycle := domain.ScanCycle{
		ID:             uuid.NewString(),
		StartedAt:      s.now(),
		PairsRequested: len(s.pairs),
		Rejections:     make(map[domain.RejectReason]int),
	}
	s.cycleNum.Add(1)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleDeadline)
	defer cancel()

	snap, err := s.refresh(cctx, cycle.ID)
	if snap != nil {
		cycle.PairsAvailable = snap.Len()
		cycle.GasPriceGwei = snap.GasPriceGwei
	}
	if err != nil {
		return s.finish(ctx, cycle, err)
	}
	if snap.Len() < s.cfg.MinPairsAvailable {
		cycle.Suppressed = true
		return s.finish(ctx, cycle, fmt.Errorf("scanner: %d of %d pairs available, need %d: %w",
			snap.Len(), len(s.pairs), s.cfg.MinPairsAvailable, domain.ErrQuorumNotMet))
	}

	// Every evaluation of this cycle reads this one book.
	s.snapshot.Store(snap)

	if ref, ok := snap.Price(s.cfg.ReferenceBase, s.cfg.ReferenceQuote); ok {
		move, fast := s.vol.Observe(ref.MedianPrice)
		cycle.Fast = fast
		if fast {
			s.logger.InfoContext(ctx, "reference pair moved, polling faster",
				slog.String("pair", ref.Pair().String()),
				slog.Float64("move", move),
			)
		}
	}

	opps, rejections, err := s.evaluate(cctx, snap)
	cycle.PathsEvaluated = len(opps)
	for reason, n := range rejections {
		cycle.Rejections[reason] = n
		cycle.PathsEvaluated += n
	}
	if err != nil {
		return s.finish(ctx, cycle, err)
	}

	actionable, retained := s.rank.Select(opps)
	cycle.Actionable = len(actionable)
	cycle.Retained = len(retained)

	ranked := append(append([]domain.Opportunity(nil), actionable...), retained...)
	s.history.Add(ranked...)
	s.persist(ctx, ranked)
	if s.book != nil {
		if err := s.book.Put(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "share prices failed", slog.String("error", err.Error()))
		}
	}
	s.publish(ctx, actionable)
	s.notifyOpportunities(ctx, actionable)

	return s.finish(ctx, cycle, nil)
}

// refresh builds the cycle's price book. Pairs without consensus are simply
// absent; only the cycle deadline fails the refresh.
func (s *Scanner) refresh(ctx context.Context, cycleID string) (*domain.Snapshot, error) {
	var (
		mu     sync.Mutex
		prices = make(map[domain.PairKey]domain.ConsensusPrice, len(s.pairs))
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.PairConcurrency)
	for _, pair := range s.pairs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			cp, err := s.prices.GetConsensusPrice(ctx, pair[0], pair[1])
			if err != nil {
				s.logger.DebugContext(ctx, "pair unavailable",
					slog.String("pair", domain.NewPairKey(pair[0], pair[1]).String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			prices[cp.Pair()] = cp
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	snap := &domain.Snapshot{CycleID: cycleID, Prices: prices, TakenAt: s.now()}
	if err := ctx.Err(); err != nil {
		return snap, abandoned(err)
	}

	if gwei, err := s.gas.GasPriceGwei(ctx); err != nil {
		s.logger.WarnContext(ctx, "gas price unavailable", slog.String("error", err.Error()))
	} else {
		snap.GasPriceGwei = gwei
	}
	if native, ok := snap.Price(s.cfg.Native, s.cfg.USD); ok {
		snap.NativeUSD = native.MedianPrice
	}

	if err := ctx.Err(); err != nil {
		return snap, abandoned(err)
	}
	return snap, nil
}

// evaluate runs every path against snap concurrently. Results are discarded
// if the deadline expires before the last evaluation finishes.
func (s *Scanner) evaluate(ctx context.Context, snap *domain.Snapshot) ([]domain.Opportunity, map[domain.RejectReason]int, error) {
	results := make([]*domain.Opportunity, len(s.paths))
	reasons := make([]domain.RejectReason, len(s.paths))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.EvalConcurrency)
	for i, path := range s.paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			opp, err := s.eval.Evaluate(snap, path)
			if err != nil {
				reason, ok := domain.ReasonOf(err)
				if !ok {
					reason = domain.RejectInvalidPath
				}
				reasons[i] = reason
				return nil
			}
			results[i] = &opp
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, abandoned(err)
	}

	opps := make([]domain.Opportunity, 0, len(results))
	counts := make(map[domain.RejectReason]int)
	for i, r := range results {
		if r != nil {
			opps = append(opps, *r)
			continue
		}
		counts[reasons[i]]++
	}
	return opps, counts, nil
}

func abandoned(cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("scanner: %w: %w", domain.ErrCycleAbandoned, cause)
	}
	return fmt.Errorf("scanner: %w", cause)
}

// finish records the cycle summary. Bookkeeping failures are logged, never
// returned.
func (s *Scanner) finish(ctx context.Context, cycle domain.ScanCycle, cycleErr error) (domain.ScanCycle, error) {
	cycle.Duration = s.now().Sub(cycle.StartedAt)
	if errors.Is(cycleErr, domain.ErrCycleAbandoned) {
		cycle.Abandoned = true
	}
	if errors.Is(cycleErr, context.Canceled) && ctx.Err() != nil {
		return cycle, cycleErr
	}

	s.lastCycle.Store(&cycle)

	logAttrs := []any{
		slog.String("cycle_id", cycle.ID),
		slog.Duration("duration", cycle.Duration),
		slog.Int("pairs", cycle.PairsAvailable),
		slog.Int("paths", cycle.PathsEvaluated),
		slog.Int("actionable", cycle.Actionable),
	}
	switch {
	case cycle.Abandoned:
		s.logger.WarnContext(ctx, "scan cycle abandoned", logAttrs...)
		if s.notifier != nil {
			title, msg := notify.FormatAbandoned(cycle)
			s.fireNotify(ctx, func(nctx context.Context) error {
				return s.notifier.Notify(nctx, notify.EventCycleAbandoned, title, msg)
			})
		}
	case cycle.Suppressed:
		s.logger.WarnContext(ctx, "scan cycle suppressed", logAttrs...)
	default:
		s.logger.InfoContext(ctx, "scan cycle complete", logAttrs...)
	}

	if s.cycles != nil {
		if err := s.cycles.Insert(ctx, cycle); err != nil {
			s.logger.WarnContext(ctx, "persist scan cycle failed", slog.String("error", err.Error()))
		}
	}
	if s.bus != nil {
		if payload, err := json.Marshal(cycle); err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelCycles, payload); err != nil {
				s.logger.WarnContext(ctx, "publish cycle failed", slog.String("error", err.Error()))
			}
		}
	}
	return cycle, cycleErr
}

func (s *Scanner) persist(ctx context.Context, ranked []domain.Opportunity) {
	if s.opps == nil || len(ranked) == 0 {
		return
	}
	if err := s.opps.InsertBatch(ctx, ranked); err != nil {
		s.logger.WarnContext(ctx, "persist opportunities failed",
			slog.Int("count", len(ranked)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scanner) publish(ctx context.Context, actionable []domain.Opportunity) {
	if s.bus == nil {
		return
	}
	for _, o := range actionable {
		payload, err := json.Marshal(o)
		if err != nil {
			continue
		}
		if err := s.bus.Publish(ctx, domain.ChannelOpportunities, payload); err != nil {
			s.logger.WarnContext(ctx, "publish opportunity failed",
				slog.String("opportunity_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, domain.StreamOpportunities, payload); err != nil {
			s.logger.WarnContext(ctx, "append opportunity stream failed",
				slog.String("opportunity_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Scanner) notifyOpportunities(ctx context.Context, actionable []domain.Opportunity) {
	if s.notifier == nil {
		return
	}
	for _, o := range actionable {
		title, msg := notify.FormatOpportunity(o)
		key := o.Path.ID
		s.fireNotify(ctx, func(nctx context.Context) error {
			return s.notifier.NotifyOnce(nctx, notify.EventOpportunity, key, title, msg)
		})
	}
}

// fireNotify delivers in the background with its own timeout. The outcome
// never reaches the cycle.
func (s *Scanner) fireNotify(ctx context.Context, send func(context.Context) error) {
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()
		if err := send(nctx); err != nil {
			s.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *Scanner) Wait() { s.notifyWG.Wait() }
