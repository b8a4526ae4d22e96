package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/aggregator"
	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/evaluator"
	"github.com/alanyoungcy/tokenarb/internal/pathfind"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
)

var (
	usdt = domain.Token{Symbol: "USDT", Category: domain.CategoryStablecoin, Decimals: 18, ReferenceUSD: 1}
	wbnb = domain.Token{Symbol: "WBNB", Category: domain.CategoryMajor, Decimals: 18}
	cake = domain.Token{Symbol: "CAKE", Category: domain.CategoryOther, Decimals: 18}
)

const profitablePath = "USDT->WBNB->CAKE->USDT"

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// marketPrices prices CAKE 10% rich against USDT, so one direction of the
// triangle is profitable and the other is not.
func marketPrices() map[domain.PairKey]float64 {
	return map[domain.PairKey]float64{
		domain.NewPairKey(usdt, wbnb): 1.0 / 600,
		domain.NewPairKey(wbnb, usdt): 600,
		domain.NewPairKey(wbnb, cake): 300,
		domain.NewPairKey(cake, wbnb): 1.0 / 300,
		domain.NewPairKey(cake, usdt): 2.2,
		domain.NewPairKey(usdt, cake): 0.5,
	}
}

// tableSource quotes from a fixed price table.
type tableSource struct {
	id     string
	prices map[domain.PairKey]float64
}

func (s tableSource) ID() string { return s.id }

func (s tableSource) Fetch(ctx context.Context, base, quote domain.Token) (domain.Quote, error) {
	p, ok := s.prices[domain.NewPairKey(base, quote)]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return domain.NewQuote(s.id, base, quote, p, 2e9, time.Now(), 0)
}

type staticGas struct{ gwei float64 }

func (g staticGas) GasPriceGwei(ctx context.Context) (float64, error) {
	if g.gwei <= 0 {
		return 0, domain.ErrNoGasPrice
	}
	return g.gwei, nil
}

func triangle(t *testing.T) []domain.Path {
	t.Helper()
	paths, err := pathfind.Enumerate([]domain.Token{usdt, wbnb, cake}, pathfind.Options{
		MinHops: 3, MaxHops: 3, Start: []domain.Token{usdt},
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	return paths
}

func testConfig() Config {
	return Config{
		Interval:            20 * time.Millisecond,
		FastInterval:        10 * time.Millisecond,
		VolatilityThreshold: 0.003,
		ReferenceBase:       wbnb,
		ReferenceQuote:      usdt,
		Native:              wbnb,
		USD:                 usdt,
		CycleDeadline:       2 * time.Second,
		PairConcurrency:     4,
		EvalConcurrency:     4,
		MinPairsAvailable:   3,
		NotifyTimeout:       time.Second,
	}
}

func newScanner(t *testing.T, sources []domain.QuoteSource, gas domain.GasOracle) *Scanner {
	t.Helper()
	agg := aggregator.New(sources, aggregator.DefaultConfig(), discardLogger())
	eval := evaluator.New(evaluator.DefaultConfig(), discardLogger())
	return New(testConfig(), triangle(t), agg, gas, eval, ranker.New(1), ranker.NewHistory(50), discardLogger())
}

func threeSources(prices map[domain.PairKey]float64) []domain.QuoteSource {
	return []domain.QuoteSource{
		tableSource{id: "a", prices: prices},
		tableSource{id: "b", prices: prices},
		tableSource{id: "c", prices: prices},
	}
}

type memOpps struct {
	mu   sync.Mutex
	rows []domain.Opportunity
}

func (m *memOpps) InsertBatch(ctx context.Context, opps []domain.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, opps...)
	return nil
}

func (m *memOpps) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	return domain.Opportunity{}, domain.ErrNotFound
}

func (m *memOpps) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

func (m *memOpps) ListActionable(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return nil, nil
}

type memCycles struct {
	mu   sync.Mutex
	rows []domain.ScanCycle
}

func (m *memCycles) Insert(ctx context.Context, c domain.ScanCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, c)
	return nil
}

func (m *memCycles) ListRecent(ctx context.Context, limit int) ([]domain.ScanCycle, error) {
	return nil, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published map[string]int
	streamed  int
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string]int)
	}
	b.published[channel]++
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed++
	return nil
}

func (b *recordingBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	keys   []string
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, event, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) NotifyOnce(ctx context.Context, event, key, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.keys = append(n.keys, key)
	return n.err
}

func TestRunCycleFindsArbitrage(t *testing.T) {
	opps, cycles, bus, notes := &memOpps{}, &memCycles{}, &recordingBus{}, &recordingNotifier{}
	s := newScanner(t, threeSources(marketPrices()), staticGas{gwei: 3}).
		WithStores(opps, cycles).
		WithBus(bus).
		WithNotifier(notes)

	cycle, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	s.Wait()

	if cycle.PairsAvailable != 6 || cycle.PairsRequested != 6 {
		t.Errorf("pairs = %d/%d, want 6/6", cycle.PairsAvailable, cycle.PairsRequested)
	}
	if cycle.PathsEvaluated != 2 {
		t.Errorf("paths evaluated = %d, want 2", cycle.PathsEvaluated)
	}
	if cycle.Actionable != 1 {
		t.Fatalf("actionable = %d, want 1 (rejections %v)", cycle.Actionable, cycle.Rejections)
	}
	if cycle.Rejections[domain.RejectBelowProfitFloor] != 1 {
		t.Errorf("rejections = %v, want one below_profit_floor", cycle.Rejections)
	}
	if cycle.GasPriceGwei != 3 {
		t.Errorf("gas = %v, want 3", cycle.GasPriceGwei)
	}

	best, ok := s.History().Latest()
	if !ok || best.Path.ID != profitablePath || !best.Actionable {
		t.Fatalf("latest = %+v, want actionable %s", best, profitablePath)
	}
	if best.CycleID != cycle.ID {
		t.Errorf("opportunity cycle %q, want %q", best.CycleID, cycle.ID)
	}
	if best.GasCostUSD <= 0 {
		t.Error("gas cost not priced from the native/USD pair")
	}

	if len(opps.rows) != 1 || len(cycles.rows) != 1 {
		t.Errorf("persisted %d opportunities, %d cycles; want 1, 1", len(opps.rows), len(cycles.rows))
	}
	if bus.published[domain.ChannelOpportunities] != 1 || bus.published[domain.ChannelCycles] != 1 || bus.streamed != 1 {
		t.Errorf("bus published %v, streamed %d", bus.published, bus.streamed)
	}
	if len(notes.keys) != 1 || notes.keys[0] != profitablePath {
		t.Errorf("notified %v, want [%s]", notes.keys, profitablePath)
	}

	snap := s.Snapshot()
	if snap == nil || snap.CycleID != cycle.ID || snap.NativeUSD != 600 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRunCycleNeverRanksManipulatedPairs(t *testing.T) {
	skewed := marketPrices()
	skewed[domain.NewPairKey(cake, usdt)] = 4.0

	sources := []domain.QuoteSource{
		tableSource{id: "a", prices: marketPrices()},
		tableSource{id: "b", prices: marketPrices()},
		tableSource{id: "c", prices: skewed},
	}
	s := newScanner(t, sources, staticGas{gwei: 3})

	cycle, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if cycle.Actionable != 0 || cycle.Retained != 0 {
		t.Errorf("actionable=%d retained=%d, want none", cycle.Actionable, cycle.Retained)
	}
	if cycle.Rejections[domain.RejectManipulationDetected] == 0 {
		t.Errorf("rejections = %v, want manipulation_detected", cycle.Rejections)
	}
	for _, o := range s.History().Recent(0) {
		if o.Path.ID == profitablePath {
			t.Errorf("manipulated path %s reached the ranker output", o.Path.ID)
		}
	}
}

func TestRunCycleRejectsWithoutGas(t *testing.T) {
	s := newScanner(t, threeSources(marketPrices()), staticGas{})

	cycle, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if cycle.Actionable != 0 || cycle.Rejections[domain.RejectGasUnavailable] != 2 {
		t.Errorf("actionable=%d rejections=%v, want both paths gas_unavailable", cycle.Actionable, cycle.Rejections)
	}
}

func TestRunCycleSuppressedWithoutQuorum(t *testing.T) {
	// A single source never satisfies the two-source minimum.
	cycles := &memCycles{}
	s := newScanner(t, []domain.QuoteSource{tableSource{id: "a", prices: marketPrices()}}, staticGas{gwei: 3}).
		WithStores(nil, cycles)

	cycle, err := s.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrQuorumNotMet) {
		t.Fatalf("err = %v, want ErrQuorumNotMet", err)
	}
	if !cycle.Suppressed || cycle.Actionable != 0 {
		t.Errorf("cycle = %+v, want suppressed", cycle)
	}
	if s.Snapshot() != nil {
		t.Error("suppressed cycle published a snapshot")
	}
	if len(cycles.rows) != 1 {
		t.Errorf("cycle log has %d rows, want 1", len(cycles.rows))
	}
}

// hangingPrices blocks until the caller gives up.
type hangingPrices struct{}

func (hangingPrices) GetConsensusPrice(ctx context.Context, base, quote domain.Token) (domain.ConsensusPrice, error) {
	<-ctx.Done()
	return domain.ConsensusPrice{}, ctx.Err()
}

func (hangingPrices) SourceIDs() []string { return []string{"hang"} }

type countingEvaluator struct{ calls atomic.Int32 }

func (c *countingEvaluator) Evaluate(snap *domain.Snapshot, path domain.Path) (domain.Opportunity, error) {
	c.calls.Add(1)
	return domain.Opportunity{}, domain.Reject(domain.RejectBelowProfitFloor, "")
}

func TestRunCycleAbandonsAtDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.CycleDeadline = 30 * time.Millisecond
	eval := &countingEvaluator{}
	opps, notes := &memOpps{}, &recordingNotifier{}
	s := New(cfg, triangle(t), hangingPrices{}, staticGas{gwei: 3}, eval, ranker.New(1), nil, discardLogger()).
		WithStores(opps, nil).
		WithNotifier(notes)

	start := time.Now()
	cycle, err := s.RunCycle(context.Background())
	s.Wait()

	if !errors.Is(err, domain.ErrCycleAbandoned) {
		t.Fatalf("err = %v, want ErrCycleAbandoned", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("abandon took %v", elapsed)
	}
	if !cycle.Abandoned || cycle.Actionable != 0 {
		t.Errorf("cycle = %+v, want abandoned", cycle)
	}
	if eval.calls.Load() != 0 || len(opps.rows) != 0 {
		t.Error("abandoned cycle evaluated or persisted results")
	}
	if len(notes.events) != 1 || notes.events[0] != "cycle_abandoned" {
		t.Errorf("notifications = %v, want [cycle_abandoned]", notes.events)
	}
}

func TestNotificationFailureDoesNotAffectCycle(t *testing.T) {
	notes := &recordingNotifier{err: errors.New("telegram down")}
	s := newScanner(t, threeSources(marketPrices()), staticGas{gwei: 3}).WithNotifier(notes)

	cycle, err := s.RunCycle(context.Background())
	s.Wait()
	if err != nil || cycle.Actionable != 1 {
		t.Errorf("cycle = %+v, err = %v", cycle, err)
	}
}

type heldLock struct{}

func (heldLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestLeaderLockHeldSkipsCycle(t *testing.T) {
	eval := &countingEvaluator{}
	s := New(testConfig(), triangle(t), hangingPrices{}, staticGas{gwei: 3}, eval, ranker.New(1), nil, discardLogger()).
		WithLeaderLock(heldLock{})

	_, err := s.runLeaderCycle(context.Background())
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Errorf("err = %v, want ErrLockHeld", err)
	}
	if s.Status().Cycles != 0 {
		t.Error("cycle ran without the lock")
	}
}

func TestRunLoopsUntilCancelled(t *testing.T) {
	s := newScanner(t, threeSources(marketPrices()), staticGas{gwei: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := s.Status()
	if st.Cycles < 2 {
		t.Errorf("cycles = %d, want >= 2", st.Cycles)
	}
	if st.Running {
		t.Error("still running after Run returned")
	}
	if st.LastCycle == nil || st.Paths != 2 || len(st.Sources) != 3 {
		t.Errorf("status = %+v", st)
	}
}

func TestVolatility(t *testing.T) {
	v := NewVolatility(0.003)
	if _, fast := v.Observe(600); fast {
		t.Error("first observation triggered")
	}
	if _, fast := v.Observe(601); fast {
		t.Error("0.17% move triggered")
	}
	move, fast := v.Observe(604)
	if !fast {
		t.Errorf("%.4f move did not trigger", move)
	}
	if _, fast := v.Observe(0); fast || v.Last() != 604 {
		t.Error("zero price must be ignored")
	}
}

func TestPairSetAddsReferenceAndNative(t *testing.T) {
	cfg := testConfig()
	btcb := domain.Token{Symbol: "BTCB", Category: domain.CategoryMajor}
	cfg.ReferenceBase, cfg.ReferenceQuote = btcb, usdt

	pairs := pairSet(triangle(t), cfg)
	seen := make(map[string]bool)
	for _, p := range pairs {
		key := fmt.Sprintf("%s/%s", p[0].Symbol, p[1].Symbol)
		if seen[key] {
			t.Errorf("duplicate pair %s", key)
		}
		seen[key] = true
	}
	if !seen["BTCB/USDT"] || !seen["WBNB/USDT"] || len(pairs) != 7 {
		t.Errorf("pairs = %v", seen)
	}
}
