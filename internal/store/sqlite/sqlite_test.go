package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "tokenarb.db"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testPath(t *testing.T) domain.Path {
	t.Helper()
	usdt := domain.Token{Symbol: "USDT", Address: common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"), Category: domain.CategoryStablecoin, Decimals: 18}
	wbnb := domain.Token{Symbol: "WBNB", Address: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), Category: domain.CategoryMajor, Decimals: 18}
	cake := domain.Token{Symbol: "CAKE", Address: common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"), Category: domain.CategoryOther, Decimals: 18}
	p, err := domain.NewPath([]domain.Token{usdt, wbnb, cake, usdt})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func opportunity(id string, path domain.Path, at time.Time, actionable bool) domain.Opportunity {
	return domain.Opportunity{
		ID:              id,
		CycleID:         "cycle-1",
		Path:            path,
		SizedAmountUSD:  5000,
		GrossProfitUSD:  80,
		FeesUSD:         37.5,
		SlippageUSD:     4.2,
		GasCostUSD:      0.27,
		NetProfitUSD:    79.73,
		EdgeUSD:         121.7,
		Confidence:      domain.ConfidenceHigh,
		ConfidenceScore: 0.85,
		Efficiency:      26.58,
		Actionable:      actionable,
		DetectedAt:      at,
	}
}

func TestOpportunityStore(t *testing.T) {
	ctx := context.Background()
	store := NewOpportunityStore(openTestDB(t))
	path := testPath(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	opps := []domain.Opportunity{
		opportunity("a", path, base, true),
		opportunity("b", path, base.Add(time.Second), false),
		opportunity("c", path, base.Add(2*time.Second), true),
	}
	if err := store.InsertBatch(ctx, opps); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	// duplicates are ignored
	if err := store.InsertBatch(ctx, opps[:1]); err != nil {
		t.Fatalf("InsertBatch duplicate: %v", err)
	}

	got, err := store.GetByID(ctx, "b")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Path.ID != path.ID || got.Confidence != domain.ConfidenceHigh || !got.DetectedAt.Equal(opps[1].DetectedAt) {
		t.Errorf("GetByID = %+v", got)
	}
	if got.NetProfitUSD != 79.73 || got.Actionable {
		t.Errorf("numeric fields not restored: %+v", got)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID missing err = %v", err)
	}

	recent, err := store.ListRecent(ctx, domain.ListOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("ListRecent = %v", ids(recent))
	}

	since := base.Add(time.Second)
	recent, _ = store.ListRecent(ctx, domain.ListOpts{Since: &since, Offset: 1})
	if len(recent) != 1 || recent[0].ID != "b" {
		t.Errorf("ListRecent since+offset = %v", ids(recent))
	}

	act, err := store.ListActionable(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(act) != 2 || act[0].ID != "c" || act[1].ID != "a" {
		t.Errorf("ListActionable = %v", ids(act))
	}
}

func TestSimulationStore(t *testing.T) {
	ctx := context.Background()
	store := NewSimulationStore(openTestDB(t))

	sum := domain.SimulationSummary{
		ID:               "sim-1",
		Trials:           100,
		SuccessfulTrades: 60,
		FailedTrades:     30,
		SkippedTrials:    10,
		SuccessRate:      0.6667,
		NetProfitUSD:     1234.5,
		Best:             &domain.TradeOutcome{Trial: 7, RealizedUSD: 95},
		Errors:           []domain.SimulationError{{Trial: 3, OpportunityID: "x", Reason: "no path"}},
		Projection:       domain.Projection{TradesPerDay: 20, Daily: 246.9, Label: domain.ProjectionLabel},
		Seed:             1<<63 + 5,
		CreatedAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Insert(ctx, sum); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, sum); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate Insert err = %v", err)
	}

	got, err := store.GetByID(ctx, "sim-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Seed != sum.Seed {
		t.Errorf("seed = %d, want %d", got.Seed, sum.Seed)
	}
	if got.Best == nil || got.Best.Trial != 7 || got.Worst != nil {
		t.Errorf("best/worst = %+v / %+v", got.Best, got.Worst)
	}
	if len(got.Errors) != 1 || got.Projection.Label != domain.ProjectionLabel {
		t.Errorf("nested fields = %+v", got)
	}

	list, err := store.ListRecent(ctx, 5)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListRecent = %v, %v", list, err)
	}
	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestScanCycleStore(t *testing.T) {
	ctx := context.Background()
	store := NewScanCycleStore(openTestDB(t))
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c1", "c2"} {
		c := domain.ScanCycle{
			ID:             id,
			StartedAt:      start.Add(time.Duration(i) * time.Minute),
			Duration:       1500 * time.Millisecond,
			PairsRequested: 6,
			PairsAvailable: 6,
			PathsEvaluated: 2,
			Rejections:     map[domain.RejectReason]int{domain.RejectBelowProfitFloor: 1},
			Actionable:     1,
			Retained:       1,
			GasPriceGwei:   3,
			Abandoned:      i == 1,
		}
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	cycles, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 2 || cycles[0].ID != "c2" {
		t.Fatalf("ListRecent = %+v", cycles)
	}
	if !cycles[0].Abandoned || cycles[1].Abandoned {
		t.Errorf("abandoned flags wrong")
	}
	if cycles[1].Duration != 1500*time.Millisecond || cycles[1].Rejections[domain.RejectBelowProfitFloor] != 1 {
		t.Errorf("cycle fields = %+v", cycles[1])
	}
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(context.Background(), ":memory:", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	// schema must be visible on the single pooled connection
	if _, err := NewScanCycleStore(db).ListRecent(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
}

func ids(opps []domain.Opportunity) []string {
	out := make([]string, len(opps))
	for i, o := range opps {
		out[i] = o.ID
	}
	return out
}
