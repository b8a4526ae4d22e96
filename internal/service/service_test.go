package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
	"github.com/alanyoungcy/tokenarb/internal/simulator"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func opp(id string, actionable bool, at time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:             id,
		SizedAmountUSD: 5000,
		GrossProfitUSD: 60,
		FeesUSD:        37.5,
		SlippageUSD:    3,
		GasCostUSD:     0.3,
		NetProfitUSD:   59.7,
		Actionable:     actionable,
		DetectedAt:     at,
	}
}

type fakeSims struct {
	mu    sync.Mutex
	saved []domain.SimulationSummary
}

func (f *fakeSims) Insert(_ context.Context, s domain.SimulationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return nil
}
func (f *fakeSims) GetByID(context.Context, string) (domain.SimulationSummary, error) {
	return domain.SimulationSummary{}, domain.ErrNotFound
}
func (f *fakeSims) ListRecent(context.Context, int) ([]domain.SimulationSummary, error) {
	return f.saved, nil
}

type fakeArchiver struct {
	loaded   []domain.Opportunity
	archived int
}

func (f *fakeArchiver) ArchiveSimulation(_ context.Context, s domain.SimulationSummary, _ []domain.Opportunity) (string, error) {
	f.archived++
	return "simulations/" + s.ID, nil
}
func (f *fakeArchiver) LoadOpportunities(context.Context, string) ([]domain.Opportunity, error) {
	return f.loaded, nil
}

type fakeOppStore struct {
	opps []domain.Opportunity
}

func (f *fakeOppStore) InsertBatch(context.Context, []domain.Opportunity) error { return nil }
func (f *fakeOppStore) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	for _, o := range f.opps {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}
func (f *fakeOppStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	if opts.Limit > 0 && opts.Limit < len(f.opps) {
		return f.opps[:opts.Limit], nil
	}
	return f.opps, nil
}
func (f *fakeOppStore) ListActionable(_ context.Context, limit int) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for _, o := range f.opps {
		if o.Actionable && (limit <= 0 || len(out) < limit) {
			out = append(out, o)
		}
	}
	return out, nil
}

func TestBacktestFromHistory(t *testing.T) {
	now := time.Now()
	h := ranker.NewHistory(10)
	h.Add(opp("a", true, now), opp("b", false, now), opp("c", true, now))

	sims := &fakeSims{}
	arch := &fakeArchiver{}
	svc := NewBacktestService(simulator.DefaultConfig(), 1000, discard()).
		WithHistory(h).
		WithStores(nil, sims).
		WithArchiver(arch)

	res, err := svc.Run(context.Background(), BacktestRequest{Trials: 50, ActionableOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Inputs != 2 {
		t.Errorf("inputs = %d, want 2", res.Inputs)
	}
	if res.Summary.Trials != 50 || res.Summary.SuccessfulTrades+res.Summary.FailedTrades != 50 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(sims.saved) != 1 || sims.saved[0].ID != res.Summary.ID {
		t.Errorf("stored %d summaries", len(sims.saved))
	}
	if arch.archived != 1 || res.ArchivePath != "simulations/"+res.Summary.ID {
		t.Errorf("archive path = %q", res.ArchivePath)
	}
}

func TestBacktestSeedOverride(t *testing.T) {
	h := ranker.NewHistory(10)
	h.Add(opp("a", true, time.Now()))
	svc := NewBacktestService(simulator.DefaultConfig(), 0, discard()).WithHistory(h)

	a, err := svc.Run(context.Background(), BacktestRequest{Trials: 40, Seed: 77})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := svc.Run(context.Background(), BacktestRequest{Trials: 40, Seed: 77})
	if a.Summary.Seed != 77 || a.Summary.NetProfitUSD != b.Summary.NetProfitUSD {
		t.Errorf("seeded runs differ: %v vs %v", a.Summary.NetProfitUSD, b.Summary.NetProfitUSD)
	}
}

func TestBacktestInputs(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("trial cap", func(t *testing.T) {
		svc := NewBacktestService(simulator.DefaultConfig(), 10, discard())
		if _, err := svc.Run(ctx, BacktestRequest{Trials: 11}); err == nil {
			t.Fatal("expected cap error")
		}
	})
	t.Run("no history", func(t *testing.T) {
		svc := NewBacktestService(simulator.DefaultConfig(), 0, discard()).WithHistory(ranker.NewHistory(5))
		if _, err := svc.Run(ctx, BacktestRequest{Trials: 1}); !errors.Is(err, ErrNoHistory) {
			t.Fatalf("err = %v, want ErrNoHistory", err)
		}
	})
	t.Run("input path needs archive", func(t *testing.T) {
		svc := NewBacktestService(simulator.DefaultConfig(), 0, discard())
		if _, err := svc.Run(ctx, BacktestRequest{Trials: 1, InputPath: "x.jsonl"}); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("input path", func(t *testing.T) {
		arch := &fakeArchiver{loaded: []domain.Opportunity{opp("x", true, now), opp("y", true, now), opp("z", true, now)}}
		svc := NewBacktestService(simulator.DefaultConfig(), 0, discard()).WithArchiver(arch)
		res, err := svc.Run(ctx, BacktestRequest{Trials: 3, InputPath: "in.jsonl", Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if res.Inputs != 2 {
			t.Errorf("inputs = %d, want 2", res.Inputs)
		}
	})
	t.Run("store actionable", func(t *testing.T) {
		store := &fakeOppStore{opps: []domain.Opportunity{opp("a", false, now), opp("b", true, now)}}
		svc := NewBacktestService(simulator.DefaultConfig(), 0, discard()).WithStores(store, nil)
		res, err := svc.Run(ctx, BacktestRequest{Trials: 2, ActionableOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		if res.Inputs != 1 {
			t.Errorf("inputs = %d, want 1", res.Inputs)
		}
	})
}

func TestOpportunityServiceHistory(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h := ranker.NewHistory(10)
	h.Add(opp("a", true, base), opp("b", false, base.Add(time.Minute)), opp("c", false, base.Add(2*time.Minute)))
	svc := NewOpportunityService(h, nil)

	recent, err := svc.Recent(ctx, domain.ListOpts{Limit: 2})
	if err != nil || len(recent) != 2 || recent[0].ID != "c" {
		t.Fatalf("Recent = %v, %v", recent, err)
	}
	since := base.Add(time.Minute)
	recent, _ = svc.Recent(ctx, domain.ListOpts{Since: &since, Offset: 1})
	if len(recent) != 1 || recent[0].ID != "b" {
		t.Errorf("Recent since/offset = %v", recent)
	}

	latest, err := svc.Latest(ctx)
	if err != nil || latest.ID != "a" {
		t.Errorf("Latest = %v, %v", latest.ID, err)
	}
	if _, err := svc.Get(ctx, "b"); err != nil {
		t.Errorf("Get b: %v", err)
	}
	if _, err := svc.Get(ctx, "zz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get missing err = %v", err)
	}
	if svc.Stats().Count != 3 {
		t.Errorf("Stats = %+v", svc.Stats())
	}
}

func TestOpportunityServiceStoreFallback(t *testing.T) {
	ctx := context.Background()
	store := &fakeOppStore{opps: []domain.Opportunity{opp("s1", true, time.Now())}}
	svc := NewOpportunityService(ranker.NewHistory(5), store)

	latest, err := svc.Latest(ctx)
	if err != nil || latest.ID != "s1" {
		t.Errorf("Latest = %v, %v", latest.ID, err)
	}

	empty := NewOpportunityService(nil, nil)
	if _, err := empty.Latest(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("empty Latest err = %v", err)
	}
	if opps, err := empty.Recent(ctx, domain.ListOpts{}); err != nil || opps != nil {
		t.Errorf("empty Recent = %v, %v", opps, err)
	}
}
