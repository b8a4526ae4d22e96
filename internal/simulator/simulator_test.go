package simulator

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sample(id string, gross, gas float64) domain.Opportunity {
	return domain.Opportunity{
		ID:             id,
		Path:           domain.Path{ID: "p-" + id},
		SizedAmountUSD: 10_000,
		GrossProfitUSD: gross,
		FeesUSD:        75,
		SlippageUSD:    10,
		GasCostUSD:     gas,
		NetProfitUSD:   gross - gas,
	}
}

func batch(n int) []domain.Opportunity {
	out := make([]domain.Opportunity, n)
	for i := range out {
		out[i] = sample(string(rune('a'+i)), 50+float64(i)*10, 2)
	}
	return out
}

func TestSuccessRate(t *testing.T) {
	sim := New(DefaultConfig(), discardLogger())
	sum, err := sim.Simulate(batch(10), 1000)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if sum.SuccessfulTrades+sum.FailedTrades != 1000 {
		t.Errorf("executed = %d, want 1000", sum.SuccessfulTrades+sum.FailedTrades)
	}
	if math.Abs(sum.SuccessRate-0.9) > 0.04 {
		t.Errorf("success rate = %.3f, want about 0.9", sum.SuccessRate)
	}
	if sum.Projection.Label != domain.ProjectionLabel || sum.Projection.TradesPerDay != 400 {
		t.Errorf("projection = %+v", sum.Projection)
	}
	if math.Abs(sum.Projection.Weekly-7*sum.Projection.Daily) > 1e-6 {
		t.Errorf("weekly %v is not 7x daily %v", sum.Projection.Weekly, sum.Projection.Daily)
	}
}

func TestFailuresPayExactlyGas(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuccessProbability = 0
	sim := New(cfg, discardLogger())

	opps := batch(10)
	sum, err := sim.Simulate(opps, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if sum.SuccessfulTrades != 0 || sum.FailedTrades != 1000 {
		t.Fatalf("got %d/%d, want all failures", sum.SuccessfulTrades, sum.FailedTrades)
	}
	if sum.TotalProfitUSD != 0 {
		t.Errorf("failures realized profit %v", sum.TotalProfitUSD)
	}
	if math.Abs(sum.NetProfitUSD+sum.TotalGasUSD) > 1e-9 {
		t.Errorf("net %v, want -gas %v", sum.NetProfitUSD, -sum.TotalGasUSD)
	}
	if sum.Best.RealizedUSD != -sum.Best.GasCostUSD || sum.Worst.RealizedUSD != -sum.Worst.GasCostUSD {
		t.Errorf("failed trades must realize exactly -gas: best %+v worst %+v", sum.Best, sum.Worst)
	}
}

func TestDeterministicMix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GasStdDev = 0
	cfg.ProfitStdDev = 0
	sim := New(cfg, discardLogger())

	opps := []domain.Opportunity{sample("x", 100, 4)}
	sum, err := sim.Simulate(opps, 500)
	if err != nil {
		t.Fatal(err)
	}
	want := float64(sum.SuccessfulTrades)*100*0.95 - 500*4
	if math.Abs(sum.NetProfitUSD-want) > 1e-6 {
		t.Errorf("net = %v, want %v", sum.NetProfitUSD, want)
	}
	if sum.TotalGasUSD != 2000 {
		t.Errorf("gas = %v, want 2000", sum.TotalGasUSD)
	}
	if sum.Worst.Success || sum.Worst.RealizedUSD != -4 {
		t.Errorf("worst = %+v, want a failed trade at -4", sum.Worst)
	}
}

func TestSeedReproducible(t *testing.T) {
	a, err := New(DefaultConfig(), discardLogger()).Simulate(batch(3), 300)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(DefaultConfig(), discardLogger()).Simulate(batch(3), 300)
	if err != nil {
		t.Fatal(err)
	}
	if a.NetProfitUSD != b.NetProfitUSD || a.SuccessfulTrades != b.SuccessfulTrades {
		t.Errorf("same seed gave %v/%d and %v/%d", a.NetProfitUSD, a.SuccessfulTrades, b.NetProfitUSD, b.SuccessfulTrades)
	}
}

func TestMalformedSkipped(t *testing.T) {
	bad := sample("bad", math.NaN(), 2)
	neg := sample("neg", 10, -1)
	opps := []domain.Opportunity{sample("ok", 80, 2), bad, neg}

	sum, err := New(DefaultConfig(), discardLogger()).Simulate(opps, 30)
	if err != nil {
		t.Fatal(err)
	}
	if sum.SkippedTrials != 20 || len(sum.Errors) != 20 {
		t.Errorf("skipped = %d errors = %d, want 20", sum.SkippedTrials, len(sum.Errors))
	}
	if sum.SuccessfulTrades+sum.FailedTrades != 10 {
		t.Errorf("executed = %d, want 10", sum.SuccessfulTrades+sum.FailedTrades)
	}
	if sum.Errors[0].OpportunityID != "bad" || sum.Errors[0].Trial != 1 {
		t.Errorf("first error = %+v", sum.Errors[0])
	}
}

func TestEmptyInput(t *testing.T) {
	if _, err := New(DefaultConfig(), discardLogger()).Simulate(nil, 10); !errors.Is(err, ErrNoInput) {
		t.Errorf("err = %v, want ErrNoInput", err)
	}
	if _, err := New(DefaultConfig(), discardLogger()).Simulate(batch(1), 0); err == nil {
		t.Error("expected error for zero trials")
	}
}

func TestMalformedReasonStable(t *testing.T) {
	bad := sample("bad", math.NaN(), math.Inf(1))
	bad.FeesUSD = math.NaN()
	bad.NetProfitUSD = math.Inf(-1)

	for i := 0; i < 20; i++ {
		sum, err := New(DefaultConfig(), discardLogger()).Simulate([]domain.Opportunity{sample("ok", 80, 2), bad}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(sum.Errors) != 1 {
			t.Fatalf("errors = %d, want 1", len(sum.Errors))
		}
		if got := sum.Errors[0].Reason; got != "gross is not finite" {
			t.Fatalf("run %d: reason = %q, want the first bad field", i, got)
		}
	}
}
