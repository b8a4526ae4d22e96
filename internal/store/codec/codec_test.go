package codec

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func tok(sym string, cat domain.Category, addr string) domain.Token {
	return domain.Token{Symbol: sym, Address: common.HexToAddress(addr), Category: cat, Decimals: 18}
}

func TestPathRestoresIDAndAddresses(t *testing.T) {
	usdt := tok("USDT", domain.CategoryStablecoin, "0x55d398326f99059fF775485246999027B3197955")
	wbnb := tok("WBNB", domain.CategoryMajor, "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	cake := tok("CAKE", domain.CategoryOther, "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")
	p, err := domain.NewPath([]domain.Token{usdt, wbnb, cake, usdt})
	if err != nil {
		t.Fatal(err)
	}

	b, err := EncodePath(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePath(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}
	if got.Tokens[1].Address != wbnb.Address || got.Tokens[2].Category != domain.CategoryOther {
		t.Errorf("tokens not restored: %+v", got.Tokens)
	}
}

func TestDecodePathRejectsOpenCycle(t *testing.T) {
	_, err := DecodePath([]byte(`[{"Symbol":"A"},{"Symbol":"B"},{"Symbol":"C"},{"Symbol":"D"}]`))
	if !errors.Is(err, domain.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
}

func TestRejectionsNilAndEmpty(t *testing.T) {
	b, err := EncodeRejections(nil)
	if err != nil || string(b) != "{}" {
		t.Fatalf("EncodeRejections(nil) = %s, %v", b, err)
	}
	m, err := DecodeRejections(nil)
	if err != nil || m == nil || len(m) != 0 {
		t.Fatalf("DecodeRejections(nil) = %v, %v", m, err)
	}

	b, _ = EncodeRejections(map[domain.RejectReason]int{domain.RejectLowConfidence: 3})
	m, err = DecodeRejections(b)
	if err != nil || m[domain.RejectLowConfidence] != 3 {
		t.Fatalf("decoded %v, %v", m, err)
	}
}

func TestSimulationOptionalTrades(t *testing.T) {
	s := domain.SimulationSummary{
		ID:         "sim-1",
		Projection: domain.Projection{TradesPerDay: 10, Daily: 12.5, Label: domain.ProjectionLabel},
	}
	cols, err := EncodeSimulation(s)
	if err != nil {
		t.Fatal(err)
	}
	if cols.Best != nil || cols.Worst != nil {
		t.Fatalf("absent trades should encode as nil, got %s / %s", cols.Best, cols.Worst)
	}
	if string(cols.Errors) != "[]" {
		t.Errorf("errors = %s, want []", cols.Errors)
	}

	s.Best = &domain.TradeOutcome{Trial: 4, RealizedUSD: 42}
	cols, _ = EncodeSimulation(s)
	var out domain.SimulationSummary
	if err := DecodeSimulation(cols, &out); err != nil {
		t.Fatal(err)
	}
	if out.Best == nil || out.Best.Trial != 4 || out.Worst != nil {
		t.Errorf("best/worst = %+v / %+v", out.Best, out.Worst)
	}
	if out.Projection.Label != domain.ProjectionLabel {
		t.Errorf("label = %q", out.Projection.Label)
	}
}
