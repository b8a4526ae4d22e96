package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func tok(sym string, cat Category) Token {
	return Token{Symbol: sym, Category: cat}
}

func TestPairCategory(t *testing.T) {
	usdt := tok("USDT", CategoryStablecoin)
	busd := tok("BUSD", CategoryStablecoin)
	wbnb := tok("WBNB", CategoryMajor)
	cake := tok("CAKE", CategoryOther)

	tests := []struct {
		a, b Token
		want Category
	}{
		{usdt, busd, CategoryStablecoin},
		{usdt, wbnb, CategoryMajor},
		{cake, wbnb, CategoryMajor},
		{cake, usdt, CategoryOther},
	}
	for _, tt := range tests {
		if got := PairCategory(tt.a, tt.b); got != tt.want {
			t.Errorf("PairCategory(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewTokenRejectsBadAddress(t *testing.T) {
	if _, err := NewToken("WBNB", "0xnot-an-address", CategoryMajor, 18); err == nil {
		t.Fatal("expected error for invalid address")
	}
	tk, err := NewToken(" wbnb ", "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", CategoryMajor, 18)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if tk.Symbol != "WBNB" {
		t.Errorf("symbol = %q, want WBNB", tk.Symbol)
	}
}

func TestNewQuoteValidation(t *testing.T) {
	base, quote := tok("WBNB", CategoryMajor), tok("USDT", CategoryStablecoin)
	now := time.Now()

	bad := []struct {
		name  string
		src   string
		price float64
		liq   float64
	}{
		{"empty source", "", 1, 0},
		{"zero price", "s", 0, 0},
		{"negative price", "s", -1, 0},
		{"nan price", "s", math.NaN(), 0},
		{"inf price", "s", math.Inf(1), 0},
		{"negative liquidity", "s", 1, -5},
	}
	for _, tt := range bad {
		if _, err := NewQuote(tt.src, base, quote, tt.price, tt.liq, now, 0); !errors.Is(err, ErrInvalidQuote) {
			t.Errorf("%s: err = %v, want ErrInvalidQuote", tt.name, err)
		}
	}

	q, err := NewQuote("s", base, quote, 600, 1e6, now.Add(-3*time.Second), 0)
	if err != nil {
		t.Fatalf("NewQuote: %v", err)
	}
	if !q.Fresh(now, 5*time.Second) {
		t.Error("3s old quote should be fresh within 5s")
	}
	if q.Fresh(now, 2*time.Second) {
		t.Error("3s old quote should be stale within 2s")
	}
}

func TestConfidenceForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{1.0, ConfidenceVeryHigh},
		{0.9, ConfidenceHigh},
		{0.85, ConfidenceHigh},
		{0.75, ConfidenceMedium},
		{0.6, ConfidenceLow},
		{0.1, ConfidenceLow},
	}
	for _, tt := range tests {
		if got := ConfidenceForScore(tt.score); got != tt.want {
			t.Errorf("ConfidenceForScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
	for lvl := ConfidenceLow; lvl < ConfidenceVeryHigh; lvl++ {
		if lvl.Score() >= (lvl + 1).Score() {
			t.Errorf("score of %s not below %s", lvl, lvl+1)
		}
	}
}

func TestConfidenceText(t *testing.T) {
	var c ConfidenceLevel
	if err := c.UnmarshalText([]byte("very_high")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if c != ConfidenceVeryHigh {
		t.Errorf("got %s, want very_high", c)
	}
	if err := c.UnmarshalText([]byte("extreme")); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewPath(t *testing.T) {
	a, b, c, d := tok("A", CategoryOther), tok("B", CategoryOther), tok("C", CategoryOther), tok("D", CategoryOther)

	p, err := NewPath([]Token{a, b, c, a})
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	if p.Hops() != 3 {
		t.Errorf("hops = %d, want 3", p.Hops())
	}
	if p.ID != "A->B->C->A" {
		t.Errorf("id = %q", p.ID)
	}
	pairs := p.Pairs()
	if len(pairs) != 3 || pairs[2] != (PairKey{Base: "C", Quote: "A"}) {
		t.Errorf("pairs = %v", pairs)
	}

	invalid := [][]Token{
		{a, b, a},                   // too short
		{a, b, c, d},                // not closed
		{a, b, b, c, a},             // revisits
		{a, b, c, d, a, b, c, a, b}, // too long
	}
	for _, toks := range invalid {
		if _, err := NewPath(toks); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("NewPath(%v) err = %v, want ErrInvalidPath", toks, err)
		}
	}
}

func TestReasonOf(t *testing.T) {
	err := error(Reject(RejectLowConfidence, "score %.2f", 0.6))
	r, ok := ReasonOf(err)
	if !ok || r != RejectLowConfidence {
		t.Errorf("ReasonOf = %q, %v", r, ok)
	}
	if _, ok := ReasonOf(errors.New("plain")); ok {
		t.Error("plain error should carry no reason")
	}
}
