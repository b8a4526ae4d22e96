package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Category groups tokens by volatility profile. Thresholds, sizing caps and
// fee overrides are keyed by category.
type Category string

const (
	CategoryStablecoin Category = "stablecoin"
	CategoryMajor      Category = "major"
	CategoryOther      Category = "other"
)

// Categories lists every category from strictest to loosest sizing.
var Categories = []Category{CategoryStablecoin, CategoryMajor, CategoryOther}

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryStablecoin, CategoryMajor, CategoryOther:
		return c, nil
	default:
		return "", fmt.Errorf("unknown token category %q", s)
	}
}

// Token is immutable reference data loaded at startup.
type Token struct {
	Symbol   string
	Address  common.Address
	Category Category
	Decimals uint8
	// ReferenceUSD is an indicative USD price used only where a USD
	// conversion is needed and no live quote is configured (0 = unknown).
	ReferenceUSD float64
}

// NewToken validates and builds a Token.
func NewToken(symbol, address string, category Category, decimals uint8) (Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Token{}, fmt.Errorf("token: empty symbol")
	}
	if !common.IsHexAddress(address) {
		return Token{}, fmt.Errorf("token %s: invalid address %q", symbol, address)
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return Token{}, fmt.Errorf("token %s: %w", symbol, err)
	}
	return Token{
		Symbol:   symbol,
		Address:  common.HexToAddress(address),
		Category: category,
		Decimals: decimals,
	}, nil
}

func (t Token) String() string { return t.Symbol }

// PairKey identifies a directed pair: one unit of Base is worth Price units
// of Quote.
type PairKey struct {
	Base  string
	Quote string
}

// NewPairKey builds the key for base/quote.
func NewPairKey(base, quote Token) PairKey {
	return PairKey{Base: base.Symbol, Quote: quote.Symbol}
}

func (k PairKey) String() string { return k.Base + "/" + k.Quote }

// PairCategory classifies a pair: stablecoin if both legs are stablecoins,
// major if either leg is a major, other otherwise.
func PairCategory(a, b Token) Category {
	switch {
	case a.Category == CategoryStablecoin && b.Category == CategoryStablecoin:
		return CategoryStablecoin
	case a.Category == CategoryMajor || b.Category == CategoryMajor:
		return CategoryMajor
	default:
		return CategoryOther
	}
}
