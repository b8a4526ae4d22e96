package config

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// Universe is the validated token universe indexed by symbol.
type Universe struct {
	Tokens   []domain.Token
	bySymbol map[string]domain.Token
}

// BuildUniverse converts the configured tokens into domain tokens.
func (c *Config) BuildUniverse() (*Universe, error) {
	u := &Universe{bySymbol: make(map[string]domain.Token, len(c.Tokens))}
	for _, tc := range c.Tokens {
		cat, err := domain.ParseCategory(tc.Category)
		if err != nil {
			return nil, fmt.Errorf("config: token %s: %w", tc.Symbol, err)
		}
		t, err := domain.NewToken(tc.Symbol, tc.Address, cat, tc.Decimals)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		t.ReferenceUSD = tc.ReferenceUSD
		if _, dup := u.bySymbol[t.Symbol]; dup {
			return nil, fmt.Errorf("config: duplicate token %s", t.Symbol)
		}
		u.bySymbol[t.Symbol] = t
		u.Tokens = append(u.Tokens, t)
	}
	return u, nil
}

// Lookup returns the token with the given symbol.
func (u *Universe) Lookup(symbol string) (domain.Token, bool) {
	t, ok := u.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return t, ok
}

// Select returns the tokens named by symbols, or the whole universe when
// symbols is empty.
func (u *Universe) Select(symbols []string) ([]domain.Token, error) {
	if len(symbols) == 0 {
		return append([]domain.Token(nil), u.Tokens...), nil
	}
	out := make([]domain.Token, 0, len(symbols))
	for _, s := range symbols {
		t, ok := u.Lookup(s)
		if !ok {
			return nil, fmt.Errorf("config: unknown token %q", s)
		}
		out = append(out, t)
	}
	return out, nil
}
