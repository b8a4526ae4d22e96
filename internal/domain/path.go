package domain

import (
	"fmt"
	"strings"
)

const (
	MinPathHops = 3
	MaxPathHops = 6
)

// Path is a closed cycle of tokens: Tokens[0] == Tokens[len-1].
type Path struct {
	ID     string
	Tokens []Token
}

// NewPath validates the cycle and derives its ID from the token symbols.
func NewPath(tokens []Token) (Path, error) {
	if len(tokens) < MinPathHops+1 || len(tokens) > MaxPathHops+1 {
		return Path{}, fmt.Errorf("%w: %d hops, want %d-%d", ErrInvalidPath, len(tokens)-1, MinPathHops, MaxPathHops)
	}
	if tokens[0].Symbol != tokens[len(tokens)-1].Symbol {
		return Path{}, fmt.Errorf("%w: %s does not return to %s", ErrInvalidPath, tokens[len(tokens)-1].Symbol, tokens[0].Symbol)
	}
	seen := make(map[string]bool, len(tokens))
	syms := make([]string, len(tokens))
	for i, t := range tokens {
		if t.Symbol == "" {
			return Path{}, fmt.Errorf("%w: empty token at position %d", ErrInvalidPath, i)
		}
		syms[i] = t.Symbol
		if i == len(tokens)-1 {
			continue
		}
		if seen[t.Symbol] {
			return Path{}, fmt.Errorf("%w: %s visited twice", ErrInvalidPath, t.Symbol)
		}
		seen[t.Symbol] = true
	}
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	return Path{ID: strings.Join(syms, "->"), Tokens: cp}, nil
}

// Hops is the number of swaps in the cycle.
func (p Path) Hops() int {
	if len(p.Tokens) == 0 {
		return 0
	}
	return len(p.Tokens) - 1
}

// Start returns the token the cycle begins and ends with.
func (p Path) Start() Token { return p.Tokens[0] }

// Pairs returns the directed pair of every hop in order.
func (p Path) Pairs() []PairKey {
	out := make([]PairKey, 0, p.Hops())
	for i := 0; i+1 < len(p.Tokens); i++ {
		out = append(out, NewPairKey(p.Tokens[i], p.Tokens[i+1]))
	}
	return out
}

func (p Path) String() string { return p.ID }
