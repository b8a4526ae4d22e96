// Package pathfind enumerates closed multi-hop trading cycles over a token
// universe.
package pathfind

import (
	"fmt"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// Options restrict cycle generation.
type Options struct {
	MinHops int
	MaxHops int
	// Start limits which tokens a cycle may begin with; empty means any.
	Start []domain.Token
	// MaxPaths caps the result; 0 means unlimited. Shorter cycles are
	// emitted first, so the cap trims the longest ones.
	MaxPaths int
}

// Enumerate returns every simple cycle over tokens whose hop count lies in
// [MinHops, MaxHops]. A cycle never revisits a token before closing. Output
// order is deterministic: by hop count, then by token order in the input.
func Enumerate(tokens []domain.Token, opts Options) ([]domain.Path, error) {
	if opts.MinHops == 0 {
		opts.MinHops = domain.MinPathHops
	}
	if opts.MaxHops == 0 {
		opts.MaxHops = opts.MinHops
	}
	if opts.MinHops < domain.MinPathHops || opts.MaxHops > domain.MaxPathHops || opts.MinHops > opts.MaxHops {
		return nil, fmt.Errorf("pathfind: hops %d-%d outside %d-%d", opts.MinHops, opts.MaxHops, domain.MinPathHops, domain.MaxPathHops)
	}
	if len(tokens) < opts.MinHops {
		return nil, fmt.Errorf("pathfind: %d tokens cannot form a %d-hop cycle", len(tokens), opts.MinHops)
	}

	starts := opts.Start
	if len(starts) == 0 {
		starts = tokens
	}

	var paths []domain.Path
	for hops := opts.MinHops; hops <= opts.MaxHops; hops++ {
		for _, start := range starts {
			cycle := make([]domain.Token, 1, hops+1)
			cycle[0] = start
			used := map[string]bool{start.Symbol: true}

			var walk func() bool
			walk = func() bool {
				if len(cycle) == hops {
					closed := append(append([]domain.Token(nil), cycle...), start)
					p, err := domain.NewPath(closed)
					if err != nil {
						return true
					}
					paths = append(paths, p)
					return opts.MaxPaths == 0 || len(paths) < opts.MaxPaths
				}
				for _, next := range tokens {
					if used[next.Symbol] {
						continue
					}
					used[next.Symbol] = true
					cycle = append(cycle, next)
					more := walk()
					cycle = cycle[:len(cycle)-1]
					used[next.Symbol] = false
					if !more {
						return false
					}
				}
				return true
			}
			if !walk() {
				return paths, nil
			}
		}
	}
	return paths, nil
}

// Pairs returns the distinct directed pairs touched by paths, in first-seen
// order.
func Pairs(paths []domain.Path) [][2]domain.Token {
	seen := make(map[domain.PairKey]bool)
	var out [][2]domain.Token
	for _, p := range paths {
		for i := 0; i+1 < len(p.Tokens); i++ {
			k := domain.NewPairKey(p.Tokens[i], p.Tokens[i+1])
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, [2]domain.Token{p.Tokens[i], p.Tokens[i+1]})
		}
	}
	return out
}
