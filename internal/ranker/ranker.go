// Package ranker gates evaluated opportunities and orders the survivors.
package ranker

import (
	"cmp"
	"slices"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// Ranker filters and orders opportunities. It holds no per-cycle state.
type Ranker struct {
	topK int
}

// New creates a Ranker that marks the best topK opportunities actionable.
func New(topK int) *Ranker {
	if topK < 1 {
		topK = 1
	}
	return &Ranker{topK: topK}
}

// Rank drops manipulated and unprofitable opportunities and orders the rest
// by efficiency, then confidence score, then path ID. The input is not
// modified.
func (r *Ranker) Rank(opps []domain.Opportunity) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.ManipulationRisk || o.NetProfitUSD <= 0 {
			continue
		}
		o.Actionable = false
		out = append(out, o)
	}
	slices.SortStableFunc(out, func(a, b domain.Opportunity) int {
		if c := cmp.Compare(b.Efficiency, a.Efficiency); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ConfidenceScore, a.ConfidenceScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Path.ID, b.Path.ID)
	})
	return out
}

// Select ranks opps and splits them into the actionable top-K and the
// remainder, which is kept for statistics only.
func (r *Ranker) Select(opps []domain.Opportunity) (actionable, retained []domain.Opportunity) {
	ranked := r.Rank(opps)
	k := min(r.topK, len(ranked))
	for i := range ranked[:k] {
		ranked[i].Actionable = true
	}
	return ranked[:k], ranked[k:]
}
