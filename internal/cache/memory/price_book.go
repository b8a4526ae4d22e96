package memory

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// PriceBook keeps the latest snapshot behind an atomic pointer.
type PriceBook struct {
	snap atomic.Pointer[domain.Snapshot]
}

// NewPriceBook creates an empty PriceBook.
func NewPriceBook() *PriceBook { return &PriceBook{} }

// Put replaces the book. Snapshots are immutable, so no copy is taken.
func (pb *PriceBook) Put(ctx context.Context, snap *domain.Snapshot) error {
	if snap.Len() > 0 {
		pb.snap.Store(snap)
	}
	return nil
}

// Latest returns the prices of the last Put sorted by pair.
func (pb *PriceBook) Latest(ctx context.Context) ([]domain.ConsensusPrice, error) {
	snap := pb.snap.Load()
	out := make([]domain.ConsensusPrice, 0, snap.Len())
	if snap == nil {
		return out, nil
	}
	for _, cp := range snap.Prices {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pair().String() < out[j].Pair().String()
	})
	return out, nil
}

var _ domain.PriceBook = (*PriceBook)(nil)
