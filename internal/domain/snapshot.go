package domain

import "time"

// Snapshot is the immutable price book of one scan cycle. Every path in the
// cycle is evaluated against the same Snapshot.
type Snapshot struct {
	CycleID      string
	Prices       map[PairKey]ConsensusPrice
	GasPriceGwei float64 // 0 when the oracle failed
	NativeUSD    float64 // USD price of the chain's gas token, 0 when unknown
	TakenAt      time.Time
}

// Price looks up the consensus for base/quote.
func (s *Snapshot) Price(base, quote Token) (ConsensusPrice, bool) {
	if s == nil {
		return ConsensusPrice{}, false
	}
	cp, ok := s.Prices[NewPairKey(base, quote)]
	return cp, ok
}

// Len returns the number of available pairs.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Prices)
}
