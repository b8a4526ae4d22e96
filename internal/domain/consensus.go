package domain

import (
	"fmt"
	"time"
)

// ConfidenceLevel is the discrete confidence ladder attached to consensus
// prices and opportunities.
type ConfidenceLevel int

const (
	ConfidenceLow ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceVeryHigh
)

var confidenceNames = [...]string{"low", "medium", "high", "very_high"}

// confidenceScores maps each level to the numeric score used for hop
// penalties and tie-breaks.
var confidenceScores = [...]float64{0.5, 0.7, 0.85, 1.0}

func (c ConfidenceLevel) String() string {
	if c < ConfidenceLow || c > ConfidenceVeryHigh {
		return fmt.Sprintf("confidence(%d)", int(c))
	}
	return confidenceNames[c]
}

// Score returns the numeric score of the level.
func (c ConfidenceLevel) Score() float64 {
	if c < ConfidenceLow {
		return 0
	}
	if c > ConfidenceVeryHigh {
		return confidenceScores[ConfidenceVeryHigh]
	}
	return confidenceScores[c]
}

// MarshalText renders the level name in JSON and TOML.
func (c ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a level name.
func (c *ConfidenceLevel) UnmarshalText(b []byte) error {
	lvl, err := ParseConfidence(string(b))
	if err != nil {
		return err
	}
	*c = lvl
	return nil
}

// ParseConfidence converts a level name into a ConfidenceLevel.
func ParseConfidence(s string) (ConfidenceLevel, error) {
	for i, name := range confidenceNames {
		if name == s {
			return ConfidenceLevel(i), nil
		}
	}
	return ConfidenceLow, fmt.Errorf("unknown confidence level %q", s)
}

// ConfidenceForScore returns the highest level whose score does not exceed
// score. Scores below the lowest tier map to ConfidenceLow.
func ConfidenceForScore(score float64) ConfidenceLevel {
	for lvl := ConfidenceVeryHigh; lvl > ConfidenceLow; lvl-- {
		if score >= confidenceScores[lvl] {
			return lvl
		}
	}
	return ConfidenceLow
}

// ConsensusPrice is the per-cycle reconciliation of every fresh quote for a
// pair. It never outlives the cycle that computed it.
type ConsensusPrice struct {
	Base                 Token
	Quote                Token
	Category             Category
	MedianPrice          float64
	Confidence           ConfidenceLevel
	ManipulationDetected bool
	ContributingSources  int
	MaxDeviation         float64
	// LiquidityUSD is the smallest positive liquidity reported by any
	// contributing source, 0 when no source reported it.
	LiquidityUSD float64
	ComputedAt   time.Time
}

// Pair returns the directed pair key.
func (c ConsensusPrice) Pair() PairKey { return NewPairKey(c.Base, c.Quote) }
