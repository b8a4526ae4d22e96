// Package codec converts the nested parts of domain records to and from the
// JSON columns shared by the SQL stores.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// EncodePath stores only the token sequence; the ID is derived again on
// decode.
func EncodePath(p domain.Path) ([]byte, error) {
	b, err := json.Marshal(p.Tokens)
	if err != nil {
		return nil, fmt.Errorf("codec: encode path %s: %w", p.ID, err)
	}
	return b, nil
}

// DecodePath rebuilds a validated path from its stored tokens.
func DecodePath(b []byte) (domain.Path, error) {
	var tokens []domain.Token
	if err := json.Unmarshal(b, &tokens); err != nil {
		return domain.Path{}, fmt.Errorf("codec: decode path: %w", err)
	}
	return domain.NewPath(tokens)
}

// EncodeRejections marshals per-reason counts. A nil map encodes as {}.
func EncodeRejections(m map[domain.RejectReason]int) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeRejections is the inverse of EncodeRejections.
func DecodeRejections(b []byte) (map[domain.RejectReason]int, error) {
	m := map[domain.RejectReason]int{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("codec: decode rejections: %w", err)
	}
	return m, nil
}

// SimulationColumns holds the JSON encoded parts of a simulation summary.
type SimulationColumns struct {
	Best       []byte // nil when absent
	Worst      []byte
	Errors     []byte
	Projection []byte
}

// EncodeSimulation splits out the nested fields of s.
func EncodeSimulation(s domain.SimulationSummary) (SimulationColumns, error) {
	var cols SimulationColumns
	var err error
	if s.Best != nil {
		if cols.Best, err = json.Marshal(s.Best); err != nil {
			return cols, fmt.Errorf("codec: encode best trade: %w", err)
		}
	}
	if s.Worst != nil {
		if cols.Worst, err = json.Marshal(s.Worst); err != nil {
			return cols, fmt.Errorf("codec: encode worst trade: %w", err)
		}
	}
	errs := s.Errors
	if errs == nil {
		errs = []domain.SimulationError{}
	}
	if cols.Errors, err = json.Marshal(errs); err != nil {
		return cols, fmt.Errorf("codec: encode simulation errors: %w", err)
	}
	if cols.Projection, err = json.Marshal(s.Projection); err != nil {
		return cols, fmt.Errorf("codec: encode projection: %w", err)
	}
	return cols, nil
}

// DecodeSimulation fills the nested fields of s from cols.
func DecodeSimulation(cols SimulationColumns, s *domain.SimulationSummary) error {
	if len(cols.Best) > 0 {
		s.Best = &domain.TradeOutcome{}
		if err := json.Unmarshal(cols.Best, s.Best); err != nil {
			return fmt.Errorf("codec: decode best trade: %w", err)
		}
	}
	if len(cols.Worst) > 0 {
		s.Worst = &domain.TradeOutcome{}
		if err := json.Unmarshal(cols.Worst, s.Worst); err != nil {
			return fmt.Errorf("codec: decode worst trade: %w", err)
		}
	}
	if len(cols.Errors) > 0 {
		if err := json.Unmarshal(cols.Errors, &s.Errors); err != nil {
			return fmt.Errorf("codec: decode simulation errors: %w", err)
		}
	}
	if len(cols.Projection) > 0 {
		if err := json.Unmarshal(cols.Projection, &s.Projection); err != nil {
			return fmt.Errorf("codec: decode projection: %w", err)
		}
	}
	return nil
}
