package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
)

// OpportunityService answers opportunity queries from the persistent store
// when one is configured, otherwise from the in-process history.
type OpportunityService struct {
	history *ranker.History
	store   domain.OpportunityStore
}

// NewOpportunityService creates an OpportunityService. Either argument may
// be nil.
func NewOpportunityService(history *ranker.History, store domain.OpportunityStore) *OpportunityService {
	return &OpportunityService{history: history, store: store}
}

// Recent returns opportunities newest first.
func (s *OpportunityService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	if s.store != nil {
		opps, err := s.store.ListRecent(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("service: recent opportunities: %w", err)
		}
		return opps, nil
	}
	if s.history == nil {
		return nil, nil
	}
	all := s.history.Recent(0)
	var out []domain.Opportunity
	for _, o := range all {
		if opts.Since != nil && o.DetectedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && o.DetectedAt.After(*opts.Until) {
			continue
		}
		out = append(out, o)
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Latest returns the newest actionable opportunity, or domain.ErrNotFound.
// The in-process history is consulted first since it is fresher than the
// store.
func (s *OpportunityService) Latest(ctx context.Context) (domain.Opportunity, error) {
	if s.history != nil {
		if o, ok := s.history.Latest(); ok {
			return o, nil
		}
	}
	if s.store != nil {
		opps, err := s.store.ListActionable(ctx, 1)
		if err != nil {
			return domain.Opportunity{}, fmt.Errorf("service: latest opportunity: %w", err)
		}
		if len(opps) > 0 {
			return opps[0], nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

// Get returns one opportunity by ID.
func (s *OpportunityService) Get(ctx context.Context, id string) (domain.Opportunity, error) {
	if s.store != nil {
		return s.store.GetByID(ctx, id)
	}
	if s.history != nil {
		for _, o := range s.history.Recent(0) {
			if o.ID == id {
				return o, nil
			}
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

// Stats summarizes the in-process history. It is empty when the scanner
// does not run in this process.
func (s *OpportunityService) Stats() ranker.Stats {
	if s.history == nil {
		return ranker.Stats{}
	}
	return s.history.Stats()
}
