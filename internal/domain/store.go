package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists ranked opportunities for history and
// back-testing.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, opps []Opportunity) error
	GetByID(ctx context.Context, id string) (Opportunity, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Opportunity, error)
	ListActionable(ctx context.Context, limit int) ([]Opportunity, error)
}

// SimulationStore persists simulation summaries.
type SimulationStore interface {
	Insert(ctx context.Context, s SimulationSummary) error
	GetByID(ctx context.Context, id string) (SimulationSummary, error)
	ListRecent(ctx context.Context, limit int) ([]SimulationSummary, error)
}

// ScanCycleStore persists an append-only log of scan cycles.
type ScanCycleStore interface {
	Insert(ctx context.Context, c ScanCycle) error
	ListRecent(ctx context.Context, limit int) ([]ScanCycle, error)
}
