package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/store/codec"
)

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, cycle_id, path_tokens,
	sized_amount_usd, gross_profit_usd, fees_usd, slippage_usd,
	gas_cost_usd, net_profit_usd, edge_usd,
	confidence, confidence_score, manipulation_risk, efficiency,
	actionable, detected_at`

// InsertBatch stores a cycle's ranked opportunities in one round trip.
// Re-inserting an ID is a no-op.
func (s *OpportunityStore) InsertBatch(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO opportunities (
			id, cycle_id, path_id, path_tokens, hops,
			sized_amount_usd, gross_profit_usd, fees_usd, slippage_usd,
			gas_cost_usd, net_profit_usd, edge_usd,
			confidence, confidence_score, manipulation_risk, efficiency,
			actionable, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16,
			$17, $18
		) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range opps {
		tokens, err := codec.EncodePath(o.Path)
		if err != nil {
			return fmt.Errorf("postgres: insert opportunity %s: %w", o.ID, err)
		}
		batch.Queue(query,
			o.ID, o.CycleID, o.Path.ID, tokens, o.Hops(),
			o.SizedAmountUSD, o.GrossProfitUSD, o.FeesUSD, o.SlippageUSD,
			o.GasCostUSD, o.NetProfitUSD, o.EdgeUSD,
			o.Confidence.String(), o.ConfidenceScore, o.ManipulationRisk, o.Efficiency,
			o.Actionable, o.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunity batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID returns a single opportunity or domain.ErrNotFound.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+oppSelectCols+` FROM opportunities WHERE id = $1`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return o, nil
}

// ListRecent returns opportunities newest first, filtered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY detected_at DESC, id"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.query(ctx, "list recent opportunities", query, args...)
}

// ListActionable returns the newest actionable opportunities.
func (s *OpportunityStore) ListActionable(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE actionable ORDER BY detected_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	return s.query(ctx, "list actionable opportunities", query, args...)
}

func (s *OpportunityStore) query(ctx context.Context, op, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: %w", op, err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return opps, nil
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		o          domain.Opportunity
		tokens     []byte
		confidence string
	)
	if err := row.Scan(
		&o.ID, &o.CycleID, &tokens,
		&o.SizedAmountUSD, &o.GrossProfitUSD, &o.FeesUSD, &o.SlippageUSD,
		&o.GasCostUSD, &o.NetProfitUSD, &o.EdgeUSD,
		&confidence, &o.ConfidenceScore, &o.ManipulationRisk, &o.Efficiency,
		&o.Actionable, &o.DetectedAt,
	); err != nil {
		return domain.Opportunity{}, err
	}

	path, err := codec.DecodePath(tokens)
	if err != nil {
		return domain.Opportunity{}, err
	}
	o.Path = path
	if o.Confidence, err = domain.ParseConfidence(confidence); err != nil {
		return domain.Opportunity{}, err
	}
	return o, nil
}
