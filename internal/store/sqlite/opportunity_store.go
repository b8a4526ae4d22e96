package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/store/codec"
)

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// OpportunityStore implements domain.OpportunityStore on SQLite.
type OpportunityStore struct {
	db *sql.DB
}

// NewOpportunityStore creates a new OpportunityStore on d.
func NewOpportunityStore(d *DB) *OpportunityStore {
	return &OpportunityStore{db: d.db}
}

const oppSelectCols = `id, cycle_id, path_tokens,
	sized_amount_usd, gross_profit_usd, fees_usd, slippage_usd,
	gas_cost_usd, net_profit_usd, edge_usd,
	confidence, confidence_score, manipulation_risk, efficiency,
	actionable, detected_at`

// InsertBatch stores opps in a single transaction. Re-inserting an ID is a
// no-op.
func (s *OpportunityStore) InsertBatch(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin opportunity batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO opportunities (
			id, cycle_id, path_id, path_tokens, hops,
			sized_amount_usd, gross_profit_usd, fees_usd, slippage_usd,
			gas_cost_usd, net_profit_usd, edge_usd,
			confidence, confidence_score, manipulation_risk, efficiency,
			actionable, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare opportunity insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range opps {
		tokens, err := codec.EncodePath(o.Path)
		if err != nil {
			return fmt.Errorf("sqlite: insert opportunity %s: %w", o.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			o.ID, o.CycleID, o.Path.ID, string(tokens), o.Hops(),
			o.SizedAmountUSD, o.GrossProfitUSD, o.FeesUSD, o.SlippageUSD,
			o.GasCostUSD, o.NetProfitUSD, o.EdgeUSD,
			o.Confidence.String(), o.ConfidenceScore, o.ManipulationRisk, o.Efficiency,
			o.Actionable, toNanos(o.DetectedAt),
		); err != nil {
			return fmt.Errorf("sqlite: insert opportunity batch item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit opportunity batch: %w", err)
	}
	return nil
}

// GetByID returns a single opportunity or domain.ErrNotFound.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+oppSelectCols+` FROM opportunities WHERE id = ?`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("sqlite: get opportunity %s: %w", id, err)
	}
	return o, nil
}

// ListRecent returns opportunities newest first, filtered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE 1=1`
	args := []any{}
	if opts.Since != nil {
		query += " AND detected_at >= ?"
		args = append(args, toNanos(*opts.Since))
	}
	if opts.Until != nil {
		query += " AND detected_at <= ?"
		args = append(args, toNanos(*opts.Until))
	}
	query += " ORDER BY detected_at DESC, id"
	switch {
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}
	return s.query(ctx, "list recent opportunities", query, args...)
}

// ListActionable returns the newest actionable opportunities.
func (s *OpportunityStore) ListActionable(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE actionable = 1 ORDER BY detected_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, "list actionable opportunities", query, args...)
}

func (s *OpportunityStore) query(ctx context.Context, op, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", op, err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: %w", op, err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s rows: %w", op, err)
	}
	return opps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row scanner) (domain.Opportunity, error) {
	var (
		o          domain.Opportunity
		tokens     []byte
		confidence string
		detectedAt int64
	)
	if err := row.Scan(
		&o.ID, &o.CycleID, &tokens,
		&o.SizedAmountUSD, &o.GrossProfitUSD, &o.FeesUSD, &o.SlippageUSD,
		&o.GasCostUSD, &o.NetProfitUSD, &o.EdgeUSD,
		&confidence, &o.ConfidenceScore, &o.ManipulationRisk, &o.Efficiency,
		&o.Actionable, &detectedAt,
	); err != nil {
		return domain.Opportunity{}, err
	}
	o.DetectedAt = fromNanos(detectedAt)

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
