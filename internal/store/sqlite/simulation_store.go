package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/store/codec"
)

var _ domain.SimulationStore = (*SimulationStore)(nil)

// SimulationStore implements domain.SimulationStore on SQLite.
type SimulationStore struct {
	db *sql.DB
}

// NewSimulationStore creates a new SimulationStore on d.
func NewSimulationStore(d *DB) *SimulationStore {
	return &SimulationStore{db: d.db}
}

const simSelectCols = `id, trials, successful_trades, failed_trades, skipped_trials,
	success_rate, total_profit_usd, total_gas_usd, net_profit_usd, gas_efficiency,
	best, worst, errors, projection, seed, created_at`

// Insert stores a summary. Duplicate IDs return domain.ErrAlreadyExists.
func (s *SimulationStore) Insert(ctx context.Context, sum domain.SimulationSummary) error {
	cols, err := codec.EncodeSimulation(sum)
	if err != nil {
		return fmt.Errorf("sqlite: insert simulation %s: %w", sum.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO simulations (
			id, trials, successful_trades, failed_trades, skipped_trials,
			success_rate, total_profit_usd, total_gas_usd, net_profit_usd, gas_efficiency,
			best, worst, errors, projection, seed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.Trials, sum.SuccessfulTrades, sum.FailedTrades, sum.SkippedTrials,
		sum.SuccessRate, sum.TotalProfitUSD, sum.TotalGasUSD, sum.NetProfitUSD, sum.GasEfficiency,
		nullable(cols.Best), nullable(cols.Worst), string(cols.Errors), string(cols.Projection),
		int64(sum.Seed), toNanos(sum.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert simulation %s: %w", sum.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlite: insert simulation %s: %w", sum.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// GetByID returns a single summary or domain.ErrNotFound.
func (s *SimulationStore) GetByID(ctx context.Context, id string) (domain.SimulationSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+simSelectCols+` FROM simulations WHERE id = ?`, id)
	sum, err := scanSimulation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SimulationSummary{}, domain.ErrNotFound
		}
		return domain.SimulationSummary{}, fmt.Errorf("sqlite: get simulation %s: %w", id, err)
	}
	return sum, nil
}

// ListRecent returns summaries newest first.
func (s *SimulationStore) ListRecent(ctx context.Context, limit int) ([]domain.SimulationSummary, error) {
	query := `SELECT ` + simSelectCols + ` FROM simulations ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list recent simulations: %w", err)
	}
	defer rows.Close()

	var out []domain.SimulationSummary
	for rows.Next() {
		sum, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan simulation: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list recent simulations rows: %w", err)
	}
	return out, nil
}

func scanSimulation(row scanner) (domain.SimulationSummary, error) {
	var (
		sum       domain.SimulationSummary
		cols      codec.SimulationColumns
		seed      int64
		createdAt int64
	)
	if err := row.Scan(
		&sum.ID, &sum.Trials, &sum.SuccessfulTrades, &sum.FailedTrades, &sum.SkippedTrials,
		&sum.SuccessRate, &sum.TotalProfitUSD, &sum.TotalGasUSD, &sum.NetProfitUSD, &sum.GasEfficiency,
		&cols.Best, &cols.Worst, &cols.Errors, &cols.Projection, &seed, &createdAt,
	); err != nil {
		return domain.SimulationSummary{}, err
	}
	sum.Seed = uint64(seed)
	sum.CreatedAt = fromNanos(createdAt)
	if err := codec.DecodeSimulation(cols, &sum); err != nil {
		return domain.SimulationSummary{}, err
	}
	return sum, nil
}
