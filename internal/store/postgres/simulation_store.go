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

var _ domain.SimulationStore = (*SimulationStore)(nil)

// SimulationStore implements domain.SimulationStore using PostgreSQL.
type SimulationStore struct {
	pool *pgxpool.Pool
}

// NewSimulationStore creates a new SimulationStore backed by pool.
func NewSimulationStore(pool *pgxpool.Pool) *SimulationStore {
	return &SimulationStore{pool: pool}
}

const simSelectCols = `id, trials, successful_trades, failed_trades, skipped_trials,
	success_rate, total_profit_usd, total_gas_usd, net_profit_usd, gas_efficiency,
	best, worst, errors, projection, seed, created_at`

// Insert stores a simulation summary. Duplicate IDs return
// domain.ErrAlreadyExists.
func (s *SimulationStore) Insert(ctx context.Context, sum domain.SimulationSummary) error {
	cols, err := codec.EncodeSimulation(sum)
	if err != nil {
		return fmt.Errorf("postgres: insert simulation %s: %w", sum.ID, err)
	}

	const query = `
		INSERT INTO simulations (
			id, trials, successful_trades, failed_trades, skipped_trials,
			success_rate, total_profit_usd, total_gas_usd, net_profit_usd, gas_efficiency,
			best, worst, errors, projection, seed, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		) ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		sum.ID, sum.Trials, sum.SuccessfulTrades, sum.FailedTrades, sum.SkippedTrials,
		sum.SuccessRate, sum.TotalProfitUSD, sum.TotalGasUSD, sum.NetProfitUSD, sum.GasEfficiency,
		cols.Best, cols.Worst, cols.Errors, cols.Projection, int64(sum.Seed), sum.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert simulation %s: %w", sum.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: insert simulation %s: %w", sum.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// GetByID returns a single summary or domain.ErrNotFound.
func (s *SimulationStore) GetByID(ctx context.Context, id string) (domain.SimulationSummary, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+simSelectCols+` FROM simulations WHERE id = $1`, id)
	sum, err := scanSimulation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SimulationSummary{}, domain.ErrNotFound
		}
		return domain.SimulationSummary{}, fmt.Errorf("postgres: get simulation %s: %w", id, err)
	}
	return sum, nil
}

// ListRecent returns summaries newest first.
func (s *SimulationStore) ListRecent(ctx context.Context, limit int) ([]domain.SimulationSummary, error) {
	query := `SELECT ` + simSelectCols + ` FROM simulations ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent simulations: %w", err)
	}
	defer rows.Close()

	var out []domain.SimulationSummary
	for rows.Next() {
		sum, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan simulation: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent simulations rows: %w", err)
	}
	return out, nil
}

func scanSimulation(row pgx.Row) (domain.SimulationSummary, error) {
	var (
		sum  domain.SimulationSummary
		cols codec.SimulationColumns
		seed int64
	)
	if err := row.Scan(
		&sum.ID, &sum.Trials, &sum.SuccessfulTrades, &sum.FailedTrades, &sum.SkippedTrials,
		&sum.SuccessRate, &sum.TotalProfitUSD, &sum.TotalGasUSD, &sum.NetProfitUSD, &sum.GasEfficiency,
		&cols.Best, &cols.Worst, &cols.Errors, &cols.Projection, &seed, &sum.CreatedAt,
	); err != nil {
		return domain.SimulationSummary{}, err
	}
	sum.Seed = uint64(seed)
	if err := codec.DecodeSimulation(cols, &sum); err != nil {
		return domain.SimulationSummary{}, err
	}
	return sum, nil
}
