package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/store/codec"
)

var _ domain.ScanCycleStore = (*ScanCycleStore)(nil)

// ScanCycleStore implements domain.ScanCycleStore using PostgreSQL.
type ScanCycleStore struct {
	pool *pgxpool.Pool
}

// NewScanCycleStore creates a new ScanCycleStore backed by pool.
func NewScanCycleStore(pool *pgxpool.Pool) *ScanCycleStore {
	return &ScanCycleStore{pool: pool}
}

// Insert appends a cycle record.
func (s *ScanCycleStore) Insert(ctx context.Context, c domain.ScanCycle) error {
	rejections, err := codec.EncodeRejections(c.Rejections)
	if err != nil {
		return fmt.Errorf("postgres: insert scan cycle %s: %w", c.ID, err)
	}

	const query = `
		INSERT INTO scan_cycles (
			id, started_at, duration_ms,
			pairs_requested, pairs_available, paths_evaluated,
			rejections, actionable, retained, gas_price_gwei,
			fast, suppressed, abandoned
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)`

	_, err = s.pool.Exec(ctx, query,
		c.ID, c.StartedAt, c.Duration.Milliseconds(),
		c.PairsRequested, c.PairsAvailable, c.PathsEvaluated,
		rejections, c.Actionable, c.Retained, c.GasPriceGwei,
		c.Fast, c.Suppressed, c.Abandoned,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert scan cycle %s: %w", c.ID, err)
	}
	return nil
}

// ListRecent returns cycles newest first.
func (s *ScanCycleStore) ListRecent(ctx context.Context, limit int) ([]domain.ScanCycle, error) {
	query := `SELECT id, started_at, duration_ms,
		pairs_requested, pairs_available, paths_evaluated,
		rejections, actionable, retained, gas_price_gwei,
		fast, suppressed, abandoned
		FROM scan_cycles ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent scan cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.ScanCycle
	for rows.Next() {
		var (
			c          domain.ScanCycle
			durationMs int64
			rejections []byte
		)
		if err := rows.Scan(
			&c.ID, &c.StartedAt, &durationMs,
			&c.PairsRequested, &c.PairsAvailable, &c.PathsEvaluated,
			&rejections, &c.Actionable, &c.Retained, &c.GasPriceGwei,
			&c.Fast, &c.Suppressed, &c.Abandoned,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan scan cycle: %w", err)
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		if c.Rejections, err = codec.DecodeRejections(rejections); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle %s: %w", c.ID, err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent scan cycles rows: %w", err)
	}
	return cycles, nil
}
