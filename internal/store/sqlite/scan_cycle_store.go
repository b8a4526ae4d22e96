package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/store/codec"
)

var _ domain.ScanCycleStore = (*ScanCycleStore)(nil)

// ScanCycleStore implements domain.ScanCycleStore on SQLite.
type ScanCycleStore struct {
	db *sql.DB
}

// NewScanCycleStore creates a new ScanCycleStore on d.
func NewScanCycleStore(d *DB) *ScanCycleStore {
	return &ScanCycleStore{db: d.db}
}

// Insert appends a cycle record.
func (s *ScanCycleStore) Insert(ctx context.Context, c domain.ScanCycle) error {
	rejections, err := codec.EncodeRejections(c.Rejections)
	if err != nil {
		return fmt.Errorf("sqlite: insert scan cycle %s: %w", c.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_cycles (
			id, started_at, duration_ms,
			pairs_requested, pairs_available, paths_evaluated,
			rejections, actionable, retained, gas_price_gwei,
			fast, suppressed, abandoned
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, toNanos(c.StartedAt), c.Duration.Milliseconds(),
		c.PairsRequested, c.PairsAvailable, c.PathsEvaluated,
		string(rejections), c.Actionable, c.Retained, c.GasPriceGwei,
		c.Fast, c.Suppressed, c.Abandoned,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert scan cycle %s: %w", c.ID, err)
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
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list recent scan cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.ScanCycle
	for rows.Next() {
		var (
			c          domain.ScanCycle
			startedAt  int64
			durationMs int64
			rejections []byte
		)
		if err := rows.Scan(
			&c.ID, &startedAt, &durationMs,
			&c.PairsRequested, &c.PairsAvailable, &c.PathsEvaluated,
			&rejections, &c.Actionable, &c.Retained, &c.GasPriceGwei,
			&c.Fast, &c.Suppressed, &c.Abandoned,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan scan cycle: %w", err)
		}
		c.StartedAt = fromNanos(startedAt)
		c.Duration = time.Duration(durationMs) * time.Millisecond
		if c.Rejections, err = codec.DecodeRejections(rejections); err != nil {
			return nil, fmt.Errorf("sqlite: scan cycle %s: %w", c.ID, err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list recent scan cycles rows: %w", err)
	}
	return cycles, nil
}
