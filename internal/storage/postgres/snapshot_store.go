package postgres

import (
	"context"
	"fmt"
	"time"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (run_id, taken_at) exists.
func (s *SnapshotStore) Insert(ctx context.Context, rec *domain.SnapshotRecord) (err error) {
	defer observeSince(time.Now(), "insert_snapshot", &err)

	if rec == nil || rec.RunID == "" || rec.TakenAt.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO snapshots (
			run_id, taken_at, status, open_positions,
			realized_pnl, unrealized_pnl, total_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		rec.RunID, rec.TakenAt, rec.Status.String(), rec.OpenPositions,
		rec.RealizedPnL, rec.UnrealizedPnL, rec.TotalPnL,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByRunID retrieves all snapshots for a run, ordered by taken_at ASC.
func (s *SnapshotStore) GetByRunID(ctx context.Context, runID string) (snaps []*domain.SnapshotRecord, err error) {
	defer observeSince(time.Now(), "get_snapshots_by_run", &err)

	query := `
		SELECT run_id, taken_at, status, open_positions,
			realized_pnl, unrealized_pnl, total_pnl
		FROM snapshots
		WHERE run_id = $1
		ORDER BY taken_at ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by run id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.SnapshotRecord
		var status string

		err := rows.Scan(
			&rec.RunID, &rec.TakenAt, &status, &rec.OpenPositions,
			&rec.RealizedPnL, &rec.UnrealizedPnL, &rec.TotalPnL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		rec.Status = domain.RunStatus(status)
		snaps = append(snaps, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snaps, nil
}
