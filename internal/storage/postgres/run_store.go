package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) (err error) {
	defer observeSince(time.Now(), "insert_run", &err)

	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (
			run_id, strategy, config, mode, status, started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.Strategy, r.Config, r.Mode, r.Status.String(), r.StartedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateStatus moves a run to a new status and stamps updated_at.
// Returns ErrNotFound if the run does not exist.
func (s *RunStore) UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, at time.Time) (err error) {
	defer observeSince(time.Now(), "update_run_status", &err)

	if runID == "" || !status.IsValid() {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, updated_at = $3 WHERE run_id = $1`,
		runID, status.String(), at,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (r *domain.RunRecord, err error) {
	defer observeSince(time.Now(), "get_run_by_id", &err)

	query := `
		SELECT run_id, strategy, config, mode, status, started_at, updated_at
		FROM runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err = scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// ListByStatus retrieves runs with the given status, ordered by started_at ASC.
func (s *RunStore) ListByStatus(ctx context.Context, status domain.RunStatus) (runs []*domain.RunRecord, err error) {
	defer observeSince(time.Now(), "list_runs_by_status", &err)

	query := `
		SELECT run_id, strategy, config, mode, status, started_at, updated_at
		FROM runs
		WHERE status = $1
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, status.String())
	if err != nil {
		return nil, fmt.Errorf("list runs by status: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var status string

	err := row.Scan(
		&r.RunID, &r.Strategy, &r.Config, &r.Mode, &status, &r.StartedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RunStatus(status)
	return &r, nil
}

// scanRuns scans multiple rows into a slice of RunRecord.
func scanRuns(rows pgx.Rows) ([]*domain.RunRecord, error) {
	var runs []*domain.RunRecord

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}
