package storage

import (
	"context"
	"time"

	"options-strategy-lab/internal/domain"
)

// RunStore provides access to runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// UpdateStatus moves a run to a new status and stamps updated_at.
	// Returns ErrNotFound if the run does not exist.
	UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, at time.Time) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// ListByStatus retrieves runs with the given status, ordered by started_at ASC.
	ListByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.RunRecord, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades for a run, ordered by exit_time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// SnapshotStore provides access to snapshots storage.
type SnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if (run_id, taken_at) exists.
	Insert(ctx context.Context, s *domain.SnapshotRecord) error

	// GetByRunID retrieves all snapshots for a run, ordered by taken_at ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.SnapshotRecord, error)
}

// TickStore provides access to the tick archive.
type TickStore interface {
	// InsertBulk appends a batch of ticks for an underlying. The
	// archive does not enforce uniqueness; recorders own dedup.
	InsertBulk(ctx context.Context, underlying string, ticks []*domain.Tick) error

	// GetByUnderlyingRange retrieves ticks within [from, to] (inclusive),
	// ordered by timestamp then seq.
	GetByUnderlyingRange(ctx context.Context, underlying string, from, to time.Time) ([]*domain.Tick, error)
}
