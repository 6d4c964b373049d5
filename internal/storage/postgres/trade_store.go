package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		trade_id, run_id, leg_id, sequence, reentry_trigger,
		contract, side, lots,
		entry_time, entry_price, exit_time, exit_price,
		status, pnl
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8,
		$9, $10, $11, $12,
		$13, $14
	)
`

const selectTradeColumns = `
	SELECT
		trade_id, run_id, leg_id, sequence, reentry_trigger,
		contract, side, lots,
		entry_time, entry_price, exit_time, exit_price,
		status, pnl
	FROM trades
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeRecord) (err error) {
	defer observeSince(time.Now(), "insert_trade", &err)

	if t == nil || t.TradeID == "" || t.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err = s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}
	defer observeSince(time.Now(), "insert_trades_bulk", &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (t *domain.TradeRecord, err error) {
	defer observeSince(time.Now(), "get_trade_by_id", &err)

	row := s.pool.QueryRow(ctx, selectTradeColumns+`WHERE trade_id = $1`, tradeID)
	t, err = scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades for a run, ordered by exit_time ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) (trades []*domain.TradeRecord, err error) {
	defer observeSince(time.Now(), "get_trades_by_run", &err)

	rows, err := s.pool.Query(ctx, selectTradeColumns+`WHERE run_id = $1 ORDER BY exit_time ASC, trade_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func tradeArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.RunID, t.LegID, t.Sequence, t.Trigger.String(),
		t.Contract, t.Side.String(), t.Lots,
		t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice,
		t.Status.String(), t.PnL,
	}
}

// scanTrade scans a single row into a TradeRecord.
func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var trigger, side, status string

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.LegID, &t.Sequence, &trigger,
		&t.Contract, &side, &t.Lots,
		&t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice,
		&status, &t.PnL,
	)
	if err != nil {
		return nil, err
	}

	t.Trigger = domain.ReentryTrigger(trigger)
	t.Side = domain.Side(side)
	t.Status = domain.PositionStatus(status)
	return &t, nil
}

// scanTrades scans multiple rows into a slice of TradeRecord.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
