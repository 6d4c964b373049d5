package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/feed"
	"options-strategy-lab/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface checks. The store doubles as a feed reader so
// backtests can stream straight out of the archive.
var (
	_ storage.TickStore = (*TickStore)(nil)
	_ feed.TickReader   = (*TickStore)(nil)
)

// InsertBulk appends ticks for one underlying to the archive. The
// archive does not enforce uniqueness; recorders own dedup.
func (s *TickStore) InsertBulk(ctx context.Context, underlying string, ticks []*domain.Tick) (err error) {
	if len(ticks) == 0 {
		return nil
	}
	defer observeSince(time.Now(), "insert_ticks_bulk", &err)

	if underlying == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (
			underlying, ts, seq, spot, fut_spot, quotes, synthetic
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		if t == nil {
			return storage.ErrInvalidInput
		}
		quotes, err := encodeQuotes(t.Quotes)
		if err != nil {
			return fmt.Errorf("encode quotes: %w", err)
		}
		synthetic := uint8(0)
		if t.Synthetic {
			synthetic = 1
		}
		err = batch.Append(
			underlying, t.Timestamp, t.Seq,
			t.Spot, t.FutSpot, quotes, synthetic,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByUnderlyingRange retrieves ticks within [from, to] (inclusive),
// ordered by timestamp then seq.
func (s *TickStore) GetByUnderlyingRange(ctx context.Context, underlying string, from, to time.Time) (ticks []*domain.Tick, err error) {
	defer observeSince(time.Now(), "get_ticks_by_range", &err)

	query := `
		SELECT ts, seq, spot, fut_spot, quotes, synthetic
		FROM ticks
		WHERE underlying = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, underlying, from, to)
	if err != nil {
		return nil, fmt.Errorf("query ticks by range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// ReadTicks streams the archive window into a backtest feed.
func (s *TickStore) ReadTicks(ctx context.Context, underlying string, from, to time.Time) ([]*domain.Tick, error) {
	return s.GetByUnderlyingRange(ctx, underlying, from, to)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanTicks scans multiple rows into a slice.
func scanTicks(rows chRows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var t domain.Tick
		var quotes string
		var synthetic uint8

		err := rows.Scan(
			&t.Timestamp, &t.Seq, &t.Spot, &t.FutSpot, &quotes, &synthetic,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}

		t.Quotes, err = decodeQuotes(quotes)
		if err != nil {
			return nil, fmt.Errorf("decode quotes: %w", err)
		}
		t.Synthetic = synthetic != 0
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}

// tickQuote mirrors the feed wire quote so archived rows stay readable
// by the same tooling that reads tick files.
type tickQuote struct {
	Bid  decimal.Decimal `json:"bid"`
	Ask  decimal.Decimal `json:"ask"`
	Last decimal.Decimal `json:"last"`
}

func encodeQuotes(quotes map[string]domain.Quote) (string, error) {
	if len(quotes) == 0 {
		return "", nil
	}

	wire := make(map[string]tickQuote, len(quotes))
	for id, q := range quotes {
		wire[id] = tickQuote{Bid: q.Bid, Ask: q.Ask, Last: q.Last}
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeQuotes(s string) (map[string]domain.Quote, error) {
	if s == "" {
		return nil, nil
	}

	var wire map[string]tickQuote
	if err := json.Unmarshal([]byte(s), &wire); err != nil {
		return nil, err
	}

	quotes := make(map[string]domain.Quote, len(wire))
	for id, q := range wire {
		quotes[id] = domain.Quote{Bid: q.Bid, Ask: q.Ask, Last: q.Last}
	}
	return quotes, nil
}
