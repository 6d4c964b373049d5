package feed

import (
	"context"
	"fmt"
	"time"

	"options-strategy-lab/internal/domain"
)

// TickReader loads recorded ticks for an underlying within a window.
// The tick store implements it; feed only needs this slice of it.
type TickReader interface {
	ReadTicks(ctx context.Context, underlying string, from, to time.Time) ([]*domain.Tick, error)
}

// StoreSource streams recorded ticks out of a tick store. The window is
// loaded once, validated, and replayed in order.
type StoreSource struct {
	reader     TickReader
	underlying string
	from       time.Time
	to         time.Time
}

var _ Source = (*StoreSource)(nil)

// NewStoreSource creates a bounded source over stored ticks.
func NewStoreSource(reader TickReader, underlying string, from, to time.Time) *StoreSource {
	return &StoreSource{
		reader:     reader,
		underlying: underlying,
		from:       from,
		to:         to,
	}
}

// Ticks loads the window and streams it.
func (s *StoreSource) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	ticks, err := s.reader.ReadTicks(ctx, s.underlying, s.from, s.to)
	if err != nil {
		return nil, fmt.Errorf("read ticks %s [%s, %s]: %w",
			s.underlying, s.from.Format(time.RFC3339), s.to.Format(time.RFC3339), err)
	}

	SortTicks(ticks)
	if err := ValidateTickOrdering(ticks); err != nil {
		return nil, err
	}
	return NewSliceSource(ticks).Ticks(ctx)
}

// Bounded is always true for store sources.
func (s *StoreSource) Bounded() bool {
	return true
}
