package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// rawSource streams ticks exactly as given, without sorting. It stands
// in for a live feed that may deliver out of order.
type rawSource struct {
	ticks   []*domain.Tick
	bounded bool
}

func (r *rawSource) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	out := make(chan *domain.Tick)
	go func() {
		defer close(out)
		for _, t := range r.ticks {
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *rawSource) Bounded() bool {
	return r.bounded
}

func TestReorderBuffer_RestoresOrder(t *testing.T) {
	inner := &rawSource{
		ticks: []*domain.Tick{
			tickAt(0, 0),
			tickAt(2*time.Second, 0),
			tickAt(time.Second, 0), // behind its neighbor, inside the window
			tickAt(3*time.Second, 0),
		},
		bounded: true,
	}

	buf := NewReorderBuffer(inner, 5*time.Second, zerolog.Nop())
	out := collect(t, buf)

	if len(out) != 4 {
		t.Fatalf("Expected 4 ticks, got %d", len(out))
	}
	if err := ValidateTickOrdering(out); err != nil {
		t.Errorf("Output should be ordered, got %v", err)
	}
	if buf.Dropped() != 0 {
		t.Errorf("Nothing should be dropped, got %d", buf.Dropped())
	}
}

func TestReorderBuffer_DropsTicksOlderThanWindow(t *testing.T) {
	inner := &rawSource{
		ticks: []*domain.Tick{
			tickAt(0, 0),
			tickAt(2*time.Second, 0),
			tickAt(time.Second, 0), // arrives after flush with zero window
		},
		bounded: true,
	}

	buf := NewReorderBuffer(inner, 0, zerolog.Nop())
	out := collect(t, buf)

	if len(out) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(out))
	}
	if buf.Dropped() != 1 {
		t.Errorf("Expected 1 dropped tick, got %d", buf.Dropped())
	}
	for _, tick := range out {
		if tick.Timestamp.Equal(orderingBase.Add(time.Second)) {
			t.Error("Late tick should not appear in the output")
		}
	}
}

func TestReorderBuffer_Bounded(t *testing.T) {
	if !NewReorderBuffer(&rawSource{bounded: true}, time.Second, zerolog.Nop()).Bounded() {
		t.Error("Bounded should follow the wrapped source")
	}
	if NewReorderBuffer(&rawSource{bounded: false}, time.Second, zerolog.Nop()).Bounded() {
		t.Error("Bounded should follow the wrapped source")
	}
}

// fakeTickReader serves a canned window for store source tests.
type fakeTickReader struct {
	ticks []*domain.Tick
	err   error
}

func (f *fakeTickReader) ReadTicks(_ context.Context, _ string, _, _ time.Time) ([]*domain.Tick, error) {
	return f.ticks, f.err
}

func TestStoreSource_SortsAndStreams(t *testing.T) {
	reader := &fakeTickReader{ticks: []*domain.Tick{
		tickAt(time.Second, 0),
		tickAt(0, 0),
	}}

	src := NewStoreSource(reader, "NIFTY", orderingBase, orderingBase.Add(time.Minute))
	if !src.Bounded() {
		t.Error("Store source should be bounded")
	}

	out := collect(t, src)
	if len(out) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(out))
	}
	if err := ValidateTickOrdering(out); err != nil {
		t.Errorf("Stream should be ordered, got %v", err)
	}
}

func TestStoreSource_ReaderError(t *testing.T) {
	readErr := errors.New("connection refused")
	src := NewStoreSource(&fakeTickReader{err: readErr}, "NIFTY", orderingBase, orderingBase.Add(time.Minute))

	if _, err := src.Ticks(context.Background()); !errors.Is(err, readErr) {
		t.Errorf("Expected wrapped reader error, got %v", err)
	}
}

func TestStoreSource_DuplicateTicks(t *testing.T) {
	reader := &fakeTickReader{ticks: []*domain.Tick{
		tickAt(0, 0),
		tickAt(0, 0),
	}}
	src := NewStoreSource(reader, "NIFTY", orderingBase, orderingBase.Add(time.Minute))

	if _, err := src.Ticks(context.Background()); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering for duplicate rows, got %v", err)
	}
}

// pushSource hands the test direct control over a live-style channel.
type pushSource struct {
	ch      chan *domain.Tick
	bounded bool
}

func newPushSource() *pushSource {
	return &pushSource{ch: make(chan *domain.Tick)}
}

func (p *pushSource) Ticks(_ context.Context) (<-chan *domain.Tick, error) {
	return p.ch, nil
}

func (p *pushSource) Bounded() bool {
	return p.bounded
}

func TestHeartbeat_KeepsClockRunning(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	market := &domain.Tick{Timestamp: now, Seq: 1, Spot: decimal.NewFromInt(24500)}
	mark := now.Add(90 * time.Millisecond)

	inner := newPushSource()
	hb := NewHeartbeat(inner, 20*time.Millisecond, []time.Time{mark}, zerolog.Nop())

	go func() {
		inner.ch <- market
		time.Sleep(150 * time.Millisecond) // hold the feed open past the mark
		close(inner.ch)
	}()

	out := collect(t, hb)
	if len(out) < 2 {
		t.Fatalf("Expected at least the market tick and the mark, got %d", len(out))
	}
	if err := ValidateTickOrdering(out); err != nil {
		t.Errorf("Stream should stay ordered, got %v", err)
	}
	if out[0] != market {
		t.Error("Market tick should pass through first")
	}

	foundMark := false
	for _, tick := range out[1:] {
		if !tick.Synthetic {
			t.Errorf("Tick at %s should be synthetic", tick.Timestamp)
		}
		if !tick.Spot.Equal(market.Spot) {
			t.Errorf("Synthetic tick should carry the last spot, got %s", tick.Spot)
		}
		if tick.Timestamp.Equal(mark) {
			foundMark = true
		}
	}
	if !foundMark {
		t.Error("Expected a synthetic tick exactly at the mark")
	}
}

func TestHeartbeat_ClosesWithFeed(t *testing.T) {
	inner := newPushSource()
	hb := NewHeartbeat(inner, time.Hour, []time.Time{time.Now().Add(time.Hour)}, zerolog.Nop())

	go close(inner.ch)

	out := collect(t, hb)
	if len(out) != 0 {
		t.Fatalf("Expected no ticks from a dead feed, got %d", len(out))
	}
}
