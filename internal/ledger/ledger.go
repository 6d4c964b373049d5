// Package ledger is the single writer for position state. Every open,
// price mark, trail update, and close flows through it; all other
// components read clones. It enforces at most one open position per leg
// and computes realized PnL exactly once, at close.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

var (
	// ErrNotFound is returned when the position id is unknown.
	ErrNotFound = errors.New("position not found")
	// ErrAlreadyClosed is returned when mutating a closed position.
	ErrAlreadyClosed = errors.New("position already closed")
	// ErrDuplicateOpenLeg is returned when a leg already has an open position.
	ErrDuplicateOpenLeg = errors.New("leg already has an open position")
	// ErrDuplicatePosition is returned when the position id is already known.
	ErrDuplicatePosition = errors.New("duplicate position id")
	// ErrInvalidPosition is returned when a position fails validation.
	ErrInvalidPosition = errors.New("invalid position")
)

var two = decimal.NewFromInt(2)

// Ledger tracks every position of one run. Safe for concurrent use:
// the engine goroutine writes, snapshot readers only read.
type Ledger struct {
	mu sync.RWMutex

	lotSize int
	costs   domain.CostModel

	positions map[string]*domain.Position
	order     []string          // insertion order, for deterministic iteration
	openByLeg map[string]string // leg id -> open position id
	nextSeq   map[string]int    // leg id -> next entry sequence

	realized decimal.Decimal
}

// Options configures a Ledger.
type Options struct {
	// LotSize is the contract multiplier. Defaults to 1.
	LotSize int
	// Costs is applied to realized PnL at close. Zero means frictionless.
	Costs domain.CostModel
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	if opts.LotSize <= 0 {
		opts.LotSize = 1
	}
	return &Ledger{
		lotSize:   opts.LotSize,
		costs:     opts.Costs,
		positions: make(map[string]*domain.Position),
		openByLeg: make(map[string]string),
		nextSeq:   make(map[string]int),
	}
}

// NextSequence returns the entry sequence the leg's next position will
// carry: 0 for the original entry, counting up per re-entry.
func (l *Ledger) NextSequence(legID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextSeq[legID]
}

// Open registers a new open position. The leg must not already have one.
func (l *Ledger) Open(p *domain.Position) error {
	if p == nil || p.ID == "" || p.LegID == "" {
		return fmt.Errorf("%w: missing id or leg", ErrInvalidPosition)
	}
	if p.Status != domain.StatusOpen {
		return fmt.Errorf("%w: status %s", ErrInvalidPosition, p.Status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, p.ID)
	}
	if openID, ok := l.openByLeg[p.LegID]; ok {
		return fmt.Errorf("%w: leg %s has open position %s", ErrDuplicateOpenLeg, p.LegID, openID)
	}

	stored := p.Clone()
	stored.UnrealizedPnL = l.pnl(stored, stored.CurrentPrice)
	l.positions[stored.ID] = stored
	l.order = append(l.order, stored.ID)
	l.openByLeg[stored.LegID] = stored.ID
	if stored.Sequence >= l.nextSeq[stored.LegID] {
		l.nextSeq[stored.LegID] = stored.Sequence + 1
	}
	return nil
}

// MarkPrice refreshes the position's current price and unrealized PnL.
func (l *Ledger) MarkPrice(id string, price decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.openLocked(id)
	if err != nil {
		return err
	}
	p.CurrentPrice = price
	p.UnrealizedPnL = l.pnl(p, price)
	return nil
}

// SetTrail replaces the position's trailing stop level.
func (l *Ledger) SetTrail(id string, level *decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.openLocked(id)
	if err != nil {
		return err
	}
	if level == nil {
		p.TrailLevel = nil
		return nil
	}
	v := *level
	p.TrailLevel = &v
	return nil
}

// Close transitions an open position to a terminal status at the given
// exit price, computing realized PnL net of costs. Closing twice
// returns ErrAlreadyClosed. Returns a clone of the closed position.
func (l *Ledger) Close(id string, status domain.PositionStatus, at time.Time, price decimal.Decimal) (*domain.Position, error) {
	if !status.IsClosed() {
		return nil, fmt.Errorf("%w: %s is not a closing status", ErrInvalidPosition, status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.openLocked(id)
	if err != nil {
		return nil, err
	}

	realized := l.pnl(p, price).Sub(l.closeCosts(p))
	exitAt := at
	exitPx := price

	p.Status = status
	p.ExitTime = &exitAt
	p.ExitPrice = &exitPx
	p.CurrentPrice = price
	p.RealizedPnL = &realized
	p.UnrealizedPnL = decimal.Zero

	delete(l.openByLeg, p.LegID)
	l.realized = l.realized.Add(realized)
	return p.Clone(), nil
}

// Get returns a clone of the position with the given id.
func (l *Ledger) Get(id string) (*domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

// OpenForLeg returns a clone of the leg's open position, if any.
func (l *Ledger) OpenForLeg(legID string) (*domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.openByLeg[legID]
	if !ok {
		return nil, false
	}
	return l.positions[id].Clone(), true
}

// OpenPositions returns clones of all open positions in creation order.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Position
	for _, id := range l.order {
		if p := l.positions[id]; p.Open() {
			out = append(out, *p.Clone())
		}
	}
	return out
}

// All returns clones of every position in creation order.
func (l *Ledger) All() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Position, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.positions[id].Clone())
	}
	return out
}

// RealizedPnL returns the run's accumulated realized PnL.
func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realized
}

// UnrealizedPnL sums unrealized PnL across open positions.
func (l *Ledger) UnrealizedPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, id := range l.openByLeg {
		total = total.Add(l.positions[id].UnrealizedPnL)
	}
	return total
}

// TotalPnL is realized plus unrealized.
func (l *Ledger) TotalPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.realized
	for _, id := range l.openByLeg {
		total = total.Add(l.positions[id].UnrealizedPnL)
	}
	return total
}

// PremiumPoints returns aggregate premium PnL in raw price points
// across every position, plus the summed entry premium. Closed
// positions contribute their exit move, open ones their mark. Feeds
// breakeven triggers, which work in points rather than currency.
func (l *Ledger) PremiumPoints() (points, entryPremium decimal.Decimal) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, id := range l.order {
		p := l.positions[id]
		px := p.CurrentPrice
		if p.ExitPrice != nil {
			px = *p.ExitPrice
		}
		points = points.Add(p.EntryPrice.Sub(px).Mul(p.Side.PnLSign()))
		entryPremium = entryPremium.Add(p.EntryPrice)
	}
	return points, entryPremium
}

// openLocked fetches a position that must exist and still be open.
func (l *Ledger) openLocked(id string) (*domain.Position, error) {
	p, ok := l.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !p.Open() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyClosed, id)
	}
	return p, nil
}

// pnl computes currency PnL for a position at the given price.
func (l *Ledger) pnl(p *domain.Position, price decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(p.Lots * l.lotSize))
	return p.EntryPrice.Sub(price).Mul(p.Side.PnLSign()).Mul(qty)
}

// closeCosts prices the full round trip: a per-lot charge plus entry and
// exit slippage scaled by quantity.
func (l *Ledger) closeCosts(p *domain.Position) decimal.Decimal {
	lots := decimal.NewFromInt(int64(p.Lots))
	qty := decimal.NewFromInt(int64(p.Lots * l.lotSize))
	return l.costs.PerLotRoundTrip.Mul(lots).Add(l.costs.SlippagePerFill.Mul(qty).Mul(two))
}
