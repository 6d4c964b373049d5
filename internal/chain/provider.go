package chain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// MemoryProvider serves preloaded chain snapshots, typically parsed
// from a snapshot file. Lookup picks the latest snapshot at or before
// the requested time; nothing at or before yields an empty snapshot so
// the caller defers instead of resolving against future data.
type MemoryProvider struct {
	byExpiry map[string][]*domain.ChainSnapshot // expiry date -> AsOf ascending
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider indexes the snapshots by expiry and AsOf.
func NewMemoryProvider(snaps []*domain.ChainSnapshot) *MemoryProvider {
	p := &MemoryProvider{byExpiry: make(map[string][]*domain.ChainSnapshot)}
	for _, s := range snaps {
		key := expiryKey(s.Expiry)
		p.byExpiry[key] = append(p.byExpiry[key], s)
	}
	for _, list := range p.byExpiry {
		sort.Slice(list, func(i, j int) bool { return list[i].AsOf.Before(list[j].AsOf) })
	}
	return p
}

// Snapshot returns a copy of the latest snapshot at or before at for
// the expiry. The copy keeps provider state immune to caller-side
// greeks enrichment.
func (p *MemoryProvider) Snapshot(expiry, at time.Time, spot decimal.Decimal) (*domain.ChainSnapshot, error) {
	list := p.byExpiry[expiryKey(expiry)]

	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].AsOf.After(at) {
			return cloneSnapshot(list[i], spot), nil
		}
	}

	return &domain.ChainSnapshot{Expiry: expiry, AsOf: at, Spot: spot}, nil
}

func expiryKey(expiry time.Time) string {
	return expiry.Format("2006-01-02")
}

func cloneSnapshot(s *domain.ChainSnapshot, spot decimal.Decimal) *domain.ChainSnapshot {
	out := &domain.ChainSnapshot{
		Underlying: s.Underlying,
		Expiry:     s.Expiry,
		AsOf:       s.AsOf,
		Spot:       s.Spot,
	}
	if out.Spot.IsZero() {
		out.Spot = spot
	}
	out.Strikes = make([]domain.ChainStrike, len(s.Strikes))
	for i, row := range s.Strikes {
		out.Strikes[i] = domain.ChainStrike{
			Strike: row.Strike,
			Call:   cloneQuote(row.Call),
			Put:    cloneQuote(row.Put),
		}
	}
	return out
}

func cloneQuote(q *domain.ChainQuote) *domain.ChainQuote {
	if q == nil {
		return nil
	}
	c := *q
	if q.IV != nil {
		v := *q.IV
		c.IV = &v
	}
	if q.Delta != nil {
		v := *q.Delta
		c.Delta = &v
	}
	return &c
}

// wireChainQuote is the JSON form of one option quote in a snapshot file.
type wireChainQuote struct {
	Bid   decimal.Decimal  `json:"bid"`
	Ask   decimal.Decimal  `json:"ask"`
	Last  decimal.Decimal  `json:"last"`
	IV    *decimal.Decimal `json:"iv,omitempty"`
	Delta *decimal.Decimal `json:"delta,omitempty"`
}

type wireChainStrike struct {
	Strike decimal.Decimal `json:"strike"`
	Call   *wireChainQuote `json:"call,omitempty"`
	Put    *wireChainQuote `json:"put,omitempty"`
}

// wireChainSnapshot is one line of a chain snapshot file.
type wireChainSnapshot struct {
	Underlying string            `json:"underlying"`
	Expiry     string            `json:"expiry"` // 2006-01-02
	AsOf       time.Time         `json:"as_of"`
	Spot       decimal.Decimal   `json:"spot"`
	Strikes    []wireChainStrike `json:"strikes"`
}

func (w *wireChainSnapshot) toDomain() (*domain.ChainSnapshot, error) {
	expiry, err := time.Parse("2006-01-02", w.Expiry)
	if err != nil {
		return nil, fmt.Errorf("expiry %q: %w", w.Expiry, err)
	}

	s := &domain.ChainSnapshot{
		Underlying: w.Underlying,
		Expiry:     expiry,
		AsOf:       w.AsOf,
		Spot:       w.Spot,
	}
	for _, row := range w.Strikes {
		s.Strikes = append(s.Strikes, domain.ChainStrike{
			Strike: row.Strike,
			Call:   row.Call.toDomain(),
			Put:    row.Put.toDomain(),
		})
	}
	sort.Slice(s.Strikes, func(i, j int) bool {
		return s.Strikes[i].Strike.LessThan(s.Strikes[j].Strike)
	})
	return s, nil
}

func (w *wireChainQuote) toDomain() *domain.ChainQuote {
	if w == nil {
		return nil
	}
	return &domain.ChainQuote{Bid: w.Bid, Ask: w.Ask, Last: w.Last, IV: w.IV, Delta: w.Delta}
}

// maxSnapshotLine bounds one snapshot line; full chains run long.
const maxSnapshotLine = 8 << 20

// ReadSnapshotFile parses a JSON-lines chain snapshot file.
func ReadSnapshotFile(path string) ([]*domain.ChainSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	var snaps []*domain.ChainSnapshot
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxSnapshotLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var w wireChainSnapshot
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("snapshot file %s line %d: %w", path, line, err)
		}
		s, err := w.toDomain()
		if err != nil {
			return nil, fmt.Errorf("snapshot file %s line %d: %w", path, line, err)
		}
		snaps = append(snaps, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot file %s: %w", path, err)
	}
	return snaps, nil
}
