package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// wireQuote is the JSON form of a contract quote.
type wireQuote struct {
	Bid  decimal.Decimal `json:"bid"`
	Ask  decimal.Decimal `json:"ask"`
	Last decimal.Decimal `json:"last"`
}

// wireTick is the JSON form of a tick, shared by tick files and the
// websocket feed.
type wireTick struct {
	Timestamp time.Time            `json:"ts"`
	Seq       int64                `json:"seq"`
	Spot      decimal.Decimal      `json:"spot"`
	FutSpot   decimal.Decimal      `json:"fut_spot"`
	Quotes    map[string]wireQuote `json:"quotes"`
}

func (w *wireTick) toDomain() *domain.Tick {
	t := &domain.Tick{
		Timestamp: w.Timestamp,
		Seq:       w.Seq,
		Spot:      w.Spot,
		FutSpot:   w.FutSpot,
	}
	if len(w.Quotes) > 0 {
		t.Quotes = make(map[string]domain.Quote, len(w.Quotes))
		for id, q := range w.Quotes {
			t.Quotes[id] = domain.Quote{Bid: q.Bid, Ask: q.Ask, Last: q.Last}
		}
	}
	return t
}

// maxTickLine bounds a single tick line; wide chains produce long lines.
const maxTickLine = 4 << 20

// FileSource streams ticks from a JSON-lines file, one tick object per
// line. The whole file is read and sorted up front so ordering holds
// even when the recorder wrote slightly out of order.
type FileSource struct {
	path string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a source over a tick file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Ticks reads, sorts, and streams the file.
func (f *FileSource) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	ticks, err := ReadTickFile(f.path)
	if err != nil {
		return nil, err
	}
	return NewSliceSource(ticks).Ticks(ctx)
}

// Bounded is always true for file sources.
func (f *FileSource) Bounded() bool {
	return true
}

// ReadTickFile parses a JSON-lines tick file. Blank lines are skipped;
// a malformed line fails the whole read with its line number.
func ReadTickFile(path string) ([]*domain.Tick, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	defer file.Close()

	var ticks []*domain.Tick
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxTickLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var w wireTick
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("tick file %s line %d: %w", path, line, err)
		}
		ticks = append(ticks, w.toDomain())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tick file %s: %w", path, err)
	}
	return ticks, nil
}
