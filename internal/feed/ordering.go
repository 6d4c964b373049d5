package feed

import (
	"errors"
	"sort"

	"options-strategy-lab/internal/domain"
)

// ErrInvalidOrdering is returned when ticks are not strictly ordered.
var ErrInvalidOrdering = errors.New("ticks are not in deterministic order")

// CompareTicks returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, seq ASC).
func CompareTicks(a, b *domain.Tick) int {
	if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if a.Seq != b.Seq {
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	return 0
}

// SortTicks orders ticks by (timestamp ASC, seq ASC).
func SortTicks(ticks []*domain.Tick) {
	sort.Slice(ticks, func(i, j int) bool {
		return CompareTicks(ticks[i], ticks[j]) < 0
	})
}

// ValidateTickOrdering checks that ticks are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateTickOrdering(ticks []*domain.Tick) error {
	for i := 1; i < len(ticks); i++ {
		if CompareTicks(ticks[i-1], ticks[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// MergeTicks merges already-sorted streams into one sorted slice.
// Equal-position ticks keep the earlier stream's tick first.
func MergeTicks(streams ...[]*domain.Tick) []*domain.Tick {
	var total int
	for _, s := range streams {
		total += len(s)
	}
	if total == 0 {
		return nil
	}

	out := make([]*domain.Tick, 0, total)
	idx := make([]int, len(streams))
	for len(out) < total {
		best := -1
		for i, s := range streams {
			if idx[i] >= len(s) {
				continue
			}
			if best == -1 || CompareTicks(s[idx[i]], streams[best][idx[best]]) < 0 {
				best = i
			}
		}
		out = append(out, streams[best][idx[best]])
		idx[best]++
	}
	return out
}
