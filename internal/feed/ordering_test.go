package feed

import (
	"errors"
	"testing"
	"time"

	"options-strategy-lab/internal/domain"
)

var orderingBase = time.Date(2025, 7, 17, 9, 15, 0, 0, time.UTC)

func tickAt(offset time.Duration, seq int64) *domain.Tick {
	return &domain.Tick{Timestamp: orderingBase.Add(offset), Seq: seq}
}

func TestSortTicks(t *testing.T) {
	// Intentionally unordered ticks
	ticks := []*domain.Tick{
		tickAt(2*time.Second, 0),
		tickAt(time.Second, 1),
		tickAt(time.Second, 0),
		tickAt(3*time.Second, 0),
		tickAt(0, 5),
	}

	SortTicks(ticks)

	// Verify order: (timestamp ASC, seq ASC)
	expected := []struct {
		offset time.Duration
		seq    int64
	}{
		{0, 5},
		{time.Second, 0},
		{time.Second, 1},
		{2 * time.Second, 0},
		{3 * time.Second, 0},
	}

	for i, exp := range expected {
		want := orderingBase.Add(exp.offset)
		if !ticks[i].Timestamp.Equal(want) || ticks[i].Seq != exp.seq {
			t.Errorf("Index %d: got (%s, %d), want (%s, %d)",
				i, ticks[i].Timestamp, ticks[i].Seq, want, exp.seq)
		}
	}
}

func TestSortTicks_Empty(t *testing.T) {
	var ticks []*domain.Tick
	SortTicks(ticks) // Should not panic
}

func TestCompareTicks(t *testing.T) {
	a := tickAt(0, 0)
	b := tickAt(0, 1)
	c := tickAt(time.Second, 0)

	if CompareTicks(a, a) != 0 {
		t.Error("Equal ticks should compare to zero")
	}
	if CompareTicks(a, b) >= 0 {
		t.Error("Lower seq should compare negative at equal timestamp")
	}
	if CompareTicks(c, b) <= 0 {
		t.Error("Later timestamp should compare positive regardless of seq")
	}
}

func TestValidateTickOrdering_Valid(t *testing.T) {
	ticks := []*domain.Tick{
		tickAt(0, 0),
		tickAt(0, 1),
		tickAt(time.Second, 0),
	}

	if err := ValidateTickOrdering(ticks); err != nil {
		t.Errorf("Valid ordering should pass, got error: %v", err)
	}
}

func TestValidateTickOrdering_Invalid_Timestamp(t *testing.T) {
	ticks := []*domain.Tick{
		tickAt(time.Second, 0),
		tickAt(0, 0), // timestamp goes backwards
	}

	err := ValidateTickOrdering(ticks)
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering, got %v", err)
	}
}

func TestValidateTickOrdering_Invalid_Seq(t *testing.T) {
	ticks := []*domain.Tick{
		tickAt(0, 1),
		tickAt(0, 0), // seq goes backwards
	}

	err := ValidateTickOrdering(ticks)
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering, got %v", err)
	}
}

func TestValidateTickOrdering_Invalid_Duplicate(t *testing.T) {
	ticks := []*domain.Tick{
		tickAt(0, 0),
		tickAt(0, 0), // duplicate
	}

	err := ValidateTickOrdering(ticks)
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering for duplicates, got %v", err)
	}
}

func TestValidateTickOrdering_Empty(t *testing.T) {
	if err := ValidateTickOrdering(nil); err != nil {
		t.Errorf("Empty slice should be valid, got %v", err)
	}
}

func TestMergeTicks(t *testing.T) {
	a := []*domain.Tick{tickAt(0, 0), tickAt(2*time.Second, 0)}
	b := []*domain.Tick{tickAt(time.Second, 0), tickAt(3*time.Second, 0)}

	merged := MergeTicks(a, b)

	if len(merged) != 4 {
		t.Fatalf("Expected 4 ticks, got %d", len(merged))
	}
	if err := ValidateTickOrdering(merged); err != nil {
		t.Errorf("Merged stream should be ordered, got %v", err)
	}
}

func TestMergeTicks_TieKeepsEarlierStream(t *testing.T) {
	first := tickAt(0, 0)
	second := tickAt(0, 0)

	merged := MergeTicks([]*domain.Tick{first}, []*domain.Tick{second})

	if len(merged) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(merged))
	}
	if merged[0] != first || merged[1] != second {
		t.Error("Tie should keep the earlier stream's tick first")
	}
}

func TestMergeTicks_Empty(t *testing.T) {
	if merged := MergeTicks(nil, nil); merged != nil {
		t.Errorf("Merging empty streams should return nil, got %v", merged)
	}
}
