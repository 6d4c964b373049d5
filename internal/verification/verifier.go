// Package verification checks engine determinism: the same strategy
// replayed over the same tick sequence must produce identical event
// logs and final snapshots. Run id is the only field allowed to differ
// between replays, and it is excluded from every comparison.
package verification

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// FieldDivergence represents a mismatch between two replays.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // first replay's value
	Actual   interface{} // second replay's value
}

// EventDivergence collects the mismatched fields at one log index.
type EventDivergence struct {
	Index       int
	EventID     string
	Divergences []FieldDivergence
}

// Report contains the outcome of comparing two replays.
type Report struct {
	EventsCompared      int
	EventDivergences    []EventDivergence
	SnapshotDivergences []FieldDivergence
}

// Match reports whether the replays agreed on everything compared.
func (r *Report) Match() bool {
	return len(r.EventDivergences) == 0 && len(r.SnapshotDivergences) == 0
}

// Summary renders a human-readable result, one line per divergence.
func (r *Report) Summary() string {
	if r.Match() {
		return fmt.Sprintf("replay verified: %d events identical", r.EventsCompared)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "replay diverged: %d event divergences, %d snapshot divergences\n",
		len(r.EventDivergences), len(r.SnapshotDivergences))
	for _, ed := range r.EventDivergences {
		for _, d := range ed.Divergences {
			fmt.Fprintf(&b, "  event %d %s: %v != %v\n", ed.Index, d.Field, d.Expected, d.Actual)
		}
	}
	for _, d := range r.SnapshotDivergences {
		fmt.Fprintf(&b, "  snapshot %s: %v != %v\n", d.Field, d.Expected, d.Actual)
	}
	return strings.TrimRight(b.String(), "\n")
}

// CompareEventLogs compares two event logs index by index. A length
// mismatch is itself a divergence; the common prefix is still compared
// so the first point of departure is visible.
func CompareEventLogs(expected, actual []domain.LifecycleEvent) *Report {
	report := &Report{EventsCompared: len(expected)}

	if len(expected) != len(actual) {
		report.EventDivergences = append(report.EventDivergences, EventDivergence{
			Index: -1,
			Divergences: []FieldDivergence{
				{Field: "EventCount", Expected: len(expected), Actual: len(actual)},
			},
		})
	}

	n := len(expected)
	if len(actual) < n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		divergences := CompareEvents(&expected[i], &actual[i])
		if len(divergences) > 0 {
			report.EventDivergences = append(report.EventDivergences, EventDivergence{
				Index:       i,
				EventID:     expected[i].EventID,
				Divergences: divergences,
			})
		}
	}

	return report
}

// CompareEvents compares the replay-stable fields of two events.
func CompareEvents(expected, actual *domain.LifecycleEvent) []FieldDivergence {
	var divergences []FieldDivergence

	if expected.EventID != actual.EventID {
		divergences = append(divergences, FieldDivergence{
			Field:    "EventID",
			Expected: expected.EventID,
			Actual:   actual.EventID,
		})
	}

	if expected.Type != actual.Type {
		divergences = append(divergences, FieldDivergence{
			Field:    "Type",
			Expected: expected.Type,
			Actual:   actual.Type,
		})
	}

	if !expected.At.Equal(actual.At) {
		divergences = append(divergences, FieldDivergence{
			Field:    "At",
			Expected: expected.At,
			Actual:   actual.At,
		})
	}

	if expected.Seq != actual.Seq {
		divergences = append(divergences, FieldDivergence{
			Field:    "Seq",
			Expected: expected.Seq,
			Actual:   actual.Seq,
		})
	}

	if expected.LegID != actual.LegID {
		divergences = append(divergences, FieldDivergence{
			Field:    "LegID",
			Expected: expected.LegID,
			Actual:   actual.LegID,
		})
	}

	if expected.Status != actual.Status {
		divergences = append(divergences, FieldDivergence{
			Field:    "Status",
			Expected: expected.Status,
			Actual:   actual.Status,
		})
	}

	if expected.Note != actual.Note {
		divergences = append(divergences, FieldDivergence{
			Field:    "Note",
			Expected: expected.Note,
			Actual:   actual.Note,
		})
	}

	divergences = append(divergences, comparePositions("Position", expected.Position, actual.Position)...)

	return divergences
}

// CompareSnapshots compares two final run snapshots. PnL totals use
// exact decimal equality; replays of the same arithmetic must agree to
// the last digit.
func CompareSnapshots(expected, actual *domain.RunSnapshot) []FieldDivergence {
	var divergences []FieldDivergence

	if expected == nil || actual == nil {
		if expected != actual {
			divergences = append(divergences, FieldDivergence{
				Field:    "Snapshot",
				Expected: expected,
				Actual:   actual,
			})
		}
		return divergences
	}

	if expected.Status != actual.Status {
		divergences = append(divergences, FieldDivergence{
			Field:    "Status",
			Expected: expected.Status,
			Actual:   actual.Status,
		})
	}

	if !expected.Clock.Equal(actual.Clock) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Clock",
			Expected: expected.Clock,
			Actual:   actual.Clock,
		})
	}

	if !expected.RealizedPnL.Equal(actual.RealizedPnL) {
		divergences = append(divergences, FieldDivergence{
			Field:    "RealizedPnL",
			Expected: expected.RealizedPnL.String(),
			Actual:   actual.RealizedPnL.String(),
		})
	}

	if !expected.UnrealizedPnL.Equal(actual.UnrealizedPnL) {
		divergences = append(divergences, FieldDivergence{
			Field:    "UnrealizedPnL",
			Expected: expected.UnrealizedPnL.String(),
			Actual:   actual.UnrealizedPnL.String(),
		})
	}

	if !expected.TotalPnL.Equal(actual.TotalPnL) {
		divergences = append(divergences, FieldDivergence{
			Field:    "TotalPnL",
			Expected: expected.TotalPnL.String(),
			Actual:   actual.TotalPnL.String(),
		})
	}

	if len(expected.Positions) != len(actual.Positions) {
		divergences = append(divergences, FieldDivergence{
			Field:    "PositionCount",
			Expected: len(expected.Positions),
			Actual:   len(actual.Positions),
		})
	} else {
		for i := range expected.Positions {
			prefix := fmt.Sprintf("Positions[%d]", i)
			divergences = append(divergences, comparePositions(prefix, &expected.Positions[i], &actual.Positions[i])...)
		}
	}

	for key, want := range expected.ReentryCounts {
		if got, ok := actual.ReentryCounts[key]; !ok || got != want {
			divergences = append(divergences, FieldDivergence{
				Field:    "ReentryCounts[" + key + "]",
				Expected: want,
				Actual:   actual.ReentryCounts[key],
			})
		}
	}
	for key := range actual.ReentryCounts {
		if _, ok := expected.ReentryCounts[key]; !ok {
			divergences = append(divergences, FieldDivergence{
				Field:    "ReentryCounts[" + key + "]",
				Expected: nil,
				Actual:   actual.ReentryCounts[key],
			})
		}
	}

	return divergences
}

// comparePositions compares every field of two positions, prefixing
// divergence names with the caller's path.
func comparePositions(prefix string, expected, actual *domain.Position) []FieldDivergence {
	var divergences []FieldDivergence

	if expected == nil || actual == nil {
		if expected != actual {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix,
				Expected: expected,
				Actual:   actual,
			})
		}
		return divergences
	}

	if expected.ID != actual.ID {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".ID",
			Expected: expected.ID,
			Actual:   actual.ID,
		})
	}

	if expected.LegID != actual.LegID {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".LegID",
			Expected: expected.LegID,
			Actual:   actual.LegID,
		})
	}

	if expected.Contract.ID() != actual.Contract.ID() {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Contract",
			Expected: expected.Contract.ID(),
			Actual:   actual.Contract.ID(),
		})
	}

	if expected.Side != actual.Side {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Side",
			Expected: expected.Side,
			Actual:   actual.Side,
		})
	}

	if expected.Lots != actual.Lots {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Lots",
			Expected: expected.Lots,
			Actual:   actual.Lots,
		})
	}

	if expected.Sequence != actual.Sequence {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Sequence",
			Expected: expected.Sequence,
			Actual:   actual.Sequence,
		})
	}

	if expected.Trigger != actual.Trigger {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Trigger",
			Expected: expected.Trigger,
			Actual:   actual.Trigger,
		})
	}

	if !expected.EntryTime.Equal(actual.EntryTime) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".EntryTime",
			Expected: expected.EntryTime,
			Actual:   actual.EntryTime,
		})
	}

	if !expected.EntryPrice.Equal(actual.EntryPrice) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".EntryPrice",
			Expected: expected.EntryPrice.String(),
			Actual:   actual.EntryPrice.String(),
		})
	}

	if !expected.EntrySpot.Equal(actual.EntrySpot) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".EntrySpot",
			Expected: expected.EntrySpot.String(),
			Actual:   actual.EntrySpot.String(),
		})
	}

	if !expected.CurrentPrice.Equal(actual.CurrentPrice) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".CurrentPrice",
			Expected: expected.CurrentPrice.String(),
			Actual:   actual.CurrentPrice.String(),
		})
	}

	if !decimalPtrEquals(expected.TrailLevel, actual.TrailLevel) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".TrailLevel",
			Expected: decimalPtrValue(expected.TrailLevel),
			Actual:   decimalPtrValue(actual.TrailLevel),
		})
	}

	if expected.Status != actual.Status {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Status",
			Expected: expected.Status,
			Actual:   actual.Status,
		})
	}

	if !timePtrEquals(expected.ExitTime, actual.ExitTime) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".ExitTime",
			Expected: timePtrValue(expected.ExitTime),
			Actual:   timePtrValue(actual.ExitTime),
		})
	}

	if !decimalPtrEquals(expected.ExitPrice, actual.ExitPrice) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".ExitPrice",
			Expected: decimalPtrValue(expected.ExitPrice),
			Actual:   decimalPtrValue(actual.ExitPrice),
		})
	}

	if !decimalPtrEquals(expected.RealizedPnL, actual.RealizedPnL) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".RealizedPnL",
			Expected: decimalPtrValue(expected.RealizedPnL),
			Actual:   decimalPtrValue(actual.RealizedPnL),
		})
	}

	if !expected.UnrealizedPnL.Equal(actual.UnrealizedPnL) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".UnrealizedPnL",
			Expected: expected.UnrealizedPnL.String(),
			Actual:   actual.UnrealizedPnL.String(),
		})
	}

	return divergences
}

// decimalPtrEquals compares two *decimal.Decimal values exactly.
// Returns true if both are nil, or both are non-nil and equal.
func decimalPtrEquals(a, b *decimal.Decimal) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}

// timePtrEquals compares two *time.Time values.
func timePtrEquals(a, b *time.Time) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}

func decimalPtrValue(v *decimal.Decimal) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func timePtrValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
