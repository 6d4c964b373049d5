package reporting

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// Generator produces run reports.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report from live engine output: the final snapshot
// and the full event log.
func (g *Generator) Generate(snapshot *domain.RunSnapshot, events []domain.LifecycleEvent) *Report {
	report := &Report{
		GeneratedAt: g.now(),
		RunID:       snapshot.RunID,
		Strategy:    snapshot.Strategy,
		Status:      snapshot.Status,
		Clock:       snapshot.Clock,
	}

	report.Trades = make([]TradeRow, 0, len(snapshot.Positions))
	for i := range snapshot.Positions {
		report.Trades = append(report.Trades, tradeRowFromPosition(&snapshot.Positions[i]))
	}
	sortTradeRows(report.Trades)

	report.Totals = g.generateTotals(report.Trades, snapshot.RealizedPnL, snapshot.UnrealizedPnL, snapshot.TotalPnL)
	report.Reentries = g.generateReentries(snapshot.ReentryCounts)

	for _, ev := range events {
		row := LegEventRow{LegID: ev.LegID, At: ev.At, Note: ev.Note}
		switch ev.Type {
		case domain.EventLegSkipped:
			report.Skips = append(report.Skips, row)
		case domain.EventEntryDeferred:
			report.Deferrals = append(report.Deferrals, row)
		}
	}

	return report
}

// FromRecords builds a report from journaled rows instead of a live
// engine. Only closed trades are journaled, so open positions and the
// skip and deferral sections are absent here.
func (g *Generator) FromRecords(run *domain.RunRecord, trades []*domain.TradeRecord, snapshots []*domain.SnapshotRecord) *Report {
	report := &Report{
		GeneratedAt: g.now(),
		RunID:       run.RunID,
		Strategy:    run.Strategy,
		Mode:        run.Mode,
		Status:      run.Status,
		Clock:       run.UpdatedAt,
	}

	report.Trades = make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		report.Trades = append(report.Trades, tradeRowFromRecord(t))
	}
	sortTradeRows(report.Trades)

	realized := decimal.Zero
	for _, row := range report.Trades {
		realized = realized.Add(row.PnL)
	}
	unrealized := decimal.Zero
	total := realized
	if len(snapshots) > 0 {
		last := snapshots[len(snapshots)-1]
		unrealized = last.UnrealizedPnL
		total = last.TotalPnL
		report.Clock = last.TakenAt
	}

	report.Totals = g.generateTotals(report.Trades, realized, unrealized, total)
	return report
}

func (g *Generator) generateTotals(trades []TradeRow, realized, unrealized, total decimal.Decimal) Totals {
	totals := Totals{
		Positions:     len(trades),
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      total,
	}
	for _, row := range trades {
		if row.Status == domain.StatusOpen {
			totals.OpenPositions++
			continue
		}
		totals.ClosedPositions++
		switch row.PnL.Sign() {
		case 1:
			totals.Wins++
		case -1:
			totals.Losses++
		}
	}
	return totals
}

func (g *Generator) generateReentries(counts map[string]int) []ReentryRow {
	var rows []ReentryRow
	for key, used := range counts {
		if used == 0 {
			continue
		}
		legID, trigger, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		rows = append(rows, ReentryRow{
			LegID:   legID,
			Trigger: domain.ReentryTrigger(trigger),
			Used:    used,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LegID != rows[j].LegID {
			return rows[i].LegID < rows[j].LegID
		}
		return rows[i].Trigger < rows[j].Trigger
	})
	return rows
}

func tradeRowFromPosition(p *domain.Position) TradeRow {
	return TradeRow{
		LegID:      p.LegID,
		Sequence:   p.Sequence,
		Trigger:    p.Trigger,
		Contract:   p.Contract.ID(),
		Side:       p.Side,
		Lots:       p.Lots,
		EntryTime:  p.EntryTime,
		EntryPrice: p.EntryPrice,
		ExitTime:   p.ExitTime,
		ExitPrice:  p.ExitPrice,
		Status:     p.Status,
		PnL:        p.PnL(),
	}
}

func tradeRowFromRecord(t *domain.TradeRecord) TradeRow {
	exitTime := t.ExitTime
	exitPrice := t.ExitPrice
	return TradeRow{
		LegID:      t.LegID,
		Sequence:   t.Sequence,
		Trigger:    t.Trigger,
		Contract:   t.Contract,
		Side:       t.Side,
		Lots:       t.Lots,
		EntryTime:  t.EntryTime,
		EntryPrice: t.EntryPrice,
		ExitTime:   &exitTime,
		ExitPrice:  &exitPrice,
		Status:     t.Status,
		PnL:        t.PnL,
	}
}

// sortTradeRows orders by (entry time, leg id, sequence).
func sortTradeRows(rows []TradeRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].EntryTime.Equal(rows[j].EntryTime) {
			return rows[i].EntryTime.Before(rows[j].EntryTime)
		}
		if rows[i].LegID != rows[j].LegID {
			return rows[i].LegID < rows[j].LegID
		}
		return rows[i].Sequence < rows[j].Sequence
	})
}
