package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

var reportBase = time.Date(2025, 7, 17, 9, 20, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	at := time.Date(2025, 7, 17, 16, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func reportSnapshot() *domain.RunSnapshot {
	exitTime := reportBase.Add(90 * time.Minute)
	exitPrice := decimal.RequireFromString("70")
	pnl := decimal.RequireFromString("1500")

	contract := func(right domain.OptionRight) domain.Contract {
		return domain.Contract{
			Underlying: "NIFTY",
			Instrument: domain.InstrumentOption,
			Right:      right,
			Strike:     decimal.NewFromInt(24500),
			Expiry:     time.Date(2025, 7, 17, 0, 0, 0, 0, time.UTC),
		}
	}

	return &domain.RunSnapshot{
		RunID:    "run-1",
		Strategy: "short-straddle",
		Status:   domain.RunRunning,
		Clock:    reportBase.Add(2 * time.Hour),
		Positions: []domain.Position{
			{
				ID:            "pos-pe",
				LegID:         "pe_short",
				Contract:      contract(domain.RightPut),
				Side:          domain.SideSell,
				Lots:          50,
				Sequence:      0,
				Trigger:       domain.TriggerNone,
				EntryTime:     reportBase.Add(time.Minute),
				EntryPrice:    decimal.RequireFromString("120"),
				CurrentPrice:  decimal.RequireFromString("110"),
				Status:        domain.StatusOpen,
				UnrealizedPnL: decimal.RequireFromString("500"),
			},
			{
				ID:          "pos-ce",
				LegID:       "ce_short",
				Contract:    contract(domain.RightCall),
				Side:        domain.SideSell,
				Lots:        50,
				Sequence:    0,
				Trigger:     domain.TriggerNone,
				EntryTime:   reportBase,
				EntryPrice:  decimal.RequireFromString("100"),
				Status:      domain.StatusClosedTarget,
				ExitTime:    &exitTime,
				ExitPrice:   &exitPrice,
				RealizedPnL: &pnl,
			},
		},
		RealizedPnL:   decimal.RequireFromString("1500"),
		UnrealizedPnL: decimal.RequireFromString("500"),
		TotalPnL:      decimal.RequireFromString("2000"),
		ReentryCounts: map[string]int{
			"ce_short|TARGET":    1,
			"pe_short|STOP_LOSS": 0,
		},
	}
}

func TestGenerator_FromSnapshot(t *testing.T) {
	events := []domain.LifecycleEvent{
		{Type: domain.EventEntryDeferred, LegID: "ce_short", At: reportBase, Note: "no quote for NIFTY|2025-07-17|CE|24500"},
		{Type: domain.EventPositionCreated, LegID: "ce_short", At: reportBase},
		{Type: domain.EventLegSkipped, LegID: "fut_hedge", At: reportBase.Add(time.Hour), Note: "no entry before session exit"},
	}

	report := NewGenerator().WithClock(fixedClock()).Generate(reportSnapshot(), events)

	if report.RunID != "run-1" || report.Strategy != "short-straddle" {
		t.Errorf("metadata mismatch: %+v", report)
	}
	if !report.GeneratedAt.Equal(fixedClock()()) {
		t.Errorf("GeneratedAt = %v", report.GeneratedAt)
	}

	// Sorted by entry time: ce first (earlier entry)
	if len(report.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(report.Trades))
	}
	if report.Trades[0].LegID != "ce_short" || report.Trades[1].LegID != "pe_short" {
		t.Errorf("trade order: %s, %s", report.Trades[0].LegID, report.Trades[1].LegID)
	}
	if !report.Trades[0].PnL.Equal(decimal.RequireFromString("1500")) {
		t.Errorf("closed trade pnl = %s", report.Trades[0].PnL)
	}
	if !report.Trades[1].PnL.Equal(decimal.RequireFromString("500")) {
		t.Errorf("open trade pnl = %s", report.Trades[1].PnL)
	}

	totals := report.Totals
	if totals.Positions != 2 || totals.OpenPositions != 1 || totals.ClosedPositions != 1 {
		t.Errorf("position counts: %+v", totals)
	}
	if totals.Wins != 1 || totals.Losses != 0 {
		t.Errorf("wins/losses: %d/%d", totals.Wins, totals.Losses)
	}
	if !totals.TotalPnL.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("total pnl = %s", totals.TotalPnL)
	}

	// Zero-use rows are dropped
	if len(report.Reentries) != 1 {
		t.Fatalf("reentries = %d, want 1", len(report.Reentries))
	}
	if report.Reentries[0].LegID != "ce_short" || report.Reentries[0].Trigger != domain.TriggerTarget || report.Reentries[0].Used != 1 {
		t.Errorf("reentry row: %+v", report.Reentries[0])
	}

	if len(report.Skips) != 1 || report.Skips[0].LegID != "fut_hedge" {
		t.Errorf("skips: %+v", report.Skips)
	}
	if len(report.Deferrals) != 1 || report.Deferrals[0].Note == "" {
		t.Errorf("deferrals: %+v", report.Deferrals)
	}
}

func TestGenerator_FromRecords(t *testing.T) {
	run := &domain.RunRecord{
		RunID:     "run-2",
		Strategy:  "short-straddle",
		Mode:      "backtest",
		Status:    domain.RunFinished,
		StartedAt: reportBase,
		UpdatedAt: reportBase.Add(6 * time.Hour),
	}
	trades := []*domain.TradeRecord{
		{
			TradeID:    "t2",
			RunID:      "run-2",
			LegID:      "pe_short",
			Sequence:   1,
			Trigger:    domain.TriggerStopLoss,
			Contract:   "NIFTY|2025-07-17|PE|24500",
			Side:       domain.SideSell,
			Lots:       50,
			EntryTime:  reportBase.Add(time.Hour),
			EntryPrice: decimal.RequireFromString("110"),
			ExitTime:   reportBase.Add(2 * time.Hour),
			ExitPrice:  decimal.RequireFromString("120"),
			Status:     domain.StatusClosedStopLoss,
			PnL:        decimal.RequireFromString("-500"),
		},
		{
			TradeID:    "t1",
			RunID:      "run-2",
			LegID:      "ce_short",
			Sequence:   0,
			Trigger:    domain.TriggerNone,
			Contract:   "NIFTY|2025-07-17|CE|24500",
			Side:       domain.SideSell,
			Lots:       50,
			EntryTime:  reportBase,
			EntryPrice: decimal.RequireFromString("100"),
			ExitTime:   reportBase.Add(3 * time.Hour),
			ExitPrice:  decimal.RequireFromString("70"),
			Status:     domain.StatusClosedTarget,
			PnL:        decimal.RequireFromString("1500"),
		},
	}
	snapshots := []*domain.SnapshotRecord{
		{
			RunID:         "run-2",
			TakenAt:       reportBase.Add(5 * time.Hour),
			Status:        domain.RunRunning,
			OpenPositions: 0,
			RealizedPnL:   decimal.RequireFromString("1000"),
			UnrealizedPnL: decimal.Zero,
			TotalPnL:      decimal.RequireFromString("1000"),
		},
	}

	report := NewGenerator().WithClock(fixedClock()).FromRecords(run, trades, snapshots)

	if report.Mode != "backtest" || report.Status != domain.RunFinished {
		t.Errorf("metadata: %+v", report)
	}
	if !report.Clock.Equal(snapshots[0].TakenAt) {
		t.Errorf("clock = %v, want last snapshot instant", report.Clock)
	}

	// Sorted by entry time despite reversed input
	if report.Trades[0].LegID != "ce_short" {
		t.Errorf("trade order: %s first", report.Trades[0].LegID)
	}

	totals := report.Totals
	if totals.ClosedPositions != 2 || totals.Wins != 1 || totals.Losses != 1 {
		t.Errorf("totals: %+v", totals)
	}
	if !totals.RealizedPnL.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("realized = %s, want 1000", totals.RealizedPnL)
	}
	if !totals.TotalPnL.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("total = %s", totals.TotalPnL)
	}
}

func TestRenderMarkdown(t *testing.T) {
	report := NewGenerator().WithClock(fixedClock()).Generate(reportSnapshot(), nil)
	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Run Report: short-straddle",
		"## Totals",
		"| Total PnL | 2000.00 |",
		"## Trades",
		"NIFTY|2025-07-17|CE|24500",
		"## Re-entries",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Open position renders dashes for exit columns
	if !strings.Contains(md, "| - | - | OPEN |") {
		t.Errorf("open row not rendered with dashes:\n%s", md)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	report := NewGenerator().WithClock(fixedClock()).Generate(&domain.RunSnapshot{
		RunID:    "run-3",
		Strategy: "empty",
		Status:   domain.RunFinished,
	}, nil)
	md := RenderMarkdown(report)

	if !strings.Contains(md, "No trades.") {
		t.Errorf("empty report missing placeholder:\n%s", md)
	}
	if strings.Contains(md, "## Re-entries") {
		t.Errorf("empty report should omit re-entry section")
	}
}

func TestRenderCSV(t *testing.T) {
	report := NewGenerator().WithClock(fixedClock()).Generate(reportSnapshot(), nil)
	csv := RenderCSV(report.Trades)

	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "leg_id,sequence,trigger") {
		t.Errorf("header = %s", lines[0])
	}
	if !strings.Contains(lines[1], "ce_short,0,NONE,NIFTY|2025-07-17|CE|24500,SELL,50") {
		t.Errorf("first row = %s", lines[1])
	}
	// Open rows leave exit columns empty
	if !strings.Contains(lines[2], ",,") {
		t.Errorf("open row = %s", lines[2])
	}
}
