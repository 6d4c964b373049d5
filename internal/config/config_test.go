package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/strikes"
)

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

const validConfig = `{
  "name": "short-strangle",
  "kind": "INTRADAY",
  "underlying": "NIFTY",
  "entry_time": "09:20",
  "exit_time": "15:15",
  "lot_size": 75,
  "square_off": "COMPLETE",
  "no_reentry_after": "14:30",
  "momentum_points": 10,
  "trail_to_breakeven": {"basis": "PREMIUM_POINTS", "value": 40},
  "costs": {"per_lot_round_trip": 20, "slippage_per_fill": 0.05},
  "legs": [
    {
      "id": "short-ce", "side": "SELL", "right": "CE", "lots": 2,
      "strike": {"kind": "STRIKE_TYPE", "moneyness": "OTM", "steps": 2},
      "target": {"basis": "PREMIUM_PERCENT", "value": 50},
      "stop_loss": {"basis": "PREMIUM_PERCENT", "value": 30},
      "trail": {"basis": "POINTS", "value": 10},
      "reentry_on_stop": {"mode": "RE_MOMENTUM", "max_count": 2}
    },
    {
      "id": "short-pe", "side": "SELL", "right": "PE", "lots": 2,
      "strike": {"kind": "CLOSEST_PREMIUM", "premium": 100},
      "stop_loss": {"basis": "PREMIUM_POINTS", "value": 25},
      "reentry_on_target": {"mode": "LAZY_LEG", "max_count": 1, "lazy_delay_seconds": 300}
    }
  ]
}`

func TestParseValidConfig(t *testing.T) {
	def, err := Parse([]byte(validConfig))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if def.Name != "short-strangle" || def.Kind != domain.KindIntraday {
		t.Errorf("header = %q %s", def.Name, def.Kind)
	}
	if def.EntryTime != (domain.TimeOfDay{Hour: 9, Minute: 20}) {
		t.Errorf("entry time = %v", def.EntryTime)
	}
	if def.ExitTime != (domain.TimeOfDay{Hour: 15, Minute: 15}) {
		t.Errorf("exit time = %v", def.ExitTime)
	}
	if def.SquareOff != domain.SquareOffComplete {
		t.Errorf("square off = %s", def.SquareOff)
	}
	if def.NoReentryAfter == nil || *def.NoReentryAfter != (domain.TimeOfDay{Hour: 14, Minute: 30}) {
		t.Errorf("no_reentry_after = %v", def.NoReentryAfter)
	}
	if !def.MomentumPoints.Equal(decimalFromInt(10)) {
		t.Errorf("momentum points = %s", def.MomentumPoints)
	}
	if def.TrailToBreakeven == nil || def.TrailToBreakeven.Basis != domain.BasisPremiumPoints {
		t.Errorf("breakeven = %+v", def.TrailToBreakeven)
	}
	if !def.Costs.PerLotRoundTrip.Equal(decimalFromInt(20)) {
		t.Errorf("costs = %+v", def.Costs)
	}

	if len(def.Legs) != 2 {
		t.Fatalf("legs = %d, want 2", len(def.Legs))
	}
	ce := def.Legs[0]
	if ce.Instrument != domain.InstrumentOption || ce.Expiry != domain.ExpiryWeekly {
		t.Errorf("leg defaults: instrument %s expiry %s", ce.Instrument, ce.Expiry)
	}
	if !ce.Target.Enabled || !ce.StopLoss.Enabled || !ce.Trail.Enabled {
		t.Errorf("leg rules not enabled: %+v", ce)
	}
	if !ce.ReentryOnStop.Enabled || ce.ReentryOnStop.Mode != domain.ReentryMomentum {
		t.Errorf("reentry on stop = %+v", ce.ReentryOnStop)
	}
	if ce.ReentryOnTarget.Enabled {
		t.Error("absent reentry_on_target should stay disabled")
	}

	pe := def.Legs[1]
	if pe.Strike.Kind != domain.StrikeClosestPremium || pe.Strike.Premium == nil {
		t.Errorf("pe strike = %+v", pe.Strike)
	}
	if pe.ReentryOnTarget.LazyDelay != 5*time.Minute {
		t.Errorf("lazy delay = %v, want 5m", pe.ReentryOnTarget.LazyDelay)
	}
	if def.UnderlyingFrom != domain.UnderlyingCash {
		t.Errorf("underlying_from default = %s, want CASH", def.UnderlyingFrom)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"name": `)); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("error = %v, want ErrInvalidJSON", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(validConfig, `"name"`, `"nmae"`, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, ErrSchema) {
		t.Errorf("error = %v, want ErrSchema", err)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"bad kind", `"kind": "INTRADAY"`, `"kind": "SCALP"`},
		{"bad time format", `"entry_time": "09:20"`, `"entry_time": "9:20"`},
		{"zero lot size", `"lot_size": 75`, `"lot_size": 0`},
		{"max_count above cap", `"max_count": 2`, `"max_count": 21`},
		{"empty legs", `"legs": [`, `"legs2": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := strings.Replace(validConfig, tt.old, tt.new, 1)
			if bad == validConfig {
				t.Fatalf("mutation %q not applied", tt.old)
			}
			if _, err := Parse([]byte(bad)); !errors.Is(err, ErrSchema) {
				t.Errorf("error = %v, want ErrSchema", err)
			}
		})
	}
}

func TestParseRejectsEntryAfterExit(t *testing.T) {
	bad := strings.Replace(validConfig, `"entry_time": "09:20"`, `"entry_time": "15:15"`, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, ErrEntryNotBeforeExit) {
		t.Errorf("error = %v, want ErrEntryNotBeforeExit", err)
	}
}

func TestParseRejectsDuplicateLegIDs(t *testing.T) {
	bad := strings.Replace(validConfig, `"id": "short-pe"`, `"id": "short-ce"`, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, ErrDuplicateLegID) {
		t.Errorf("error = %v, want ErrDuplicateLegID", err)
	}
}

func TestParseRejectsMomentumWithoutMargin(t *testing.T) {
	bad := strings.Replace(validConfig, `"momentum_points": 10,`, ``, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, ErrMissingMomentum) {
		t.Errorf("error = %v, want ErrMissingMomentum", err)
	}
}

func TestParseRejectsLazyLegWithoutDelay(t *testing.T) {
	bad := strings.Replace(validConfig, `, "lazy_delay_seconds": 300`, ``, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, ErrMissingLazyDelay) {
		t.Errorf("error = %v, want ErrMissingLazyDelay", err)
	}
}

func TestParseRejectsOptionLegWithoutRight(t *testing.T) {
	bad := strings.Replace(validConfig, `"right": "CE", `, ``, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, ErrMissingRight) {
		t.Errorf("error = %v, want ErrMissingRight", err)
	}
}

func TestParseRejectsStrikeMissingParams(t *testing.T) {
	bad := strings.Replace(validConfig, `"strike": {"kind": "CLOSEST_PREMIUM", "premium": 100}`,
		`"strike": {"kind": "CLOSEST_PREMIUM"}`, 1)
	if _, err := Parse([]byte(bad)); !errors.Is(err, strikes.ErrMissingPremium) {
		t.Errorf("error = %v, want strikes.ErrMissingPremium", err)
	}
}

func TestValidateProgrammaticDefinition(t *testing.T) {
	def := &domain.StrategyDefinition{
		Name:           "built-in-code",
		Kind:           domain.StrategyKind("SCALP"),
		Underlying:     "NIFTY",
		UnderlyingFrom: domain.UnderlyingCash,
		SquareOff:      domain.SquareOffPartial,
		LotSize:        75,
		EntryTime:      domain.TimeOfDay{Hour: 9, Minute: 20},
		ExitTime:       domain.TimeOfDay{Hour: 15, Minute: 15},
		Legs: []domain.LegDefinition{{
			ID: "leg-1", Side: domain.SideSell, Instrument: domain.InstrumentOption,
			Right: domain.RightCall, Expiry: domain.ExpiryWeekly, Lots: 1,
			Strike: domain.StrikeCriterion{Kind: domain.StrikeByType},
		}},
	}

	if err := Validate(def); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("error = %v, want ErrInvalidKind", err)
	}

	def.Kind = domain.KindIntraday
	if err := Validate(def); err != nil {
		t.Errorf("valid definition rejected: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.json")
	if err := os.WriteFile(path, []byte(validConfig), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if def.Name != "short-strangle" {
		t.Errorf("name = %q", def.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load(missing) succeeded")
	}
}
