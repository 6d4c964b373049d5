// Package config loads strategy definitions from JSON files. A config
// passes three gates before a run sees it: the embedded JSON schema,
// strict decoding, and semantic validation of cross-field rules the
// schema cannot express.
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/strikes"
)

//go:embed schema.json
var schemaFS embed.FS

var (
	// ErrInvalidJSON is returned when the file is not parseable JSON.
	ErrInvalidJSON = errors.New("strategy config is not valid JSON")
	// ErrSchema is returned when the document violates the strategy schema.
	ErrSchema = errors.New("strategy config violates schema")

	// Semantic validation errors.
	ErrMissingName        = errors.New("strategy requires a name")
	ErrMissingUnderlying  = errors.New("strategy requires an underlying")
	ErrInvalidKind        = errors.New("invalid strategy kind")
	ErrInvalidLotSize     = errors.New("lot size must be positive")
	ErrNoLegs             = errors.New("strategy requires at least one leg")
	ErrDuplicateLegID     = errors.New("duplicate leg id")
	ErrEntryNotBeforeExit = errors.New("entry time must be before exit time")
	ErrMissingRight       = errors.New("option leg requires a right")
	ErrInvalidLots        = errors.New("lots must be positive")
	ErrInvalidRiskRule    = errors.New("risk rule requires a valid basis and positive value")
	ErrInvalidTrailRule   = errors.New("trail rule requires a valid basis and positive value")
	ErrInvalidReentry     = errors.New("invalid re-entry rule")
	ErrMissingMomentum    = errors.New("momentum re-entry requires positive momentum_points")
	ErrMissingLazyDelay   = errors.New("LAZY_LEG requires a positive delay")
	ErrInvalidBreakeven   = errors.New("trail_to_breakeven requires a premium basis and positive value")
)

// File-level wire structs. Optional blocks are pointers: absence means
// the feature is disabled.
type fileStrategy struct {
	Name             string           `json:"name"`
	Kind             string           `json:"kind"`
	Underlying       string           `json:"underlying"`
	UnderlyingFrom   string           `json:"underlying_from"`
	EntryTime        string           `json:"entry_time"`
	ExitTime         string           `json:"exit_time"`
	LotSize          int              `json:"lot_size"`
	SquareOff        string           `json:"square_off"`
	NoReentryAfter   string           `json:"no_reentry_after"`
	MomentumPoints   *decimal.Decimal `json:"momentum_points"`
	TrailToBreakeven *fileBreakeven   `json:"trail_to_breakeven"`
	Costs            *fileCosts       `json:"costs"`
	Legs             []fileLeg        `json:"legs"`
}

type fileBreakeven struct {
	Basis string          `json:"basis"`
	Value decimal.Decimal `json:"value"`
}

type fileCosts struct {
	PerLotRoundTrip decimal.Decimal `json:"per_lot_round_trip"`
	SlippagePerFill decimal.Decimal `json:"slippage_per_fill"`
}

type fileLeg struct {
	ID              string           `json:"id"`
	Side            string           `json:"side"`
	Instrument      string           `json:"instrument"`
	Right           string           `json:"right"`
	Expiry          string           `json:"expiry"`
	Lots            int              `json:"lots"`
	Strike          fileStrike       `json:"strike"`
	Target          *fileRiskRule    `json:"target"`
	StopLoss        *fileRiskRule    `json:"stop_loss"`
	Trail           *fileTrailRule   `json:"trail"`
	ReentryOnStop   *fileReentryRule `json:"reentry_on_stop"`
	ReentryOnTarget *fileReentryRule `json:"reentry_on_target"`
}

type fileStrike struct {
	Kind        string           `json:"kind"`
	Moneyness   string           `json:"moneyness"`
	Steps       int              `json:"steps"`
	Premium     *decimal.Decimal `json:"premium"`
	PremiumLow  *decimal.Decimal `json:"premium_low"`
	PremiumHigh *decimal.Decimal `json:"premium_high"`
	Delta       *decimal.Decimal `json:"delta"`
	DeltaLow    *decimal.Decimal `json:"delta_low"`
	DeltaHigh   *decimal.Decimal `json:"delta_high"`
	Multiple    *decimal.Decimal `json:"multiple"`
	Percent     *decimal.Decimal `json:"percent"`
}

type fileRiskRule struct {
	Basis string          `json:"basis"`
	Value decimal.Decimal `json:"value"`
}

type fileTrailRule struct {
	Basis string          `json:"basis"`
	Value decimal.Decimal `json:"value"`
}

type fileReentryRule struct {
	Mode             string `json:"mode"`
	MaxCount         int    `json:"max_count"`
	LazyDelaySeconds int    `json:"lazy_delay_seconds"`
}

// Load reads, validates, and converts a strategy config file.
func Load(path string) (*domain.StrategyDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw JSON against the embedded schema, decodes it
// strictly, and runs semantic validation on the result.
func Parse(raw []byte) (*domain.StrategyDefinition, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile strategy schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var f fileStrategy
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	def, err := f.toDomain()
	if err != nil {
		return nil, err
	}
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schema.json")
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("strategy.schema.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("strategy.schema.json")
}

func (f *fileStrategy) toDomain() (*domain.StrategyDefinition, error) {
	def := &domain.StrategyDefinition{
		Name:           f.Name,
		Kind:           domain.StrategyKind(f.Kind),
		Underlying:     f.Underlying,
		UnderlyingFrom: domain.UnderlyingFrom(f.UnderlyingFrom),
		LotSize:        f.LotSize,
		SquareOff:      domain.SquareOffMode(f.SquareOff),
	}
	if def.UnderlyingFrom == "" {
		def.UnderlyingFrom = domain.UnderlyingCash
	}
	if def.SquareOff == "" {
		def.SquareOff = domain.SquareOffPartial
	}

	entry, err := domain.ParseTimeOfDay(f.EntryTime)
	if err != nil {
		return nil, fmt.Errorf("entry_time: %w", err)
	}
	def.EntryTime = entry

	exit, err := domain.ParseTimeOfDay(f.ExitTime)
	if err != nil {
		return nil, fmt.Errorf("exit_time: %w", err)
	}
	def.ExitTime = exit

	if f.NoReentryAfter != "" {
		cutoff, err := domain.ParseTimeOfDay(f.NoReentryAfter)
		if err != nil {
			return nil, fmt.Errorf("no_reentry_after: %w", err)
		}
		def.NoReentryAfter = &cutoff
	}

	if f.MomentumPoints != nil {
		def.MomentumPoints = *f.MomentumPoints
	}
	if f.TrailToBreakeven != nil {
		def.TrailToBreakeven = &domain.BreakevenRule{
			Basis: domain.RiskBasis(f.TrailToBreakeven.Basis),
			Value: f.TrailToBreakeven.Value,
		}
	}
	if f.Costs != nil {
		def.Costs = domain.CostModel{
			PerLotRoundTrip: f.Costs.PerLotRoundTrip,
			SlippagePerFill: f.Costs.SlippagePerFill,
		}
	}

	for i := range f.Legs {
		leg, err := f.Legs[i].toDomain()
		if err != nil {
			return nil, err
		}
		def.Legs = append(def.Legs, leg)
	}
	return def, nil
}

func (l *fileLeg) toDomain() (domain.LegDefinition, error) {
	leg := domain.LegDefinition{
		ID:         l.ID,
		Side:       domain.Side(l.Side),
		Instrument: domain.InstrumentKind(l.Instrument),
		Right:      domain.OptionRight(l.Right),
		Expiry:     domain.ExpiryRule(l.Expiry),
		Lots:       l.Lots,
		Strike: domain.StrikeCriterion{
			Kind:        domain.StrikeCriterionKind(l.Strike.Kind),
			Moneyness:   domain.StrikeMoneyness(l.Strike.Moneyness),
			Steps:       l.Strike.Steps,
			Premium:     l.Strike.Premium,
			PremiumLow:  l.Strike.PremiumLow,
			PremiumHigh: l.Strike.PremiumHigh,
			Delta:       l.Strike.Delta,
			DeltaLow:    l.Strike.DeltaLow,
			DeltaHigh:   l.Strike.DeltaHigh,
			Multiple:    l.Strike.Multiple,
			Percent:     l.Strike.Percent,
		},
	}
	if leg.Instrument == "" {
		leg.Instrument = domain.InstrumentOption
	}
	if leg.Expiry == "" {
		leg.Expiry = domain.ExpiryWeekly
	}

	if l.Target != nil {
		leg.Target = domain.RiskRule{Enabled: true, Basis: domain.RiskBasis(l.Target.Basis), Value: l.Target.Value}
	}
	if l.StopLoss != nil {
		leg.StopLoss = domain.RiskRule{Enabled: true, Basis: domain.RiskBasis(l.StopLoss.Basis), Value: l.StopLoss.Value}
	}
	if l.Trail != nil {
		leg.Trail = domain.TrailRule{Enabled: true, Basis: domain.TrailBasis(l.Trail.Basis), Value: l.Trail.Value}
	}
	if l.ReentryOnStop != nil {
		leg.ReentryOnStop = l.ReentryOnStop.toDomain()
	}
	if l.ReentryOnTarget != nil {
		leg.ReentryOnTarget = l.ReentryOnTarget.toDomain()
	}
	return leg, nil
}

func (r *fileReentryRule) toDomain() domain.ReentryRule {
	return domain.ReentryRule{
		Enabled:   true,
		Mode:      domain.ReentryMode(r.Mode),
		MaxCount:  r.MaxCount,
		LazyDelay: time.Duration(r.LazyDelaySeconds) * time.Second,
	}
}

// Validate applies the semantic rules a schema cannot express. It also
// covers definitions constructed in code rather than loaded from JSON.
func Validate(def *domain.StrategyDefinition) error {
	if def.Name == "" {
		return ErrMissingName
	}
	if !def.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, def.Kind)
	}
	if def.Underlying == "" {
		return ErrMissingUnderlying
	}
	if !def.UnderlyingFrom.IsValid() {
		return fmt.Errorf("invalid underlying_from: %q", def.UnderlyingFrom)
	}
	if !def.SquareOff.IsValid() {
		return fmt.Errorf("invalid square_off: %q", def.SquareOff)
	}
	if def.LotSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLotSize, def.LotSize)
	}
	if !def.EntryTime.Before(def.ExitTime) {
		return fmt.Errorf("%w: %s >= %s", ErrEntryNotBeforeExit, def.EntryTime, def.ExitTime)
	}
	if len(def.Legs) == 0 {
		return ErrNoLegs
	}
	if def.TrailToBreakeven != nil {
		if !def.TrailToBreakeven.Basis.IsPremium() || def.TrailToBreakeven.Value.Sign() <= 0 {
			return ErrInvalidBreakeven
		}
	}

	seen := make(map[string]bool, len(def.Legs))
	for i := range def.Legs {
		leg := &def.Legs[i]
		if leg.ID == "" {
			return fmt.Errorf("leg %d: missing id", i)
		}
		if seen[leg.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateLegID, leg.ID)
		}
		seen[leg.ID] = true

		if err := validateLeg(leg, def); err != nil {
			return fmt.Errorf("leg %q: %w", leg.ID, err)
		}
	}
	return nil
}

func validateLeg(leg *domain.LegDefinition, def *domain.StrategyDefinition) error {
	if !leg.Side.IsValid() {
		return fmt.Errorf("invalid side: %q", leg.Side)
	}
	if !leg.Instrument.IsValid() {
		return fmt.Errorf("invalid instrument: %q", leg.Instrument)
	}
	if leg.Lots <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLots, leg.Lots)
	}
	if !leg.Expiry.IsValid() {
		return fmt.Errorf("invalid expiry: %q", leg.Expiry)
	}

	if leg.Instrument == domain.InstrumentOption {
		if !leg.Right.IsValid() {
			return ErrMissingRight
		}
		if err := strikes.ValidateCriterion(leg.Strike); err != nil {
			return fmt.Errorf("strike: %w", err)
		}
	}

	for _, r := range []domain.RiskRule{leg.Target, leg.StopLoss} {
		if r.Enabled && (!r.Basis.IsValid() || r.Value.Sign() <= 0) {
			return fmt.Errorf("%w: basis %q value %s", ErrInvalidRiskRule, r.Basis, r.Value)
		}
	}
	if leg.Trail.Enabled && (!leg.Trail.Basis.IsValid() || leg.Trail.Value.Sign() <= 0) {
		return fmt.Errorf("%w: basis %q value %s", ErrInvalidTrailRule, leg.Trail.Basis, leg.Trail.Value)
	}

	for _, r := range []domain.ReentryRule{leg.ReentryOnStop, leg.ReentryOnTarget} {
		if !r.Enabled {
			continue
		}
		if !r.Mode.IsValid() {
			return fmt.Errorf("%w: mode %q", ErrInvalidReentry, r.Mode)
		}
		if r.MaxCount < 0 || r.MaxCount > domain.MaxReentryCount {
			return fmt.Errorf("%w: max_count %d", ErrInvalidReentry, r.MaxCount)
		}
		switch r.Mode {
		case domain.ReentryMomentum, domain.ReentryMomentumRev:
			if def.MomentumPoints.Sign() <= 0 {
				return ErrMissingMomentum
			}
		case domain.ReentryLazyLeg:
			if r.LazyDelay <= 0 {
				return ErrMissingLazyDelay
			}
		}
	}
	return nil
}
