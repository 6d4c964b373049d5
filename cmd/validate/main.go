// Package main validates a strategy definition file: JSON schema,
// strict decoding, and semantic checks. Prints a summary of the parsed
// definition and exits non-zero on any violation.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/config"
	"options-strategy-lab/internal/domain"
)

func main() {
	strategyPath := flag.String("strategy", "", "Strategy definition JSON file (required)")
	flag.Parse()

	if *strategyPath == "" {
		fmt.Fprintln(os.Stderr, "--strategy is required")
		os.Exit(2)
	}

	def, err := config.Load(*strategyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}

	printDefinition(def)
}

// printDefinition outputs a human-readable strategy summary.
func printDefinition(def *domain.StrategyDefinition) {
	fmt.Println("valid")
	fmt.Println()
	fmt.Printf("Strategy:      %s\n", def.Name)
	fmt.Printf("Kind:          %s\n", def.Kind)
	fmt.Printf("Underlying:    %s (%s)\n", def.Underlying, def.UnderlyingFrom)
	fmt.Printf("Session:       %s - %s\n", def.EntryTime, def.ExitTime)
	fmt.Printf("Lot Size:      %d\n", def.LotSize)
	fmt.Printf("Square Off:    %s\n", def.SquareOff)
	if def.NoReentryAfter != nil {
		fmt.Printf("No Re-entry:   after %s\n", *def.NoReentryAfter)
	}
	if !def.MomentumPoints.IsZero() {
		fmt.Printf("Momentum:      %s points\n", def.MomentumPoints)
	}
	if def.TrailToBreakeven != nil {
		fmt.Printf("Breakeven:     trigger %s %s\n", def.TrailToBreakeven.Value, def.TrailToBreakeven.Basis)
	}

	fmt.Printf("\nLegs (%d):\n", len(def.Legs))
	for i := range def.Legs {
		leg := &def.Legs[i]
		fmt.Printf("  %s:\n", leg.ID)
		fmt.Printf("    Contract:    %s %s, expiry %s, %d lot(s)\n",
			leg.Side, describeInstrument(leg), leg.Expiry, leg.Lots)
		fmt.Printf("    Strike:      %s\n", describeStrike(leg.Strike))
		if leg.Target.Enabled {
			fmt.Printf("    Target:      %s %s\n", leg.Target.Value, leg.Target.Basis)
		}
		if leg.StopLoss.Enabled {
			fmt.Printf("    Stop Loss:   %s %s\n", leg.StopLoss.Value, leg.StopLoss.Basis)
		}
		if leg.Trail.Enabled {
			fmt.Printf("    Trail:       %s %s\n", leg.Trail.Value, leg.Trail.Basis)
		}
		if leg.ReentryOnStop.Enabled {
			fmt.Printf("    On Stop:     %s\n", describeReentry(leg.ReentryOnStop))
		}
		if leg.ReentryOnTarget.Enabled {
			fmt.Printf("    On Target:   %s\n", describeReentry(leg.ReentryOnTarget))
		}
	}
}

func describeInstrument(leg *domain.LegDefinition) string {
	if leg.Instrument == domain.InstrumentOption {
		return string(leg.Right)
	}
	return string(leg.Instrument)
}

// describeStrike renders the criterion with its parameters.
func describeStrike(c domain.StrikeCriterion) string {
	switch c.Kind {
	case domain.StrikeByType:
		if c.Steps > 0 {
			return fmt.Sprintf("%s%+d", c.Moneyness, c.Steps)
		}
		return string(c.Moneyness)
	case domain.StrikeClosestPremium, domain.StrikePremiumLE, domain.StrikePremiumGE:
		return fmt.Sprintf("%s %s", c.Kind, deref(c.Premium))
	case domain.StrikePremiumRange:
		return fmt.Sprintf("%s [%s, %s]", c.Kind, deref(c.PremiumLow), deref(c.PremiumHigh))
	case domain.StrikeClosestDelta:
		return fmt.Sprintf("%s %s", c.Kind, deref(c.Delta))
	case domain.StrikeDeltaRange:
		return fmt.Sprintf("%s [%s, %s]", c.Kind, deref(c.DeltaLow), deref(c.DeltaHigh))
	case domain.StrikeStraddleWidth:
		return fmt.Sprintf("%s x%s", c.Kind, deref(c.Multiple))
	case domain.StrikePctOfATM, domain.StrikeATMPremiumPct:
		return fmt.Sprintf("%s %s%%", c.Kind, deref(c.Percent))
	}
	return string(c.Kind)
}

func describeReentry(r domain.ReentryRule) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, max %d", r.Mode, r.MaxCount)
	if r.LazyDelay > 0 {
		fmt.Fprintf(&sb, ", delay %s", r.LazyDelay)
	}
	return sb.String()
}

func deref(d *decimal.Decimal) string {
	if d == nil {
		return "?"
	}
	return d.String()
}
