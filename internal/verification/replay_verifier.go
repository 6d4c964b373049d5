package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"options-strategy-lab/internal/chain"
	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/engine"
)

// ReplayVerifier executes a strategy twice over a fixed tick sequence
// and compares the executions. Any divergence means hidden state or
// nondeterminism leaked into the engine.
type ReplayVerifier struct {
	chains chain.Provider
	logger zerolog.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	// Chains resolves strike selection, shared by both executions.
	// Optional; when nil each engine builds chains from the ticks.
	Chains chain.Provider
	Logger zerolog.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		chains: opts.Chains,
		logger: opts.Logger,
	}
}

// VerifyRun runs the strategy twice over ticks and compares event logs
// and final snapshots. Ticks must already be in stream order.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, def *domain.StrategyDefinition, ticks []*domain.Tick) (*Report, error) {
	first, err := v.execute(ctx, def, ticks, "verify-a")
	if err != nil {
		return nil, fmt.Errorf("first execution: %w", err)
	}

	second, err := v.execute(ctx, def, ticks, "verify-b")
	if err != nil {
		return nil, fmt.Errorf("second execution: %w", err)
	}

	report := CompareEventLogs(first.events, second.events)
	report.SnapshotDivergences = CompareSnapshots(first.snapshot, second.snapshot)
	return report, nil
}

type execution struct {
	events   []domain.LifecycleEvent
	snapshot *domain.RunSnapshot
}

func (v *ReplayVerifier) execute(ctx context.Context, def *domain.StrategyDefinition, ticks []*domain.Tick, runID string) (*execution, error) {
	eng, err := engine.New(engine.Options{
		Strategy: def,
		RunID:    runID,
		Chains:   v.chains,
		Logger:   v.logger,
	})
	if err != nil {
		return nil, err
	}

	for _, tick := range ticks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := eng.ProcessTick(tick); err != nil {
			if errors.Is(err, engine.ErrNotRunning) {
				break
			}
			return nil, err
		}
	}

	if !eng.Status().Terminal() {
		eng.FinishExhausted()
	}

	return &execution{
		events:   eng.Events(),
		snapshot: eng.Snapshot(),
	}, nil
}
