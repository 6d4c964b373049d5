// Package run drives strategy engines against tick feeds. A Registry
// starts one engine per run, owns the consumer goroutine, and exposes
// status, snapshots, and cooperative stop by run handle. Backtests
// drain a bounded source to exhaustion; live sources get a reorder
// buffer and a synthetic clock so the exit time fires even when the
// market goes quiet.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"options-strategy-lab/internal/chain"
	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/engine"
	"options-strategy-lab/internal/feed"
	"options-strategy-lab/internal/observability"
)

// DefaultReorderWindow is how long a live run holds ticks back to
// restore timestamp order before the engine sees them.
const DefaultReorderWindow = 2 * time.Second

var (
	// ErrUnknownRun is returned for handles the registry has never issued.
	ErrUnknownRun = errors.New("unknown run handle")
	// ErrFeedExhausted is reported by Wait when a live source dies
	// while the run is still active. The run moves to ERROR and the
	// last valid snapshot stays queryable.
	ErrFeedExhausted = errors.New("tick feed terminated while run was active")
)

// RunHandle identifies a run within a Registry. It doubles as the
// engine's run ID, so events and persisted rows carry the same value.
type RunHandle string

// Options configures a single run.
type Options struct {
	// RunID for the new run. Empty means a generated UUID. Callers
	// that persist a run row before starting pass their own ID here.
	RunID string
	// Chains resolves option chain snapshots for strike selection.
	// When nil the engine builds chains from the tick stream itself.
	Chains chain.Provider
	// Sink receives lifecycle events as they are produced. Optional.
	Sink engine.EventSink
	// ReorderWindow for live sources. Zero means DefaultReorderWindow.
	ReorderWindow time.Duration
	// HeartbeatInterval for the live synthetic clock. Zero means the
	// feed package default.
	HeartbeatInterval time.Duration
	// Logger for driver and engine diagnostics.
	Logger zerolog.Logger
}

type session struct {
	handle  RunHandle
	eng     *engine.Engine
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	mode    string
	bounded bool
	started time.Time
}

// Registry tracks runs by handle. Finished runs stay queryable until
// the registry itself is dropped.
type Registry struct {
	mu       sync.RWMutex
	sessions map[RunHandle]*session
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[RunHandle]*session),
		logger:   logger.With().Str("component", "run").Logger(),
	}
}

// Start creates an engine for def, opens the source, and begins
// feeding ticks on a background goroutine. The returned handle serves
// all later queries. Cancelling ctx stops the feed; the run then
// settles the same way an exhausted feed does. An explicit Options
// RunID must not collide with a handle the registry already tracks.
func (r *Registry) Start(ctx context.Context, def *domain.StrategyDefinition, source feed.Source, opts Options) (RunHandle, error) {
	if def == nil {
		return "", errors.New("run: strategy definition is required")
	}
	if source == nil {
		return "", errors.New("run: tick source is required")
	}

	handle := RunHandle(opts.RunID)
	if handle == "" {
		handle = RunHandle(uuid.NewString())
	}
	eng, err := engine.New(engine.Options{
		Strategy: def,
		RunID:    string(handle),
		Chains:   opts.Chains,
		Sink:     opts.Sink,
		Logger:   opts.Logger,
	})
	if err != nil {
		return "", err
	}

	src := source
	mode := "backtest"
	if !source.Bounded() {
		mode = "live"
		window := opts.ReorderWindow
		if window <= 0 {
			window = DefaultReorderWindow
		}
		mark := exitMark(def, time.Now().UTC())
		src = feed.NewHeartbeat(
			feed.NewReorderBuffer(src, window, opts.Logger),
			opts.HeartbeatInterval,
			[]time.Time{mark},
			opts.Logger,
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ticks, err := src.Ticks(runCtx)
	if err != nil {
		cancel()
		return "", fmt.Errorf("open tick source: %w", err)
	}

	s := &session{
		handle:  handle,
		eng:     eng,
		cancel:  cancel,
		done:    make(chan struct{}),
		mode:    mode,
		bounded: source.Bounded(),
		started: time.Now(),
	}

	r.mu.Lock()
	if _, exists := r.sessions[handle]; exists {
		r.mu.Unlock()
		cancel()
		return "", fmt.Errorf("run: handle %s already in use", handle)
	}
	r.sessions[handle] = s
	r.mu.Unlock()

	observability.RecordRunStarted()
	r.logger.Info().
		Str("run_id", string(handle)).
		Str("strategy", def.Name).
		Str("mode", mode).
		Msg("run started")

	go r.consume(s, ticks)
	return handle, nil
}

// Stop requests a manual shutdown: open positions close at their held
// marks and the run finishes. Blocks until the feed goroutine exits or
// ctx expires.
func (r *Registry) Stop(ctx context.Context, handle RunHandle) error {
	s, err := r.get(handle)
	if err != nil {
		return err
	}
	s.eng.Shutdown()
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the run's current lifecycle status.
func (r *Registry) Status(handle RunHandle) (domain.RunStatus, error) {
	s, err := r.get(handle)
	if err != nil {
		return "", err
	}
	return s.eng.Status(), nil
}

// Snapshot returns a point-in-time copy of the run's state.
func (r *Registry) Snapshot(handle RunHandle) (*domain.RunSnapshot, error) {
	s, err := r.get(handle)
	if err != nil {
		return nil, err
	}
	return s.eng.Snapshot(), nil
}

// Events returns a copy of the run's lifecycle event log so far.
func (r *Registry) Events(handle RunHandle) ([]domain.LifecycleEvent, error) {
	s, err := r.get(handle)
	if err != nil {
		return nil, err
	}
	return s.eng.Events(), nil
}

// Wait blocks until the run's feed goroutine exits. Returns nil for
// runs that settled normally (exit time, square-off, exhausted
// backtest, manual stop), the engine's error for clock violations, or
// ErrFeedExhausted when a live source died mid-run.
func (r *Registry) Wait(handle RunHandle) error {
	s, err := r.get(handle)
	if err != nil {
		return err
	}
	<-s.done
	return s.err
}

func (r *Registry) get(handle RunHandle) (*session, error) {
	r.mu.RLock()
	s, ok := r.sessions[handle]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, handle)
	}
	return s, nil
}

// consume feeds ticks to the engine until the channel closes, then
// classifies how the run ended. The channel is always drained so the
// producer side can wind down.
func (r *Registry) consume(s *session, ticks <-chan *domain.Tick) {
	defer close(s.done)
	defer s.cancel()

	var fatal error
	for tick := range ticks {
		err := s.eng.ProcessTick(tick)
		switch {
		case err == nil:
			observability.UpdateLiveQueueDepth(len(ticks))
		case errors.Is(err, engine.ErrNotRunning):
			s.cancel()
		default:
			fatal = err
			s.cancel()
		}
	}

	switch {
	case fatal != nil:
		s.err = fatal
	case s.eng.Status().Terminal():
		// Settled by exit time, square-off, or Stop.
	case s.bounded:
		s.eng.FinishExhausted()
	default:
		s.err = ErrFeedExhausted
		s.eng.Fail(ErrFeedExhausted)
	}

	status := s.eng.Status()
	elapsed := time.Since(s.started).Seconds()
	observability.RecordRunFinished(s.mode, status.String(), elapsed)
	r.logger.Info().
		Str("run_id", string(s.handle)).
		Str("mode", s.mode).
		Str("status", status.String()).
		Float64("elapsed_s", elapsed).
		Msg("run finished")
}

// exitMark is the wall-clock instant the synthetic clock must cover so
// a quiet market still reaches session exit. Mirrors the engine's exit
// anchor: intraday exits the current day, positional exits on the
// earliest leg expiry.
func exitMark(def *domain.StrategyDefinition, now time.Time) time.Time {
	exitDay := now
	if def.Kind == domain.KindPositional {
		var earliest time.Time
		for i := range def.Legs {
			exp := domain.ResolveExpiry(def.Legs[i].Expiry, now)
			if earliest.IsZero() || exp.Before(earliest) {
				earliest = exp
			}
		}
		if !earliest.IsZero() {
			exitDay = time.Date(earliest.Year(), earliest.Month(), earliest.Day(),
				0, 0, 0, 0, now.Location())
		}
	}
	return def.ExitTime.On(exitDay)
}
