// Package main runs a strategy against a bounded tick stream and
// prints the run report. Ticks come from a JSONL file or from the
// ClickHouse archive; results can optionally be journaled to
// PostgreSQL and the whole run can be replay-verified.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"options-strategy-lab/internal/chain"
	"options-strategy-lab/internal/config"
	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/engine"
	"options-strategy-lab/internal/feed"
	"options-strategy-lab/internal/journal"
	"options-strategy-lab/internal/reporting"
	"options-strategy-lab/internal/run"
	chstore "options-strategy-lab/internal/storage/clickhouse"
	"options-strategy-lab/internal/storage/migrations"
	pgstore "options-strategy-lab/internal/storage/postgres"
	"options-strategy-lab/internal/verification"
)

func main() {
	// Parse flags
	strategyPath := flag.String("strategy", "", "Strategy definition JSON file (required)")

	// Tick source: a JSONL file or a ClickHouse archive window
	ticksPath := flag.String("ticks", "", "Tick file (JSONL, one tick per line)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the tick archive")
	underlying := flag.String("underlying", "", "Underlying symbol for archive reads (e.g. NIFTY)")
	fromStr := flag.String("from", "", "Archive window start (RFC3339 or YYYY-MM-DD)")
	toStr := flag.String("to", "", "Archive window end (RFC3339 or YYYY-MM-DD, inclusive)")

	// Strike selection
	chainsPath := flag.String("chains", "", "Chain snapshot file (JSONL); empty builds chains from the ticks")

	// Persistence
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for run persistence")

	// Output
	verify := flag.Bool("verify", false, "Replay the run twice and report any divergence")
	csvPath := flag.String("csv", "", "Write the trade table as CSV to this file")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	logger := newLogger(*verbose)

	// Validate required flags
	if *strategyPath == "" {
		logger.Fatal().Msg("--strategy is required")
	}
	if *ticksPath == "" && *clickhouseDSN == "" {
		logger.Fatal().Msg("--ticks or --clickhouse-dsn is required")
	}
	if *ticksPath != "" && *clickhouseDSN != "" {
		logger.Fatal().Msg("--ticks and --clickhouse-dsn are mutually exclusive")
	}

	// Load and validate the strategy definition. The raw bytes are
	// kept for the persisted run row.
	raw, err := os.ReadFile(*strategyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read strategy file")
	}
	def, err := config.Parse(raw)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid strategy definition")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// Load ticks and put them in deterministic stream order.
	ticks, err := loadTicks(ctx, *ticksPath, *clickhouseDSN, *underlying, *fromStr, *toStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("load ticks")
	}
	if len(ticks) == 0 {
		logger.Fatal().Msg("tick source is empty")
	}
	feed.SortTicks(ticks)
	if err := feed.ValidateTickOrdering(ticks); err != nil {
		logger.Fatal().Err(err).Msg("tick stream is not replayable")
	}
	logger.Info().Int("ticks", len(ticks)).Str("strategy", def.Name).Msg("backtest starting")

	// Chain snapshots, when provided. Otherwise the engine tracks
	// chains from the tick quotes.
	var chains chain.Provider
	if *chainsPath != "" {
		snaps, err := chain.ReadSnapshotFile(*chainsPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load chain snapshots")
		}
		chains = chain.NewMemoryProvider(snaps)
	}

	registry := run.NewRegistry(logger)
	runID := uuid.NewString()
	handle := run.RunHandle(runID)

	// Optional persistence: the run row goes in up front, then a
	// journal follows the event stream.
	var jnl *journal.Journal
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("apply postgres migrations")
		}

		runs := pgstore.NewRunStore(pool)
		now := time.Now().UTC()
		err = runs.Insert(ctx, &domain.RunRecord{
			RunID:     runID,
			Strategy:  def.Name,
			Config:    string(raw),
			Mode:      "backtest",
			Status:    domain.RunInitial,
			StartedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("insert run row")
		}

		jnl = journal.New(journal.Options{
			Runs:      runs,
			Trades:    pgstore.NewTradeStore(pool),
			Snapshots: pgstore.NewSnapshotStore(pool),
			Snapshotter: snapshotterFunc(func() *domain.RunSnapshot {
				snap, err := registry.Snapshot(handle)
				if err != nil {
					return nil
				}
				return snap
			}),
			Logger: logger,
		})
	}

	var sink engine.EventSink
	if jnl != nil {
		sink = jnl
	}

	// Run to exhaustion.
	if _, err := registry.Start(ctx, def, feed.NewSliceSource(ticks), run.Options{
		RunID:  runID,
		Chains: chains,
		Sink:   sink,
		Logger: logger,
	}); err != nil {
		logger.Fatal().Err(err).Msg("start run")
	}
	runErr := registry.Wait(handle)

	// Flush journaled rows before reading anything back.
	if jnl != nil {
		jnl.Close()
	}

	status, _ := registry.Status(handle)
	snap, err := registry.Snapshot(handle)
	if err != nil {
		logger.Fatal().Err(err).Msg("read final snapshot")
	}
	events, err := registry.Events(handle)
	if err != nil {
		logger.Fatal().Err(err).Msg("read event log")
	}

	report := reporting.NewGenerator().Generate(snap, events)
	report.Mode = "backtest"
	fmt.Print(reporting.RenderMarkdown(report))

	if *csvPath != "" {
		if err := os.WriteFile(*csvPath, []byte(reporting.RenderCSV(report.Trades)), 0644); err != nil {
			logger.Fatal().Err(err).Msg("write csv")
		}
		logger.Info().Str("path", *csvPath).Int("trades", len(report.Trades)).Msg("trade table written")
	}

	if *verify {
		verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			Chains: chains,
			Logger: logger,
		})
		vr, err := verifier.VerifyRun(ctx, def, ticks)
		if err != nil {
			logger.Fatal().Err(err).Msg("replay verification failed to run")
		}
		fmt.Println(vr.Summary())
		if !vr.Match() {
			os.Exit(1)
		}
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("run failed")
		os.Exit(1)
	}
	if status == domain.RunError {
		os.Exit(1)
	}
}

// snapshotterFunc adapts a lookup closure to journal.Snapshotter.
type snapshotterFunc func() *domain.RunSnapshot

func (f snapshotterFunc) Snapshot() *domain.RunSnapshot { return f() }

// newLogger builds the root logger. Reports go to stdout, logs to stderr.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// loadTicks reads the tick stream from whichever source was configured.
func loadTicks(ctx context.Context, ticksPath, dsn, underlying, fromStr, toStr string) ([]*domain.Tick, error) {
	if ticksPath != "" {
		return feed.ReadTickFile(ticksPath)
	}

	if underlying == "" {
		return nil, errors.New("--underlying is required with --clickhouse-dsn")
	}
	from, err := parseTimeFlag(fromStr, false)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	to, err := parseTimeFlag(toStr, true)
	if err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("--to %s is not after --from %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	conn, err := chstore.Bootstrap(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	return chstore.NewTickStore(conn).GetByUnderlyingRange(ctx, underlying, from, to)
}

// parseTimeFlag accepts RFC3339 instants and bare dates. A bare end
// date covers its whole day.
func parseTimeFlag(value string, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q (want RFC3339 or YYYY-MM-DD)", value)
	}
	t = t.UTC()
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}
