// Package main runs a strategy against a live websocket tick feed.
// The run is journaled to PostgreSQL when a DSN is given, metrics are
// served over HTTP, and SIGINT/SIGTERM trigger a cooperative stop that
// closes open positions at their held marks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
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
	"options-strategy-lab/internal/observability"
	"options-strategy-lab/internal/run"
	"options-strategy-lab/internal/storage/migrations"
	pgstore "options-strategy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	strategyPath := flag.String("strategy", "", "Strategy definition JSON file (required)")
	wsURL := flag.String("ws-url", "", "Quote server websocket URL (required)")
	contracts := flag.String("contracts", "", "Comma-separated contract ids to subscribe; empty subscribes the whole underlying")
	chainsPath := flag.String("chains", "", "Chain snapshot file (JSONL); empty builds chains from the ticks")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for run persistence")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	reorderWindow := flag.Duration("reorder-window", run.DefaultReorderWindow, "How long to hold ticks back to restore timestamp order")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	// Setup logger
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	// Validate required flags
	if *strategyPath == "" {
		logger.Fatal().Msg("--strategy is required")
	}
	if *wsURL == "" {
		logger.Fatal().Msg("--ws-url is required")
	}

	raw, err := os.ReadFile(*strategyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read strategy file")
	}
	def, err := config.Parse(raw)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid strategy definition")
	}

	var chains chain.Provider
	if *chainsPath != "" {
		snaps, err := chain.ReadSnapshotFile(*chainsPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load chain snapshots")
		}
		chains = chain.NewMemoryProvider(snaps)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := run.NewRegistry(logger)
	runID := uuid.NewString()
	handle := run.RunHandle(runID)

	// Optional persistence
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
			Mode:      "live",
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

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go serveHTTP(*metricsAddr, registry, handle, logger)
	}

	// Live feed, subscribed to the strategy's underlying.
	sub := feed.Subscription{
		Underlying: def.Underlying,
		Contracts:  splitContracts(*contracts),
	}
	source := feed.NewWSSource(*wsURL, sub, nil, logger)

	if _, err := registry.Start(ctx, def, source, run.Options{
		RunID:         runID,
		Chains:        chains,
		Sink:          sink,
		ReorderWindow: *reorderWindow,
		Logger:        logger,
	}); err != nil {
		logger.Fatal().Err(err).Msg("start run")
	}
	logger.Info().
		Str("run_id", runID).
		Str("strategy", def.Name).
		Str("ws_url", *wsURL).
		Msg("live run started")

	// Handle shutdown signals: first one stops the run cooperatively,
	// a second one forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("stopping run, open positions close at held marks")

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := registry.Stop(stopCtx, handle); err != nil {
			logger.Error().Err(err).Msg("cooperative stop failed")
			cancel()
		}

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
		}
	}()

	runErr := registry.Wait(handle)
	if jnl != nil {
		jnl.Close()
	}

	status, _ := registry.Status(handle)
	if snap, err := registry.Snapshot(handle); err == nil {
		logger.Info().
			Str("run_id", runID).
			Str("status", status.String()).
			Int("positions", len(snap.Positions)).
			Str("realized_pnl", snap.RealizedPnL.String()).
			Str("unrealized_pnl", snap.UnrealizedPnL.String()).
			Str("total_pnl", snap.TotalPnL.String()).
			Msg("run settled")
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

// splitContracts parses the comma-separated contract list.
func splitContracts(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// statusResponse is the JSON response for the /status endpoint.
type statusResponse struct {
	RunID         string    `json:"run_id"`
	Strategy      string    `json:"strategy"`
	Status        string    `json:"status"`
	Clock         time.Time `json:"clock"`
	OpenPositions int       `json:"open_positions"`
	RealizedPnL   string    `json:"realized_pnl"`
	UnrealizedPnL string    `json:"unrealized_pnl"`
	TotalPnL      string    `json:"total_pnl"`
}

// serveHTTP exposes health, metrics, and run status.
func serveHTTP(addr string, registry *run.Registry, handle run.RunHandle, logger zerolog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		snap, err := registry.Snapshot(handle)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		resp := statusResponse{
			RunID:         snap.RunID,
			Strategy:      snap.Strategy,
			Status:        snap.Status.String(),
			Clock:         snap.Clock,
			OpenPositions: len(snap.OpenPositions()),
			RealizedPnL:   snap.RealizedPnL.String(),
			UnrealizedPnL: snap.UnrealizedPnL.String(),
			TotalPnL:      snap.TotalPnL.String(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
