// Package main loads recorded tick files into the ClickHouse archive.
// Each argument is a JSONL tick file; rows are sorted into stream
// order and written in batches so backtests can read them back by
// underlying and time window.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"options-strategy-lab/internal/feed"
	chstore "options-strategy-lab/internal/storage/clickhouse"
)

func main() {
	// Parse flags
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (required)")
	underlying := flag.String("underlying", "", "Underlying symbol the files belong to, e.g. NIFTY (required)")
	batchSize := flag.Int("batch-size", 5000, "Rows per insert batch")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	// Setup logger
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	// Validate required flags
	if *clickhouseDSN == "" {
		logger.Fatal().Msg("--clickhouse-dsn is required")
	}
	if *underlying == "" {
		logger.Fatal().Msg("--underlying is required")
	}
	files := flag.Args()
	if len(files) == 0 {
		logger.Fatal().Msg("at least one tick file argument is required")
	}
	if *batchSize <= 0 {
		logger.Fatal().Msg("--batch-size must be positive")
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

	// Ensure the database and schema exist, then connect.
	conn, err := chstore.Bootstrap(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer conn.Close()
	store := chstore.NewTickStore(conn)

	start := time.Now()
	total := 0
	for _, path := range files {
		n, err := ingestFile(ctx, store, *underlying, path, *batchSize)
		if err != nil {
			logger.Fatal().Err(err).Str("file", path).Msg("ingest failed")
		}
		total += n
		logger.Info().Str("file", path).Int("ticks", n).Msg("file ingested")
	}

	logger.Info().
		Int("files", len(files)).
		Int("ticks", total).
		Dur("elapsed", time.Since(start)).
		Msg("ingest complete")
}

// ingestFile loads one JSONL file and writes it in batches.
func ingestFile(ctx context.Context, store *chstore.TickStore, underlying, path string, batchSize int) (int, error) {
	ticks, err := feed.ReadTickFile(path)
	if err != nil {
		return 0, err
	}
	feed.SortTicks(ticks)

	for offset := 0; offset < len(ticks); offset += batchSize {
		if err := ctx.Err(); err != nil {
			return offset, err
		}
		end := offset + batchSize
		if end > len(ticks) {
			end = len(ticks)
		}
		if err := store.InsertBulk(ctx, underlying, ticks[offset:end]); err != nil {
			return offset, err
		}
	}
	return len(ticks), nil
}
