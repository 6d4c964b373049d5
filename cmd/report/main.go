// Package main renders a report for a journaled run from PostgreSQL.
// Markdown goes to stdout by default; -format csv emits the trade
// table instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"options-strategy-lab/internal/reporting"
	pgstore "options-strategy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	runID := flag.String("run", "", "Run id to report on (required)")
	format := flag.String("format", "md", "Output format: md or csv")
	outPath := flag.String("out", "", "Write output to this file instead of stdout")
	flag.Parse()

	ctx := context.Background()

	// Validate flags
	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required")
		os.Exit(1)
	}
	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run is required")
		os.Exit(1)
	}
	if *format != "md" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q (want md or csv)\n", *format)
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	run, err := pgstore.NewRunStore(pool).GetByID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading run %s: %v\n", *runID, err)
		os.Exit(1)
	}
	trades, err := pgstore.NewTradeStore(pool).GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trades: %v\n", err)
		os.Exit(1)
	}
	snapshots, err := pgstore.NewSnapshotStore(pool).GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading snapshots: %v\n", err)
		os.Exit(1)
	}

	report := reporting.NewGenerator().FromRecords(run, trades, snapshots)

	var rendered string
	if *format == "csv" {
		rendered = reporting.RenderCSV(report.Trades)
	} else {
		rendered = reporting.RenderMarkdown(report)
	}

	if *outPath == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*outPath, []byte(rendered), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s\n", *outPath)
}
