package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"cryptobasis/internal/config"
	"cryptobasis/internal/domain"
	"cryptobasis/internal/engine"
	"cryptobasis/internal/reporting"
	"cryptobasis/internal/storage"
	pgstore "cryptobasis/internal/storage/postgres"
)

// Renders a previously persisted run from Postgres without recomputing it.
func main() {
	runID := flag.String("run-id", "", "Run ID to render (required)")
	year := flag.Int("year", 0, "Tax year of the run (required)")
	outputDir := flag.String("output-dir", "", "Write report files here instead of stdout")
	format := flag.String("format", "markdown", "Output format: markdown or csv")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *runID == "" {
		logger.Fatal("-run-id is required")
	}
	if *year == 0 {
		logger.Fatal("-year is required")
	}
	if *format != "markdown" && *format != "csv" {
		logger.Fatalf("invalid format %q", *format)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal("CBX_POSTGRES_DSN must be set")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	result, err := loadResult(ctx, pool, *runID, *year)
	if err != nil {
		logger.Fatalf("load run %s: %v", *runID, err)
	}

	report := reporting.NewGenerator(cfg.Compliance.LotMethod).Generate(result)

	var rendered string
	switch *format {
	case "markdown":
		rendered = reporting.RenderMarkdown(report)
	case "csv":
		rendered = reporting.RenderGainsCSV(result.RealizedGains)
	}

	if *outputDir == "" {
		fmt.Print(rendered)
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("create output dir: %v", err)
	}
	name := fmt.Sprintf("REPORT_%d.md", *year)
	if *format == "csv" {
		name = fmt.Sprintf("GAINS_%d.csv", *year)
	}
	path := filepath.Join(*outputDir, name)
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		logger.Fatalf("write report: %v", err)
	}
	fmt.Printf("Wrote %s\n", path)
}

// loadResult reconstructs a run's result view from the stored records.
// Totals are recomputed from the per-lot rows; they are derived values,
// not stored ones.
func loadResult(ctx context.Context, pool *pgstore.Pool, runID string, year int) (*engine.Result, error) {
	gains, err := pgstore.NewRealizedGainStore(pool).GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load realized gains: %w", err)
	}
	if len(gains) == 0 {
		return nil, fmt.Errorf("no records for run %s", runID)
	}

	adjs, err := pgstore.NewWashSaleStore(pool).GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load wash sales: %w", err)
	}

	result := &engine.Result{RunID: runID, Year: year}
	for _, g := range gains {
		result.RealizedGains = append(result.RealizedGains, *g)
		adjusted := g.AdjustedGain()
		if g.HoldingTerm == domain.TermLong {
			result.LongTermTotal = result.LongTermTotal.Add(adjusted)
		} else {
			result.ShortTermTotal = result.ShortTermTotal.Add(adjusted)
		}
		if g.Term == domain.TermCollectible {
			result.CollectibleTotal = result.CollectibleTotal.Add(adjusted)
		}
	}
	for _, a := range adjs {
		result.WashSaleLog = append(result.WashSaleLog, *a)
	}

	carry, err := pgstore.NewCarryoverStore(pool).GetByYear(ctx, year+1)
	switch {
	case err == nil:
		result.Carryover = *carry
		result.NetAfterCarryover = result.ShortTermTotal.Add(result.LongTermTotal)
	case errors.Is(err, storage.ErrNotFound):
		result.NetAfterCarryover = result.ShortTermTotal.Add(result.LongTermTotal)
	default:
		return nil, fmt.Errorf("load carryover: %w", err)
	}

	return result, nil
}
