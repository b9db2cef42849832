package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/config"
	"cryptobasis/internal/domain"
	"cryptobasis/internal/engine"
	"cryptobasis/internal/ingest"
	"cryptobasis/internal/inventory"
	"cryptobasis/internal/pricing"
	"cryptobasis/internal/reporting"
	"cryptobasis/internal/storage"
	chstore "cryptobasis/internal/storage/clickhouse"
	"cryptobasis/internal/storage/migrations"
	pgstore "cryptobasis/internal/storage/postgres"
)

func main() {
	// Parse flags
	year := flag.Int("year", 0, "Tax year to compute (required)")
	txFile := flag.String("transactions", "", "Transaction CSV file (alternative to -postgres-dsn)")
	carryShort := flag.String("carryover-short", "0", "Prior-year short-term loss carryforward (USD)")
	carryLong := flag.String("carryover-long", "0", "Prior-year long-term loss carryforward (USD)")
	outputDir := flag.String("output-dir", "out", "Output directory for report files")
	persist := flag.Bool("persist", false, "Persist results to configured databases")
	verbose := flag.Bool("verbose", false, "Verbose engine logging")
	flag.Parse()

	logger := log.New(os.Stderr, "[engine] ", log.LstdFlags)

	if *year == 0 {
		logger.Fatal("-year is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *txFile == "" && cfg.PostgresDSN == "" {
		logger.Fatal("either -transactions or CBX_POSTGRES_DSN must be set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		pool, err = pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("apply postgres migrations: %v", err)
		}
	}

	txs, err := loadTransactions(ctx, logger, *txFile, pool, *year)
	if err != nil {
		logger.Fatalf("load transactions: %v", err)
	}
	logger.Printf("loaded %d transactions", len(txs))

	opening, err := inventory.LoadFile(cfg.OpeningInventoryPath)
	if err != nil {
		logger.Fatalf("load opening inventory: %v", err)
	}

	prior, err := loadCarryover(ctx, pool, *year, *carryShort, *carryLong)
	if err != nil {
		logger.Fatalf("load carryover: %v", err)
	}

	var oracle pricing.Oracle
	if cfg.PriceAPIBaseURL != "" {
		oracle = pricing.NewHTTPOracle(cfg.PriceAPIBaseURL)
	}

	eng, err := engine.New(engine.Options{
		Year:           *year,
		Config:         cfg.Compliance,
		PriorCarryover: prior,
		Opening:        opening,
		Oracle:         oracle,
		Verbose:        *verbose,
	})
	if err != nil {
		logger.Fatalf("create engine: %v", err)
	}

	result, err := eng.Run(ctx, txs)
	if err != nil {
		logger.Fatalf("run engine: %v", err)
	}

	if *persist {
		if err := persistResult(ctx, cfg, pool, result); err != nil {
			logger.Fatalf("persist results: %v", err)
		}
		logger.Printf("persisted run %s", result.RunID)
	}

	if err := writeReports(cfg.Compliance.LotMethod, *outputDir, result); err != nil {
		logger.Fatalf("write reports: %v", err)
	}

	fmt.Printf("Run %s complete for %d:\n", result.RunID, result.Year)
	fmt.Printf("  short-term: %s  long-term: %s  net after carryover: %s\n",
		result.ShortTermTotal, result.LongTermTotal, result.NetAfterCarryover)
	fmt.Printf("  reports: %s/REPORT_%d.md, %s/GAINS_%d.csv\n", *outputDir, *year, *outputDir, *year)
	if n := len(result.Diagnostics); n > 0 {
		fmt.Printf("  %d diagnostics (see report)\n", n)
	}
}

// loadTransactions reads the year's rows from the CSV fixture or from
// Postgres. The database path also loads the adjacent years so the
// wash-sale window has replacement data at the year boundaries.
func loadTransactions(ctx context.Context, logger *log.Logger, txFile string, pool *pgstore.Pool, year int) ([]domain.Transaction, error) {
	if txFile != "" {
		txs, diags, err := ingest.LoadFile(txFile)
		if err != nil {
			return nil, err
		}
		for _, d := range diags {
			logger.Printf("skipped row: %s", d.String())
		}
		return txs, nil
	}

	store := pgstore.NewTransactionStore(pool)
	var txs []domain.Transaction
	for _, y := range []int{year - 1, year, year + 1} {
		rows, err := store.GetByYear(ctx, y)
		if err != nil {
			return nil, err
		}
		for _, t := range rows {
			txs = append(txs, *t)
		}
	}
	return txs, nil
}

// loadCarryover prefers the stored carryover of the prior year and falls
// back to the flag values.
func loadCarryover(ctx context.Context, pool *pgstore.Pool, year int, carryShort, carryLong string) (domain.YearCarryover, error) {
	if pool != nil {
		c, err := pgstore.NewCarryoverStore(pool).GetByYear(ctx, year)
		if err == nil {
			return *c, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return domain.YearCarryover{}, err
		}
	}

	short, err := decimal.NewFromString(carryShort)
	if err != nil {
		return domain.YearCarryover{}, fmt.Errorf("parse -carryover-short: %w", err)
	}
	long, err := decimal.NewFromString(carryLong)
	if err != nil {
		return domain.YearCarryover{}, fmt.Errorf("parse -carryover-long: %w", err)
	}
	return domain.YearCarryover{
		Year:                      year,
		ShortTermLossCarryforward: short,
		LongTermLossCarryforward:  long,
	}, nil
}

// persistResult writes the run's outputs to Postgres and, when
// configured, mirrors the gain records into ClickHouse for analytics.
func persistResult(ctx context.Context, cfg config.RunConfig, pool *pgstore.Pool, result *engine.Result) error {
	if pool == nil {
		return fmt.Errorf("persistence requires CBX_POSTGRES_DSN")
	}

	gains := make([]*domain.RealizedGain, len(result.RealizedGains))
	for i := range result.RealizedGains {
		gains[i] = &result.RealizedGains[i]
	}
	if err := pgstore.NewRealizedGainStore(pool).InsertBulk(ctx, result.RunID, gains); err != nil {
		return fmt.Errorf("store realized gains: %w", err)
	}

	adjs := make([]*domain.WashSaleAdjustment, len(result.WashSaleLog))
	for i := range result.WashSaleLog {
		adjs[i] = &result.WashSaleLog[i]
	}
	if err := pgstore.NewWashSaleStore(pool).InsertBulk(ctx, result.RunID, adjs); err != nil {
		return fmt.Errorf("store wash sales: %w", err)
	}

	if err := pgstore.NewCarryoverStore(pool).Upsert(ctx, &result.Carryover); err != nil {
		return fmt.Errorf("store carryover: %w", err)
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()

		analytics := chstore.NewGainAnalyticsStore(conn)
		if err := analytics.InsertBulk(ctx, result.RunID, gains); err != nil {
			return fmt.Errorf("mirror gains to clickhouse: %w", err)
		}
	}

	return nil
}

func writeReports(method domain.LotMethod, outputDir string, result *engine.Result) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	report := reporting.NewGenerator(method).Generate(result)

	mdPath := filepath.Join(outputDir, fmt.Sprintf("REPORT_%d.md", result.Year))
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	csvPath := filepath.Join(outputDir, fmt.Sprintf("GAINS_%d.csv", result.Year))
	if err := os.WriteFile(csvPath, []byte(reporting.RenderGainsCSV(result.RealizedGains)), 0o644); err != nil {
		return fmt.Errorf("write gains csv: %w", err)
	}

	return nil
}
