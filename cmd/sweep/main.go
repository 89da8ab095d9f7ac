package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"solana-token-scout/internal/maintenance"
	"solana-token-scout/internal/storage/memory"
	"solana-token-scout/internal/storage/migrations"
	pgstore "solana-token-scout/internal/storage/postgres"
)

// sweep runs a single retention pass against the database and exits.
// Useful for cron-style operation and for recovering disk space without
// waiting for the service's daily cycle.
func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout for the sweep")

	flag.Parse()

	logger := log.New(os.Stdout, "[sweep] ", log.LstdFlags)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for a dry run)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var sweeper *maintenance.Sweeper
	if *useMemory {
		sweeper = maintenance.NewSweeper(memory.NewTokenStore(), memory.NewSnapshotStore(), memory.NewKVStore(), logger)
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		sweeper = maintenance.NewSweeper(pgstore.NewTokenStore(pool), pgstore.NewSnapshotStore(pool), pgstore.NewKVStore(pool), logger)
	}

	if last := sweeper.LastRun(ctx); last > 0 {
		logger.Printf("Previous sweep ran at %s", time.UnixMilli(last).UTC().Format(time.RFC3339))
	}

	start := time.Now()
	sweeper.Sweep(ctx)
	logger.Printf("Sweep finished in %s", time.Since(start).Round(time.Millisecond))
}
