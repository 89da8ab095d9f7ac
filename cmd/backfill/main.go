package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/health"
	"solana-token-scout/internal/ingest"
	"solana-token-scout/internal/intake"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/observability"
	"solana-token-scout/internal/ratelimit"
	"solana-token-scout/internal/scoring"
	"solana-token-scout/internal/solana"
	"solana-token-scout/internal/storage"
	"solana-token-scout/internal/storage/memory"
	"solana-token-scout/internal/storage/migrations"
	pgstore "solana-token-scout/internal/storage/postgres"
)

// backfill seeds the store without running the daemon: one sweep over the
// aggregator feeds, then intake cycles until the discovered queue drains.
func main() {
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	birdeyeKey := flag.String("birdeye-api-key", os.Getenv("BIRDEYE_API_KEY"), "Birdeye API key (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	timeout := flag.Duration("timeout", 15*time.Minute, "Overall timeout for the backfill")

	flag.Parse()

	logger := log.New(os.Stdout, "[backfill] ", log.LstdFlags)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for a dry run)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var tokens storage.TokenStore
	var snapshots storage.SnapshotStore
	if *useMemory {
		tokens = memory.NewTokenStore()
		snapshots = memory.NewSnapshotStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		tokens = pgstore.NewTokenStore(pool)
		snapshots = pgstore.NewSnapshotStore(pool)
	}

	if requeued, err := tokens.RequeueAnalyzing(ctx); err != nil {
		logger.Fatalf("Failed to requeue interrupted work: %v", err)
	} else if requeued > 0 {
		logger.Printf("Requeued %d tokens interrupted mid-analysis", requeued)
	}

	registry := health.NewRegistry(health.DefaultConfig(), nil)
	gate := market.NewGate(ratelimit.NewProviderLimiter(), registry)

	dexscreener := market.NewDexScreenerClient(gate)
	gecko := market.NewGeckoClient(gate)
	jupiter := market.NewJupiterClient(gate)

	providers := []market.SnapshotProvider{dexscreener}
	if *birdeyeKey != "" {
		providers = append(providers, market.NewBirdeyeClient(*birdeyeKey, gate))
	}
	providers = append(providers, gecko)
	fetcher := market.NewFailoverFetcher(nil, providers...)

	rpc := solana.NewHTTPClient(*rpcEndpoint)
	enricher := market.NewEnricher(fetcher, market.NewFactsClient(rpc, gate), market.NewRiskClient(gate), nil)

	admitter := ingest.NewAdmitter(tokens, observability.NewMetrics(""), logger)
	poller := ingest.NewPoller(admitter, logger,
		ingest.FeedSource{Source: domain.SourceDexScreener, Fetch: dexscreener.LatestProfiles},
		ingest.FeedSource{Source: domain.SourceDexScreener, Fetch: dexscreener.LatestBoosts},
		ingest.FeedSource{Source: domain.SourceGeckoTerminal, Fetch: gecko.NewPools},
		ingest.FeedSource{Source: domain.SourceJupiter, Fetch: jupiter.RecentTokens},
	)
	worker := intake.NewWorker(tokens, snapshots, nil, enricher, scoring.DefaultConfig(), nil, logger)

	logger.Println("Sweeping aggregator feeds...")
	poller.Sweep(ctx)

	// Drain the discovered queue. Cycles claim nothing once the grace
	// window empties, so check the queue directly.
	logger.Println("Draining intake queue...")
	for ctx.Err() == nil {
		worker.Cycle(ctx)

		pending, err := tokens.ListByStatus(ctx, domain.StatusDiscovered, 1)
		if err != nil {
			logger.Fatalf("Failed to check queue: %v", err)
		}
		if len(pending) == 0 {
			break
		}
		time.Sleep(2 * time.Second)
	}

	byStatus, err := tokens.CountByStatus(ctx)
	if err == nil {
		logger.Printf("Backfill complete: %d analyzed, %d rejected, %d pending",
			byStatus[domain.StatusAnalyzed], byStatus[domain.StatusRejected],
			byStatus[domain.StatusDiscovered])
	}
}
