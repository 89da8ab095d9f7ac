package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-token-scout/internal/dispatch"
	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/health"
	"solana-token-scout/internal/ingest"
	"solana-token-scout/internal/intake"
	"solana-token-scout/internal/maintenance"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/observability"
	"solana-token-scout/internal/ratelimit"
	"solana-token-scout/internal/reanalyze"
	"solana-token-scout/internal/scoring"
	"solana-token-scout/internal/solana"
	"solana-token-scout/internal/storage"
	chstore "solana-token-scout/internal/storage/clickhouse"
	"solana-token-scout/internal/storage/memory"
	"solana-token-scout/internal/storage/migrations"
	pgstore "solana-token-scout/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	tokens    storage.TokenStore
	snapshots storage.SnapshotStore
	records   storage.DispatchStore
	kv        storage.KVStore
	archive   storage.SnapshotArchive // nil unless ClickHouse is configured
}

// Scout holds all components of the discovery-to-dispatch service.
type Scout struct {
	stores   *allStores
	registry *health.Registry
	gate     *market.Gate
	metrics  *observability.Metrics
	logger   *log.Logger

	wsSource     *ingest.WSSource
	wsStats      func() (messagesSeen, reconnects, lastMessageMs int64)
	poller       *ingest.Poller
	intake       *intake.Worker
	reanalyzer   *reanalyze.Scheduler
	secondChance *reanalyze.SecondChance
	sweeper      *maintenance.Sweeper
	dispatcher   *dispatch.Scheduler
	targets      []dispatch.Target

	startedAt time.Time
}

func main() {
	// Load .env file if exists; real env vars win.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	fallbackRPCs := flag.String("fallback-rpc-endpoints", os.Getenv("SOLANA_FALLBACK_RPC_ENDPOINTS"), "Comma-separated fallback RPC endpoints for signature lookups")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the snapshot archive (optional)")
	birdeyeKey := flag.String("birdeye-api-key", os.Getenv("BIRDEYE_API_KEY"), "Birdeye API key (optional)")
	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token (empty disables dispatch)")
	telegramChannels := flag.String("telegram-channels", os.Getenv("TELEGRAM_CHANNELS"), "Comma-separated Telegram channel IDs")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for /health, /metrics and /status")

	flag.Parse()

	logger := log.New(os.Stdout, "[scout] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	channels, err := parseChannels(*telegramChannels)
	if err != nil {
		logger.Fatalf("Invalid --telegram-channels: %v", err)
	}
	if *telegramToken != "" && len(channels) == 0 {
		logger.Fatal("--telegram-channels is required when --telegram-token is set")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Work claimed by a previous process that died mid-analysis would
	// otherwise be stuck in analyzing forever.
	if requeued, err := stores.tokens.RequeueAnalyzing(ctx); err != nil {
		logger.Fatalf("Failed to requeue interrupted work: %v", err)
	} else if requeued > 0 {
		logger.Printf("Requeued %d tokens interrupted mid-analysis", requeued)
	}

	scout, wsClose, err := buildScout(ctx, stores, logger, scoutConfig{
		rpcEndpoint:   *rpcEndpoint,
		fallbackRPCs:  splitList(*fallbackRPCs),
		wsEndpoint:    *wsEndpoint,
		birdeyeKey:    *birdeyeKey,
		telegramToken: *telegramToken,
		channels:      channels,
	})
	if err != nil {
		logger.Fatalf("Failed to build service: %v", err)
	}
	defer wsClose()

	scout.startHTTPServer(*httpAddr)

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	scout.Run(ctx)
	close(done)
	logger.Println("Shutdown complete")
}

type scoutConfig struct {
	rpcEndpoint   string
	fallbackRPCs  []string
	wsEndpoint    string
	birdeyeKey    string
	telegramToken string
	channels      []int64
}

// createStores builds the storage layer and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		return &allStores{
			tokens:    memory.NewTokenStore(),
			snapshots: memory.NewSnapshotStore(),
			records:   memory.NewDispatchStore(),
			kv:        memory.NewKVStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		tokens:    pgstore.NewTokenStore(pool),
		snapshots: pgstore.NewSnapshotStore(pool),
		records:   pgstore.NewDispatchStore(pool),
		kv:        pgstore.NewKVStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.archive = chstore.NewSnapshotArchiveStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// buildScout wires every component together.
func buildScout(ctx context.Context, stores *allStores, logger *log.Logger, cfg scoutConfig) (*Scout, func(), error) {
	metrics := observability.NewMetrics("")
	registry := health.NewRegistry(health.DefaultConfig(), log.New(os.Stdout, "[health] ", log.LstdFlags))
	limiter := ratelimit.NewProviderLimiter()
	gate := market.NewGate(limiter, registry).WithMetrics(metrics)

	// Provider clients.
	dexscreener := market.NewDexScreenerClient(gate)
	gecko := market.NewGeckoClient(gate)
	jupiter := market.NewJupiterClient(gate)
	risk := market.NewRiskClient(gate)

	providers := []market.SnapshotProvider{dexscreener}
	if cfg.birdeyeKey != "" {
		providers = append(providers, market.NewBirdeyeClient(cfg.birdeyeKey, gate))
	}
	providers = append(providers, gecko)
	fetcher := market.NewFailoverFetcher(nil, providers...)

	rpc := solana.NewHTTPClient(cfg.rpcEndpoint)
	facts := market.NewFactsClient(rpc, gate)
	enricher := market.NewEnricher(fetcher, facts, risk, nil)

	// Ingestion.
	admitter := ingest.NewAdmitter(stores.tokens, metrics, nil)

	rpcProviders := []ingest.RPCProvider{{Name: "helius", Client: rpc}}
	for i, endpoint := range cfg.fallbackRPCs {
		rpcProviders = append(rpcProviders, ingest.RPCProvider{
			Name:   fmt.Sprintf("rpc-fallback-%d", i+1),
			Client: solana.NewHTTPClient(endpoint),
		})
	}
	resolver := ingest.NewResolver(gate, nil, rpcProviders...)

	wsClient, err := solana.NewWSClient(ctx, cfg.wsEndpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create websocket client: %w", err)
	}
	wsSource := ingest.NewWSSource(wsClient, resolver, admitter, nil)

	poller := ingest.NewPoller(admitter, nil,
		ingest.FeedSource{Source: domain.SourceDexScreener, Fetch: dexscreener.LatestProfiles},
		ingest.FeedSource{Source: domain.SourceDexScreener, Fetch: dexscreener.LatestBoosts},
		ingest.FeedSource{Source: domain.SourceGeckoTerminal, Fetch: gecko.NewPools},
		ingest.FeedSource{Source: domain.SourceJupiter, Fetch: jupiter.RecentTokens},
	)

	// Processing.
	scoreCfg := scoring.DefaultConfig()
	intakeWorker := intake.NewWorker(stores.tokens, stores.snapshots, stores.archive, enricher, scoreCfg, metrics, nil)
	reanalyzer := reanalyze.NewScheduler(stores.tokens, stores.snapshots, stores.archive, enricher, scoreCfg, metrics, nil)
	secondChance := reanalyze.NewSecondChance(stores.tokens, enricher, scoreCfg.HatchingLiquidityMin, nil)
	sweeper := maintenance.NewSweeper(stores.tokens, stores.snapshots, stores.kv, nil)

	// Dispatch.
	var dispatcher *dispatch.Scheduler
	var targets []dispatch.Target
	if cfg.telegramToken != "" {
		notifier := dispatch.NewTelegramNotifier(cfg.telegramToken)
		builder := dispatch.NewBuilder(stores.tokens, stores.snapshots, gate)
		dispatcher = dispatch.NewScheduler(builder, notifier, stores.records, stores.tokens, metrics, nil)
		for _, channel := range cfg.channels {
			for _, segment := range dispatch.DefaultSegments {
				targets = append(targets, dispatch.Target{ChannelID: channel, Segment: segment})
			}
		}
	}

	scout := &Scout{
		stores:       stores,
		registry:     registry,
		gate:         gate,
		metrics:      metrics,
		logger:       logger,
		wsSource:     wsSource,
		wsStats:      wsClient.Stats,
		poller:       poller,
		intake:       intakeWorker,
		reanalyzer:   reanalyzer,
		secondChance: secondChance,
		sweeper:      sweeper,
		dispatcher:   dispatcher,
		targets:      targets,
		startedAt:    time.Now(),
	}
	return scout, func() { wsClient.Close() }, nil
}

// Run starts every background worker and blocks until the context ends.
func (s *Scout) Run(ctx context.Context) {
	var wg sync.WaitGroup

	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && err != context.Canceled {
				s.logger.Printf("%s stopped: %v", name, err)
			}
		}()
	}

	run("health-decay", s.registry.Run)
	run("ws-source", s.wsSource.Run)
	run("poller", s.poller.Run)
	run("intake", s.intake.Run)
	run("reanalyze", s.reanalyzer.Run)
	run("second-chance", s.secondChance.Run)
	run("maintenance", s.sweeper.Run)
	run("metrics-sync", s.syncMetrics)

	if s.dispatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.dispatcher.Run(ctx, s.targets)
		}()
	}

	s.logger.Println("All workers started")
	wg.Wait()
}

// syncMetrics refreshes the counters and gauges derived from shared state.
func (s *Scout) syncMetrics(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastMessages, lastReconnects int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.metrics.UptimeSeconds.Add(30)
			s.metrics.SetLiteMode(s.registry.LiteMode())

			messages, reconnects, _ := s.wsStats()
			s.metrics.StreamMessages.Add(float64(messages - lastMessages))
			s.metrics.StreamReconnects.Add(float64(reconnects - lastReconnects))
			lastMessages, lastReconnects = messages, reconnects
			for _, stat := range s.registry.Stats() {
				s.metrics.SetCircuitOpen(stat.Provider, stat.Circuit == health.CircuitOpen)
			}

			byStatus, err := s.stores.tokens.CountByStatus(ctx)
			if err != nil {
				continue
			}
			byBucket, err := s.stores.tokens.CountByBucket(ctx)
			if err != nil {
				continue
			}
			statusCounts := make(map[string]int64, len(byStatus))
			for k, v := range byStatus {
				statusCounts[string(k)] = v
			}
			bucketCounts := make(map[string]int64, len(byBucket))
			for k, v := range byBucket {
				bucketCounts[string(k)] = v
			}
			s.metrics.SetQueueDepths(statusCounts, bucketCounts)
		}
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Scout) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("HTTP server error: %v", err)
		}
	}()
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string                  `json:"status"`
	Uptime      string                  `json:"uptime"`
	LiteMode    bool                    `json:"lite_mode"`
	IntakeBatch int                     `json:"intake_batch_size"`
	Providers   []health.ProviderStat   `json:"providers"`
	ByStatus    map[domain.Status]int64 `json:"tokens_by_status"`
	ByBucket    map[domain.Bucket]int64 `json:"tokens_by_bucket"`
	Backoffs    []dispatch.BackoffState `json:"dispatch_backoffs,omitempty"`
}

// handleStatus returns the diagnostics view as JSON.
func (s *Scout) handleStatus(w http.ResponseWriter, r *http.Request) {
	byStatus, err := s.stores.tokens.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	byBucket, err := s.stores.tokens.CountByBucket(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.startedAt).String(),
		LiteMode:    s.registry.LiteMode(),
		IntakeBatch: s.intake.BatchSize(),
		Providers:   s.registry.Stats(),
		ByStatus:    byStatus,
		ByBucket:    byBucket,
	}
	if s.dispatcher != nil {
		resp.Backoffs = s.dispatcher.BackoffStates()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func parseChannels(raw string) ([]int64, error) {
	var channels []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("channel id %q: %w", part, err)
		}
		channels = append(channels, id)
	}
	return channels, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
