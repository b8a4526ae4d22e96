package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/tokenarb/internal/aggregator"
	s3blob "github.com/alanyoungcy/tokenarb/internal/blob/s3"
	"github.com/alanyoungcy/tokenarb/internal/cache/memory"
	"github.com/alanyoungcy/tokenarb/internal/cache/redis"
	"github.com/alanyoungcy/tokenarb/internal/config"
	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/evaluator"
	"github.com/alanyoungcy/tokenarb/internal/notify"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
	"github.com/alanyoungcy/tokenarb/internal/server/handler"
	"github.com/alanyoungcy/tokenarb/internal/source"
	"github.com/alanyoungcy/tokenarb/internal/source/dexscreener"
	"github.com/alanyoungcy/tokenarb/internal/source/onchain"
	"github.com/alanyoungcy/tokenarb/internal/store/postgres"
	"github.com/alanyoungcy/tokenarb/internal/store/sqlite"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Universe *config.Universe
	History  *ranker.History

	// Scan pipeline; nil in modes that do not scan.
	Paths      []domain.Path
	Aggregator *aggregator.Aggregator
	Evaluator  *evaluator.Evaluator
	Ranker     *ranker.Ranker
	Gas        domain.GasOracle

	// Stores; nil when store.backend is "none".
	OpportunityStore domain.OpportunityStore
	SimulationStore  domain.SimulationStore
	ScanCycleStore   domain.ScanCycleStore

	// Redis-backed when redis.enabled, in-process otherwise. LockManager is
	// only available with Redis.
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	PriceBook   domain.PriceBook
	LockManager domain.LockManager

	Archiver domain.ReportArchiver
	Notifier *notify.Notifier

	// HealthChecks probe every external dependency for /api/health.
	HealthChecks map[string]handler.Check
}

// needsScanner returns true for modes that run scan cycles.
func needsScanner(mode string) bool {
	switch mode {
	case "scan", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that releases them in
// reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	universe, err := cfg.BuildUniverse()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps := &Dependencies{
		Universe:     universe,
		History:      ranker.NewHistory(cfg.Ranker.HistorySize),
		HealthChecks: make(map[string]handler.Check),
	}

	closeStores, err := wireStores(ctx, cfg, deps)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStores)

	closeCache, err := wireCache(ctx, cfg, deps)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeCache)

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	var dedup *notify.Dedup
	if cd := cfg.Scanner.NotifyCooldown.Duration; cd > 0 {
		dedup = notify.NewDedup(cd)
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, dedup, logger)

	if needsScanner(mode) {
		closeScan, err := wireScanPipeline(ctx, cfg, deps, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeScan)
	}

	return deps, cleanup, nil
}

func wireStores(ctx context.Context, cfg *config.Config, deps *Dependencies) (func(), error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("wire: postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				pgClient.Close()
				return nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.SimulationStore = postgres.NewSimulationStore(pool)
		deps.ScanCycleStore = postgres.NewScanCycleStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
		return pgClient.Close, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path, cfg.SQLite.BusyTimeout.Duration)
		if err != nil {
			return nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		deps.OpportunityStore = sqlite.NewOpportunityStore(db)
		deps.SimulationStore = sqlite.NewSimulationStore(db)
		deps.ScanCycleStore = sqlite.NewScanCycleStore(db)
		deps.HealthChecks["sqlite"] = db.Ping
		return func() { _ = db.Close() }, nil

	default:
		return func() {}, nil
	}
}

func wireCache(ctx context.Context, cfg *config.Config, deps *Dependencies) (func(), error) {
	if !cfg.Redis.Enabled {
		deps.SignalBus = memory.NewBus()
		deps.RateLimiter = memory.NewRateLimiter(cfg.Sources.QuotaLimit, cfg.Sources.QuotaWindow.Duration)
		deps.PriceBook = memory.NewPriceBook()
		return func() {}, nil
	}

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		Mode:       cfg.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: redis: %w", err)
	}
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Ranker.HistorySize)
	deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Sources.QuotaLimit, cfg.Sources.QuotaWindow.Duration)
	// A book outlives a few missed cycles, then expires.
	deps.PriceBook = redis.NewPriceBook(redisClient, 3*cfg.Scanner.Interval.Duration)
	deps.LockManager = redis.NewLockManager(redisClient, redis.InstanceID())
	deps.HealthChecks["redis"] = redisClient.Ping
	return func() { _ = redisClient.Close() }, nil
}

// wireScanPipeline builds sources, consensus, evaluation and ranking. The
// RPC client, when dialled, serves every on-chain venue and the gas oracle.
func wireScanPipeline(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (func(), error) {
	paths, err := buildPaths(cfg.Pathfind, deps.Universe)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	deps.Paths = paths
	aggCfg, err := aggregatorConfig(cfg.Aggregator)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	evalCfg, err := evaluatorConfig(cfg.Evaluator, cfg.Chain.GasUnitsPerHop)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}

	var quota *source.Quota
	if cfg.Sources.QuotaLimit > 0 {
		quota = &source.Quota{
			Limiter: deps.RateLimiter,
			Limit:   cfg.Sources.QuotaLimit,
			Window:  cfg.Sources.QuotaWindow.Duration,
		}
	}

	var sources []domain.QuoteSource
	if ds := cfg.Sources.DexScreener; ds.Enabled {
		client := dexscreener.New(ds.BaseURL, ds.ChainID, ds.Timeout.Duration, ds.CacheTTL.Duration).
			WithGate(source.NewGate(dexscreener.SourceID, ds.MinInterval.Duration, quota, logger))
		sources = append(sources, client)
	}

	var rpc *ethclient.Client
	if cfg.Chain.RPCURL != "" {
		rpc, err = onchain.Dial(ctx, cfg.Chain.RPCURL)
		switch {
		case err != nil && cfg.Sources.OnChain.Enabled:
			return nil, fmt.Errorf("wire: %w", err)
		case err != nil:
			logger.WarnContext(ctx, "rpc unavailable, gas price falls back to static value",
				slog.String("error", err.Error()),
			)
		default:
			deps.HealthChecks["rpc"] = func(ctx context.Context) error {
				_, err := rpc.ChainID(ctx)
				return err
			}
		}
	}

	if oc := cfg.Sources.OnChain; oc.Enabled && rpc != nil {
		for _, v := range oc.Venues {
			venue := onchain.NewV2Source(v.Name, common.HexToAddress(v.Factory), rpc)
			sources = append(sources, source.NewThrottled(venue, oc.MinInterval.Duration, quota, logger))
		}
	}
	if len(sources) == 0 {
		if rpc != nil {
			rpc.Close()
		}
		return nil, fmt.Errorf("wire: no quote sources configured")
	}

	if rpc != nil {
		deps.Gas = onchain.NewGasOracle(rpc, cfg.Chain.FallbackGasGwei, cfg.Chain.CallTimeout.Duration, logger)
	} else {
		deps.Gas = onchain.NewGasOracle(nil, cfg.Chain.FallbackGasGwei, 0, logger)
	}

	deps.Aggregator = aggregator.New(sources, aggCfg, logger)
	deps.Evaluator = evaluator.New(evalCfg, logger)
	deps.Ranker = ranker.New(cfg.Ranker.TopK)

	return func() {
		if rpc != nil {
			rpc.Close()
		}
	}, nil
}
