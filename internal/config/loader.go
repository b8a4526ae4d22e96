package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOKENARB_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// A [[tokens]] table in the file replaces the default universe
		// wholesale; decoding over the defaults would merge fields by index.
		defaultTokens := cfg.Tokens
		cfg.Tokens = nil
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, err
		}
		if !md.IsDefined("tokens") {
			cfg.Tokens = defaultTokens
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOKENARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "TOKENARB_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "TOKENARB_CHAIN_ID")
	setFloat64(&cfg.Chain.FallbackGasGwei, "TOKENARB_CHAIN_FALLBACK_GAS_GWEI")
	setDuration(&cfg.Chain.CallTimeout, "TOKENARB_CHAIN_CALL_TIMEOUT")

	// ── Sources ──
	setBool(&cfg.Sources.DexScreener.Enabled, "TOKENARB_SOURCES_DEXSCREENER_ENABLED")
	setStr(&cfg.Sources.DexScreener.BaseURL, "TOKENARB_SOURCES_DEXSCREENER_BASE_URL")
	setDuration(&cfg.Sources.DexScreener.MinInterval, "TOKENARB_SOURCES_DEXSCREENER_MIN_INTERVAL")
	setDuration(&cfg.Sources.DexScreener.CacheTTL, "TOKENARB_SOURCES_DEXSCREENER_CACHE_TTL")
	setBool(&cfg.Sources.OnChain.Enabled, "TOKENARB_SOURCES_ONCHAIN_ENABLED")
	setDuration(&cfg.Sources.OnChain.MinInterval, "TOKENARB_SOURCES_ONCHAIN_MIN_INTERVAL")
	setInt(&cfg.Sources.QuotaLimit, "TOKENARB_SOURCES_QUOTA_LIMIT")
	setDuration(&cfg.Sources.QuotaWindow, "TOKENARB_SOURCES_QUOTA_WINDOW")

	// ── Aggregator ──
	setDuration(&cfg.Aggregator.SourceTimeout, "TOKENARB_AGGREGATOR_SOURCE_TIMEOUT")
	setDuration(&cfg.Aggregator.MaxQuoteAge, "TOKENARB_AGGREGATOR_MAX_QUOTE_AGE")
	setInt(&cfg.Aggregator.MaxConcurrency, "TOKENARB_AGGREGATOR_MAX_CONCURRENCY")

	// ── Evaluator ──
	setFloat64(&cfg.Evaluator.MinTradeUSD, "TOKENARB_EVALUATOR_MIN_TRADE_USD")
	setFloat64(&cfg.Evaluator.MaxTradeUSD, "TOKENARB_EVALUATOR_MAX_TRADE_USD")
	setFloat64(&cfg.Evaluator.FallbackTradeUSD, "TOKENARB_EVALUATOR_FALLBACK_TRADE_USD")
	setFloat64(&cfg.Evaluator.FeeBps, "TOKENARB_EVALUATOR_FEE_BPS")
	setFloat64(&cfg.Evaluator.MinConfidenceScore, "TOKENARB_EVALUATOR_MIN_CONFIDENCE_SCORE")
	setFloat64(&cfg.Evaluator.MinProfitUSD, "TOKENARB_EVALUATOR_MIN_PROFIT_USD")
	setFloat64(&cfg.Evaluator.ProfitPerExtraHopUSD, "TOKENARB_EVALUATOR_PROFIT_PER_EXTRA_HOP_USD")

	// ── Pathfind ──
	setStringSlice(&cfg.Pathfind.BaseTokens, "TOKENARB_PATHFIND_BASE_TOKENS")
	setStringSlice(&cfg.Pathfind.StartTokens, "TOKENARB_PATHFIND_START_TOKENS")
	setInt(&cfg.Pathfind.MaxHops, "TOKENARB_PATHFIND_MAX_HOPS")
	setInt(&cfg.Pathfind.MaxPaths, "TOKENARB_PATHFIND_MAX_PATHS")

	// ── Ranker ──
	setInt(&cfg.Ranker.TopK, "TOKENARB_RANKER_TOP_K")

	// ── Scanner ──
	setDuration(&cfg.Scanner.Interval, "TOKENARB_SCANNER_INTERVAL")
	setDuration(&cfg.Scanner.FastInterval, "TOKENARB_SCANNER_FAST_INTERVAL")
	setFloat64(&cfg.Scanner.VolatilityThreshold, "TOKENARB_SCANNER_VOLATILITY_THRESHOLD")
	setDuration(&cfg.Scanner.CycleDeadline, "TOKENARB_SCANNER_CYCLE_DEADLINE")
	setInt(&cfg.Scanner.PairConcurrency, "TOKENARB_SCANNER_PAIR_CONCURRENCY")
	setInt(&cfg.Scanner.EvalConcurrency, "TOKENARB_SCANNER_EVAL_CONCURRENCY")
	setInt(&cfg.Scanner.MinPairsAvailable, "TOKENARB_SCANNER_MIN_PAIRS_AVAILABLE")
	setBool(&cfg.Scanner.LeaderLock, "TOKENARB_SCANNER_LEADER_LOCK")

	// ── Simulator ──
	setInt(&cfg.Simulator.Trials, "TOKENARB_SIMULATOR_TRIALS")
	setFloat64(&cfg.Simulator.SuccessProbability, "TOKENARB_SIMULATOR_SUCCESS_PROBABILITY")
	setInt64(&cfg.Simulator.Seed, "TOKENARB_SIMULATOR_SEED")
	setStr(&cfg.Simulator.InputPath, "TOKENARB_SIMULATOR_INPUT_PATH")

	// ── Store ──
	setStr(&cfg.Store.Backend, "TOKENARB_STORE_BACKEND")
	setStr(&cfg.SQLite.Path, "TOKENARB_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TOKENARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TOKENARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOKENARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOKENARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOKENARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOKENARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOKENARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TOKENARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TOKENARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TOKENARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TOKENARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TOKENARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOKENARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOKENARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOKENARB_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "TOKENARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TOKENARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TOKENARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOKENARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOKENARB_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "TOKENARB_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "TOKENARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOKENARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOKENARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOKENARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TOKENARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TOKENARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TOKENARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TOKENARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "TOKENARB_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TOKENARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TOKENARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TOKENARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TOKENARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TOKENARB_MODE")
	setStr(&cfg.LogLevel, "TOKENARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
