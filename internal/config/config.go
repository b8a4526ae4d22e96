// Package config defines the top-level configuration for the arbitrage scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TOKENARB_* environment variables.
type Config struct {
	Chain      ChainConfig      `toml:"chain"`
	Tokens     []TokenConfig    `toml:"tokens"`
	Sources    SourcesConfig    `toml:"sources"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Evaluator  EvaluatorConfig  `toml:"evaluator"`
	Pathfind   PathfindConfig   `toml:"pathfind"`
	Ranker     RankerConfig     `toml:"ranker"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Simulator  SimulatorConfig  `toml:"simulator"`
	Store      StoreConfig      `toml:"store"`
	Postgres   PostgresConfig   `toml:"postgres"`
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint and gas parameters of the target chain.
type ChainConfig struct {
	RPCURL         string `toml:"rpc_url"`
	ChainID        int64  `toml:"chain_id"`
	NativeSymbol   string `toml:"native_symbol"`
	USDSymbol      string `toml:"usd_symbol"`
	GasUnitsPerHop uint64 `toml:"gas_units_per_hop"`
	// FallbackGasGwei is used when the RPC gas oracle fails; 0 disables it.
	FallbackGasGwei float64  `toml:"fallback_gas_gwei"`
	CallTimeout     duration `toml:"call_timeout"`
}

// TokenConfig is one entry of the token universe.
type TokenConfig struct {
	Symbol       string  `toml:"symbol"`
	Address      string  `toml:"address"`
	Category     string  `toml:"category"`
	Decimals     uint8   `toml:"decimals"`
	ReferenceUSD float64 `toml:"reference_usd"`
}

// SourcesConfig holds the quote source adapters.
type SourcesConfig struct {
	DexScreener DexScreenerConfig `toml:"dexscreener"`
	OnChain     OnChainConfig     `toml:"onchain"`
	// Quota optionally shares a per-source request budget across scanner
	// instances through Redis.
	QuotaLimit  int      `toml:"quota_limit"`
	QuotaWindow duration `toml:"quota_window"`
}

// DexScreenerConfig configures the HTTP DEX aggregator source.
type DexScreenerConfig struct {
	Enabled     bool     `toml:"enabled"`
	BaseURL     string   `toml:"base_url"`
	ChainID     string   `toml:"chain_id"`
	MinInterval duration `toml:"min_interval"`
	Timeout     duration `toml:"timeout"`
	// CacheTTL shares one token-pairs response across the pairs of a cycle.
	// Keep it under aggregator.max_quote_age or cached quotes go stale.
	CacheTTL duration `toml:"cache_ttl"`
}

// OnChainConfig configures the Uniswap-V2 style reserve readers.
type OnChainConfig struct {
	Enabled     bool          `toml:"enabled"`
	MinInterval duration      `toml:"min_interval"`
	Venues      []VenueConfig `toml:"venues"`
}

// VenueConfig is one V2 fork, identified by its factory contract.
type VenueConfig struct {
	Name    string `toml:"name"`
	Factory string `toml:"factory"`
}

// AggregatorConfig holds consensus-price parameters. Maps are keyed by token
// category (stablecoin, major, other).
type AggregatorConfig struct {
	SourceTimeout  duration           `toml:"source_timeout"`
	MaxQuoteAge    duration           `toml:"max_quote_age"`
	MaxConcurrency int                `toml:"max_concurrency"`
	MinSources     map[string]int     `toml:"min_sources"`
	MaxDeviation   map[string]float64 `toml:"max_deviation"`
	StableBandLow  float64            `toml:"stable_band_low"`
	StableBandHigh float64            `toml:"stable_band_high"`
}

// EvaluatorConfig holds sizing, cost and gating parameters.
type EvaluatorConfig struct {
	MinTradeUSD                 float64            `toml:"min_trade_usd"`
	MaxTradeUSD                 float64            `toml:"max_trade_usd"`
	FallbackTradeUSD            float64            `toml:"fallback_trade_usd"`
	TradeFraction               map[string]float64 `toml:"trade_fraction"`
	FeeBps                      float64            `toml:"fee_bps"`
	FeeBpsByCategory            map[string]float64 `toml:"fee_bps_by_category"`
	UnknownLiquiditySlippageBps float64            `toml:"unknown_liquidity_slippage_bps"`
	ConfidenceFloor             map[string]string  `toml:"confidence_floor"`
	HopPenalty                  float64            `toml:"hop_penalty"`
	MinConfidenceScore          float64            `toml:"min_confidence_score"`
	MinProfitUSD                float64            `toml:"min_profit_usd"`
	ProfitPerExtraHopUSD        float64            `toml:"profit_per_extra_hop_usd"`
}

// PathfindConfig restricts cycle generation.
type PathfindConfig struct {
	BaseTokens  []string `toml:"base_tokens"`
	StartTokens []string `toml:"start_tokens"`
	MinHops     int      `toml:"min_hops"`
	MaxHops     int      `toml:"max_hops"`
	MaxPaths    int      `toml:"max_paths"`
}

// RankerConfig holds ranking parameters.
type RankerConfig struct {
	TopK        int `toml:"top_k"`
	HistorySize int `toml:"history_size"`
}

// ScannerConfig holds scan-cycle scheduling parameters.
type ScannerConfig struct {
	Interval            duration `toml:"interval"`
	FastInterval        duration `toml:"fast_interval"`
	VolatilityThreshold float64  `toml:"volatility_threshold"`
	ReferenceBase       string   `toml:"reference_base"`
	ReferenceQuote      string   `toml:"reference_quote"`
	CycleDeadline       duration `toml:"cycle_deadline"`
	PairConcurrency     int      `toml:"pair_concurrency"`
	EvalConcurrency     int      `toml:"eval_concurrency"`
	MinPairsAvailable   int      `toml:"min_pairs_available"`
	LeaderLock          bool     `toml:"leader_lock"`
	LeaderLockTTL       duration `toml:"leader_lock_ttl"`
	NotifyTimeout       duration `toml:"notify_timeout"`
	NotifyCooldown      duration `toml:"notify_cooldown"`
}

// SimulatorConfig holds back-test parameters.
type SimulatorConfig struct {
	Trials             int     `toml:"trials"`
	SuccessProbability float64 `toml:"success_probability"`
	GasStdDev          float64 `toml:"gas_stddev"`
	ProfitMean         float64 `toml:"profit_mean"`
	ProfitStdDev       float64 `toml:"profit_stddev"`
	TradesPerDay       int     `toml:"trades_per_day"`
	Seed               int64   `toml:"seed"`
	// InputPath is an S3 key of a JSONL opportunity file; empty means the
	// most recent opportunities from the store.
	InputPath    string `toml:"input_path"`
	HistoryLimit int    `toml:"history_limit"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // postgres, sqlite or none
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// SQLiteConfig holds the local database file.
type SQLiteConfig struct {
	Path        string   `toml:"path"`
	BusyTimeout duration `toml:"busy_timeout"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled             bool     `toml:"enabled"`
	Port                int      `toml:"port"`
	CORSOrigins         []string `toml:"cors_origins"`
	APIKey              string   `toml:"api_key"`
	RateLimitPerMin     int      `toml:"rate_limit_per_min"`
	MaxSimulationTrials int      `toml:"max_simulation_trials"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values for BSC.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:          "https://bsc-dataseed.binance.org",
			ChainID:         56,
			NativeSymbol:    "WBNB",
			USDSymbol:       "USDT",
			GasUnitsPerHop:  150_000,
			FallbackGasGwei: 3,
			CallTimeout:     duration{2 * time.Second},
		},
		Tokens: []TokenConfig{
			{Symbol: "WBNB", Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Category: "major", Decimals: 18},
			{Symbol: "USDT", Address: "0x55d398326f99059fF775485246999027B3197955", Category: "stablecoin", Decimals: 18, ReferenceUSD: 1},
			{Symbol: "BUSD", Address: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56", Category: "stablecoin", Decimals: 18, ReferenceUSD: 1},
			{Symbol: "USDC", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Category: "stablecoin", Decimals: 18, ReferenceUSD: 1},
			{Symbol: "ETH", Address: "0x2170Ed0880ac9A755fd29B2688956BD959F933F8", Category: "major", Decimals: 18},
			{Symbol: "BTCB", Address: "0x7130d2A12B9BCbFAe4f2634d864A1Ee1Ce3Ead9c", Category: "major", Decimals: 18},
			{Symbol: "CAKE", Address: "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82", Category: "other", Decimals: 18},
		},
		Sources: SourcesConfig{
			DexScreener: DexScreenerConfig{
				Enabled:     true,
				BaseURL:     "https://api.dexscreener.com",
				ChainID:     "bsc",
				MinInterval: duration{250 * time.Millisecond},
				Timeout:     duration{2 * time.Second},
				CacheTTL:    duration{4 * time.Second},
			},
			OnChain: OnChainConfig{
				Enabled:     true,
				MinInterval: duration{50 * time.Millisecond},
				Venues: []VenueConfig{
					{Name: "pancakeswap", Factory: "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"},
					{Name: "biswap", Factory: "0x858E3312ed3A876947EA49d572A7C42DE08af7EE"},
					{Name: "apeswap", Factory: "0x0841BD0B734E4F5853f0dD8d7Ea041c241fb0Da6"},
				},
			},
			QuotaWindow: duration{time.Second},
		},
		Aggregator: AggregatorConfig{
			SourceTimeout:  duration{2 * time.Second},
			MaxQuoteAge:    duration{5 * time.Second},
			MaxConcurrency: 32,
			MinSources: map[string]int{
				"stablecoin": 2,
				"major":      2,
				"other":      2,
			},
			MaxDeviation: map[string]float64{
				"stablecoin": 0.15,
				"major":      0.20,
				"other":      0.25,
			},
			StableBandLow:  0.95,
			StableBandHigh: 1.05,
		},
		Evaluator: EvaluatorConfig{
			MinTradeUSD:      1_000,
			MaxTradeUSD:      50_000,
			FallbackTradeUSD: 5_000,
			TradeFraction: map[string]float64{
				"stablecoin": 0.05,
				"major":      0.03,
				"other":      0.02,
			},
			FeeBps:                      25,
			FeeBpsByCategory:            map[string]float64{},
			UnknownLiquiditySlippageBps: 10,
			ConfidenceFloor: map[string]string{
				"stablecoin": "medium",
				"major":      "low",
				"other":      "low",
			},
			HopPenalty:           0.10,
			MinConfidenceScore:   0.75,
			MinProfitUSD:         30,
			ProfitPerExtraHopUSD: 10,
		},
		Pathfind: PathfindConfig{
			StartTokens: []string{"USDT", "WBNB"},
			MinHops:     3,
			MaxHops:     4,
			MaxPaths:    500,
		},
		Ranker: RankerConfig{
			TopK:        1,
			HistorySize: 500,
		},
		Scanner: ScannerConfig{
			Interval:            duration{6800 * time.Millisecond},
			FastInterval:        duration{2500 * time.Millisecond},
			VolatilityThreshold: 0.003,
			ReferenceBase:       "WBNB",
			ReferenceQuote:      "USDT",
			CycleDeadline:       duration{5 * time.Second},
			PairConcurrency:     8,
			EvalConcurrency:     16,
			MinPairsAvailable:   3,
			LeaderLock:          false,
			LeaderLockTTL:       duration{30 * time.Second},
			NotifyTimeout:       duration{5 * time.Second},
			NotifyCooldown:      duration{time.Minute},
		},
		Simulator: SimulatorConfig{
			Trials:             1000,
			SuccessProbability: 0.9,
			GasStdDev:          0.2,
			ProfitMean:         0.95,
			ProfitStdDev:       0.05,
			TradesPerDay:       400,
			Seed:               1,
			HistoryLimit:       100,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tokenarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path:        "tokenarb.db",
			BusyTimeout: duration{5 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tokenarb-data",
			Prefix:         "reports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:             true,
			Port:                8000,
			CORSOrigins:         []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin:     120,
			MaxSimulationTrials: 100_000,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "simulation", "cycle_abandoned", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":     true,
	"backtest": true,
	"server":   true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"none":     true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, backtest, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.GasUnitsPerHop == 0 {
		errs = append(errs, "chain: gas_units_per_hop must be > 0")
	}
	if c.Chain.FallbackGasGwei < 0 {
		errs = append(errs, "chain: fallback_gas_gwei must be >= 0")
	}
	if c.Sources.OnChain.Enabled && c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url is required when sources.onchain is enabled")
	}

	// Tokens
	symbols := make(map[string]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if sym == "" {
			errs = append(errs, fmt.Sprintf("tokens[%d]: symbol must not be empty", i))
			continue
		}
		if symbols[sym] {
			errs = append(errs, fmt.Sprintf("tokens: duplicate symbol %s", sym))
		}
		symbols[sym] = true
		if !common.IsHexAddress(t.Address) {
			errs = append(errs, fmt.Sprintf("tokens: %s has invalid address %q", sym, t.Address))
		}
		if _, err := domain.ParseCategory(t.Category); err != nil {
			errs = append(errs, fmt.Sprintf("tokens: %s: %v", sym, err))
		}
	}
	if len(c.Tokens) < 3 {
		errs = append(errs, "tokens: at least 3 tokens are required to form a cycle")
	}
	for _, sym := range []string{c.Chain.NativeSymbol, c.Chain.USDSymbol, c.Scanner.ReferenceBase, c.Scanner.ReferenceQuote} {
		if sym != "" && !symbols[strings.ToUpper(sym)] {
			errs = append(errs, fmt.Sprintf("tokens: %s is referenced but not configured", sym))
		}
	}

	// Sources
	if !c.Sources.DexScreener.Enabled && !c.Sources.OnChain.Enabled {
		errs = append(errs, "sources: at least one quote source must be enabled")
	}
	if c.Sources.DexScreener.Enabled && c.Sources.DexScreener.BaseURL == "" {
		errs = append(errs, "sources.dexscreener: base_url must not be empty")
	}
	if c.Sources.OnChain.Enabled {
		for _, v := range c.Sources.OnChain.Venues {
			if !common.IsHexAddress(v.Factory) {
				errs = append(errs, fmt.Sprintf("sources.onchain: venue %s has invalid factory %q", v.Name, v.Factory))
			}
		}
	}

	// Aggregator
	if c.Aggregator.SourceTimeout.Duration <= 0 {
		errs = append(errs, "aggregator: source_timeout must be > 0")
	}
	if c.Aggregator.MaxQuoteAge.Duration <= 0 {
		errs = append(errs, "aggregator: max_quote_age must be > 0")
	}
	if ds := c.Sources.DexScreener; ds.Enabled && ds.CacheTTL.Duration >= c.Aggregator.MaxQuoteAge.Duration {
		errs = append(errs, "sources.dexscreener: cache_ttl must be below aggregator.max_quote_age")
	}
	for cat, n := range c.Aggregator.MinSources {
		if _, err := domain.ParseCategory(cat); err != nil {
			errs = append(errs, "aggregator.min_sources: "+err.Error())
		}
		if n < 1 {
			errs = append(errs, fmt.Sprintf("aggregator.min_sources: %s must be >= 1", cat))
		}
	}
	for cat, d := range c.Aggregator.MaxDeviation {
		if _, err := domain.ParseCategory(cat); err != nil {
			errs = append(errs, "aggregator.max_deviation: "+err.Error())
		}
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("aggregator.max_deviation: %s must be > 0", cat))
		}
	}
	if c.Aggregator.StableBandLow >= c.Aggregator.StableBandHigh {
		errs = append(errs, "aggregator: stable_band_low must be below stable_band_high")
	}

	// Evaluator
	e := c.Evaluator
	if e.MinTradeUSD <= 0 || e.MaxTradeUSD < e.MinTradeUSD {
		errs = append(errs, "evaluator: need 0 < min_trade_usd <= max_trade_usd")
	}
	if e.FallbackTradeUSD < 0 {
		errs = append(errs, "evaluator: fallback_trade_usd must be >= 0")
	}
	for cat, f := range e.TradeFraction {
		if f <= 0 || f > 1 {
			errs = append(errs, fmt.Sprintf("evaluator.trade_fraction: %s must be in (0, 1]", cat))
		}
	}
	if e.FeeBps < 0 || e.FeeBps >= 10_000 {
		errs = append(errs, "evaluator: fee_bps must be in [0, 10000)")
	}
	for cat, lvl := range e.ConfidenceFloor {
		if _, err := domain.ParseConfidence(lvl); err != nil {
			errs = append(errs, fmt.Sprintf("evaluator.confidence_floor: %s: %v", cat, err))
		}
	}
	if e.HopPenalty <= 0 {
		errs = append(errs, "evaluator: hop_penalty must be > 0")
	}

	// Pathfind
	if c.Pathfind.MinHops < domain.MinPathHops || c.Pathfind.MaxHops > domain.MaxPathHops || c.Pathfind.MinHops > c.Pathfind.MaxHops {
		errs = append(errs, fmt.Sprintf("pathfind: need %d <= min_hops <= max_hops <= %d", domain.MinPathHops, domain.MaxPathHops))
	}

	// Ranker
	if c.Ranker.TopK < 1 {
		errs = append(errs, "ranker: top_k must be >= 1")
	}

	// Scanner
	if c.Scanner.Interval.Duration <= 0 || c.Scanner.FastInterval.Duration <= 0 {
		errs = append(errs, "scanner: interval and fast_interval must be > 0")
	}
	if c.Scanner.CycleDeadline.Duration <= 0 {
		errs = append(errs, "scanner: cycle_deadline must be > 0")
	}
	if c.Scanner.PairConcurrency < 1 || c.Scanner.EvalConcurrency < 1 {
		errs = append(errs, "scanner: pair_concurrency and eval_concurrency must be >= 1")
	}
	if c.Scanner.LeaderLock && !c.Redis.Enabled {
		errs = append(errs, "scanner: leader_lock requires redis.enabled")
	}

	// Simulator
	s := c.Simulator
	if s.Trials < 1 {
		errs = append(errs, "simulator: trials must be >= 1")
	}
	if s.SuccessProbability < 0 || s.SuccessProbability > 1 {
		errs = append(errs, "simulator: success_probability must be in [0, 1]")
	}
	if s.GasStdDev < 0 || s.ProfitStdDev < 0 {
		errs = append(errs, "simulator: standard deviations must be >= 0")
	}
	if s.InputPath != "" && !c.S3.Enabled {
		errs = append(errs, "simulator: input_path requires s3.enabled")
	}

	// Store
	backend := strings.ToLower(c.Store.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: postgres, sqlite, none)", c.Store.Backend))
	}
	if backend == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}
	if backend == "sqlite" && c.SQLite.Path == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
