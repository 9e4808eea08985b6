// Package config loads service configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"solana-marketplace/internal/curve"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/market"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/pricing"
	"solana-marketplace/internal/ratelimit"
	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/verification"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func dur(d time.Duration) Duration { return Duration{Duration: d} }

// Config captures the runtime configuration of the marketplace service.
type Config struct {
	Service      string             `yaml:"service"`
	Env          string             `yaml:"env"`
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Solana       SolanaConfig       `yaml:"solana"`
	Storage      StorageConfig      `yaml:"storage"`
	Cache        CacheConfig        `yaml:"cache"`
	Wallets      WalletConfig       `yaml:"wallets"`
	Marketplace  MarketplaceConfig  `yaml:"marketplace"`
	Curve        CurveConfig        `yaml:"curve"`
	Pool         PoolConfig         `yaml:"pool"`
	Executor     ExecutorConfig     `yaml:"executor"`
	Verification VerificationConfig `yaml:"verification"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Notify       NotifyConfig       `yaml:"notify"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// SolanaConfig configures ledger access.
type SolanaConfig struct {
	RPCEndpoint string   `yaml:"rpc_endpoint"`
	WSEndpoint  string   `yaml:"ws_endpoint"`
	RPCTimeout  Duration `yaml:"rpc_timeout"`
	// RPCRate paces outbound calls; zero disables pacing.
	RPCRate  float64 `yaml:"rpc_rate"`
	RPCBurst int     `yaml:"rpc_burst"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// ClickhouseDSN enables the report read model when set.
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	// MaxConns caps the postgres pool; zero keeps the driver default.
	MaxConns       int32    `yaml:"max_conns"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// CacheConfig selects the shared cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Prefix        string `yaml:"prefix"`
}

// WalletConfig names platform wallets. MasterKey is hex and normally comes
// from the environment.
type WalletConfig struct {
	MasterKey       string `yaml:"master_key"`
	EscrowOwner     string `yaml:"escrow_owner"`
	ReserveOwner    string `yaml:"reserve_owner"`
	PlatformAddress string `yaml:"platform_address"`
	TreasuryAddress string `yaml:"treasury_address"`
}

// MarketplaceConfig configures settlement.
type MarketplaceConfig struct {
	CommissionBps     uint64   `yaml:"commission_bps"`
	PayoutExpiry      Duration `yaml:"payout_expiry"`
	OperatorRecipient string   `yaml:"operator_recipient"`
}

// CurveConfig configures the bonding curve market.
type CurveConfig struct {
	K                   uint64   `yaml:"k"`
	BuyFeeBps           uint64   `yaml:"buy_fee_bps"`
	SellFeeBps          uint64   `yaml:"sell_fee_bps"`
	QuoteMint           string   `yaml:"quote_mint"`
	QuoteUnit           uint64   `yaml:"quote_unit"`
	MinBuyIn            uint64   `yaml:"min_buy_in"`
	Decimals            uint8    `yaml:"decimals"`
	Supply              uint64   `yaml:"supply"`
	GraduationThreshold uint64   `yaml:"graduation_threshold"`
	GraduationFee       uint64   `yaml:"graduation_fee"`
	CASRetries          int      `yaml:"cas_retries"`
	DeliveryExpiry      Duration `yaml:"delivery_expiry"`
}

// PoolConfig points at the external liquidity pool service.
type PoolConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// ExecutorConfig holds transfer retry settings.
type ExecutorConfig struct {
	MaxRetries     int      `yaml:"max_retries"`
	BackoffBase    Duration `yaml:"backoff_base"`
	SubmitTimeout  Duration `yaml:"submit_timeout"`
	ConfirmTimeout Duration `yaml:"confirm_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
}

// VerificationConfig holds verifier timings.
type VerificationConfig struct {
	FetchTimeout Duration `yaml:"fetch_timeout"`
	StaleAfter   Duration `yaml:"stale_after"`
}

// RateLimitConfig holds the verification request limit.
type RateLimitConfig struct {
	Limit  int64    `yaml:"limit"`
	Window Duration `yaml:"window"`
	Block  Duration `yaml:"block"`
}

// PricingConfig configures the SOL/USD price service.
type PricingConfig struct {
	BaseURL     string   `yaml:"base_url"`
	TTL         Duration `yaml:"ttl"`
	FallbackUSD string   `yaml:"fallback_usd"`
	Timeout     Duration `yaml:"timeout"`
}

// NotifyConfig configures the notification outbox.
type NotifyConfig struct {
	SpoolPath      string   `yaml:"spool_path"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookTimeout Duration `yaml:"webhook_timeout"`
	MaxAttempts    int      `yaml:"max_attempts"`
	PollInterval   Duration `yaml:"poll_interval"`
	// SummaryRecipient receives scheduled commission summaries.
	SummaryRecipient string `yaml:"summary_recipient"`
}

// ScheduleConfig holds cron specs; an empty spec disables the job.
type ScheduleConfig struct {
	DailySummary   string `yaml:"daily_summary"`
	WeeklySummary  string `yaml:"weekly_summary"`
	MonthlySummary string `yaml:"monthly_summary"`
	Reconcile      string `yaml:"reconcile"`
	ReconcileBatch int    `yaml:"reconcile_batch"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	ex := executor.DefaultConfig()
	rl := ratelimit.DefaultConfig()
	return Config{
		Service: "solana-marketplace",
		Env:     "development",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     dur(15 * time.Second),
			WriteTimeout:    dur(60 * time.Second),
			ShutdownTimeout: dur(30 * time.Second),
		},
		Solana: SolanaConfig{
			RPCTimeout: dur(30 * time.Second),
			RPCRate:    20,
			RPCBurst:   5,
		},
		Storage: StorageConfig{Backend: "memory", MaxConns: 10, ConnectTimeout: dur(5 * time.Second)},
		Cache:   CacheConfig{Backend: "memory", Prefix: "mkt:"},
		Wallets: WalletConfig{
			EscrowOwner:  "platform:escrow",
			ReserveOwner: "platform:curve-reserve",
		},
		Marketplace: MarketplaceConfig{
			CommissionBps:     settlement.DefaultCommissionBps,
			PayoutExpiry:      dur(5 * time.Minute),
			OperatorRecipient: "operators",
		},
		Curve: CurveConfig{
			K:                   curve.DefaultK,
			BuyFeeBps:           curve.DefaultBuyFeeBps,
			SellFeeBps:          curve.DefaultSellFeeBps,
			QuoteUnit:           market.DefaultQuoteUnit,
			MinBuyIn:            market.DefaultMinBuyIn,
			Decimals:            market.DefaultDecimals,
			Supply:              market.DefaultSupply,
			GraduationThreshold: market.DefaultGraduationThreshold,
			GraduationFee:       market.DefaultGraduationFee,
			CASRetries:          market.DefaultCASRetries,
			DeliveryExpiry:      dur(market.DefaultDeliveryExpiry),
		},
		Pool: PoolConfig{Timeout: dur(15 * time.Second)},
		Executor: ExecutorConfig{
			MaxRetries:     ex.MaxRetries,
			BackoffBase:    dur(ex.BackoffBase),
			SubmitTimeout:  dur(ex.SubmitTimeout),
			ConfirmTimeout: dur(ex.ConfirmTimeout),
			PollInterval:   dur(ex.PollInterval),
		},
		Verification: VerificationConfig{
			FetchTimeout: dur(verification.DefaultFetchTimeout),
			StaleAfter:   dur(verification.DefaultStaleAfter),
		},
		RateLimit: RateLimitConfig{
			Limit:  rl.Limit,
			Window: dur(rl.Window),
			Block:  dur(rl.Block),
		},
		Pricing: PricingConfig{
			BaseURL:     pricing.DefaultCoinGeckoURL,
			TTL:         dur(pricing.DefaultTTL),
			FallbackUSD: "100",
			Timeout:     dur(10 * time.Second),
		},
		Notify: NotifyConfig{
			SpoolPath:        "data/notifications.db",
			WebhookTimeout:   dur(10 * time.Second),
			MaxAttempts:      notify.DefaultMaxAttempts,
			PollInterval:     dur(notify.DefaultPollInterval),
			SummaryRecipient: "operators",
		},
		Schedule: ScheduleConfig{
			DailySummary:   "0 0 * * *",
			WeeklySummary:  "0 0 * * 1",
			MonthlySummary: "0 0 1 * *",
			Reconcile:      "@every 1m",
			ReconcileBatch: 100,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables found by lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENV", &c.Env)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("SOLANA_RPC_ENDPOINT", &c.Solana.RPCEndpoint)
	str("SOLANA_WS_ENDPOINT", &c.Solana.WSEndpoint)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("WALLET_MASTER_KEY", &c.Wallets.MasterKey)
	str("PLATFORM_WALLET_ADDRESS", &c.Wallets.PlatformAddress)
	str("DAO_TREASURY_ADDRESS", &c.Wallets.TreasuryAddress)
	str("QUOTE_MINT", &c.Curve.QuoteMint)
	str("POOL_API_URL", &c.Pool.BaseURL)
	str("PRICE_API_URL", &c.Pricing.BaseURL)
	str("NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL)
	str("NOTIFY_SPOOL_PATH", &c.Notify.SpoolPath)

	if v, ok := lookup("REDIS_ADDR"); ok && strings.TrimSpace(v) != "" {
		c.Cache.Backend = "redis"
	}
	if v, ok := lookup("POSTGRES_DSN"); ok && strings.TrimSpace(v) != "" {
		if _, set := lookup("STORAGE_BACKEND"); !set {
			c.Storage.Backend = "postgres"
		}
	}
	if v, ok := lookup("COMMISSION_BPS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("COMMISSION_BPS: %w", err)
		}
		c.Marketplace.CommissionBps = n
	}
	return nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	if c.Solana.RPCEndpoint == "" {
		errs = append(errs, errors.New("solana.rpc_endpoint must be configured"))
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Wallets.MasterKey == "" {
		errs = append(errs, errors.New("wallets.master_key must be configured"))
	}
	if c.Wallets.PlatformAddress == "" {
		errs = append(errs, errors.New("wallets.platform_address must be configured"))
	}
	if c.Wallets.TreasuryAddress == "" {
		errs = append(errs, errors.New("wallets.treasury_address must be configured"))
	}
	if c.Marketplace.CommissionBps == 0 || c.Marketplace.CommissionBps >= 10_000 {
		errs = append(errs, fmt.Errorf("marketplace.commission_bps %d must be in (0, 10000)", c.Marketplace.CommissionBps))
	}
	if c.Curve.K == 0 {
		errs = append(errs, errors.New("curve.k must be positive"))
	}
	if c.Curve.BuyFeeBps >= 10_000 || c.Curve.SellFeeBps >= 10_000 {
		errs = append(errs, errors.New("curve fee bps must be below 10000"))
	}
	if c.Curve.QuoteUnit == 0 || c.Curve.Supply == 0 {
		errs = append(errs, errors.New("curve.quote_unit and curve.supply must be positive"))
	}
	if c.Curve.Decimals > 9 {
		errs = append(errs, fmt.Errorf("curve.decimals %d exceeds 9", c.Curve.Decimals))
	}
	if c.Executor.MaxRetries <= 0 {
		errs = append(errs, errors.New("executor.max_retries must be positive"))
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window.Duration <= 0 {
		errs = append(errs, errors.New("rate_limit.limit and rate_limit.window must be positive"))
	}
	if _, err := c.FallbackPrice(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ExecutorSettings converts the executor section.
func (c Config) ExecutorSettings() executor.Config {
	return executor.Config{
		MaxRetries:     c.Executor.MaxRetries,
		BackoffBase:    c.Executor.BackoffBase.Duration,
		SubmitTimeout:  c.Executor.SubmitTimeout.Duration,
		ConfirmTimeout: c.Executor.ConfirmTimeout.Duration,
		PollInterval:   c.Executor.PollInterval.Duration,
	}
}

// RateLimitSettings converts the rate limit section.
func (c Config) RateLimitSettings() ratelimit.Config {
	return ratelimit.Config{
		Limit:  c.RateLimit.Limit,
		Window: c.RateLimit.Window.Duration,
		Block:  c.RateLimit.Block.Duration,
	}
}

// LedgerSettings builds the curve ledger.
func (c Config) LedgerSettings() *curve.Ledger {
	l := curve.NewLedger(c.Curve.K)
	l.BuyFeeBps = c.Curve.BuyFeeBps
	l.SellFeeBps = c.Curve.SellFeeBps
	return l
}

// FallbackPrice parses the fixed SOL/USD price used when no quote is available.
func (c Config) FallbackPrice() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Pricing.FallbackUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing.fallback_usd: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("pricing.fallback_usd must be positive")
	}
	return d, nil
}
