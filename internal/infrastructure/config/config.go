package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreModePostgres = "postgres"
	StoreModeMemory   = "memory"
)

const (
	defaultPort                     = "8080"
	defaultOpenAPISpec              = "api/openapi.yaml"
	defaultMigrationsPath           = "migrations"
	defaultShutdownTimeout          = 10 * time.Second
	defaultDBReadinessTimeout       = 30 * time.Second
	defaultDBReadinessRetryInterval = 2 * time.Second
	defaultPollTimeout              = 10 * time.Second
	defaultPollMaxBackoff           = 10 * time.Minute
	defaultReplenishInterval        = 30 * time.Second
	defaultMonitorBatchSize         = 50
	defaultMonitorLeaseDuration     = 30 * time.Second
	defaultDispatchInterval         = 5 * time.Second
	defaultDispatchBatchSize        = 25
	defaultDispatchInitialBackoff   = 5 * time.Second
	defaultDispatchMaxBackoff       = 5 * time.Minute
	defaultDispatchRetryBudget      = 8
	defaultRateLimitPrefix          = "depositgate:rate_limit"
	defaultEventExchange            = "depositgate.events"
	defaultChainAPIBaseURL          = "https://api.trongrid.io"
	defaultAssetSymbol              = "USDT"
)

type ConfigError struct {
	Code    string
	Message string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

type Config struct {
	ServerPort      string
	OpenAPISpecPath string
	ShutdownTimeout time.Duration

	StoreMode                string
	DatabaseURL              string
	DatabaseTarget           string
	MigrationsPath           string
	DBReadinessTimeout       time.Duration
	DBReadinessRetryInterval time.Duration

	RedisURL                  string
	RedisRateLimitPrefix      string
	DepositRateLimitPerMinute int

	RabbitMQURL   string
	EventExchange string

	WebhookURL        string
	WebhookHMACSecret string

	ChainAPIBaseURL string
	ChainAPIKey     string
	USDTContract    string
	AssetSymbol     string

	ConfirmationThreshold int
	DepositExpiry         time.Duration
	MinDepositAmountMinor string
	MaxDepositAmountMinor string

	PollInterval        time.Duration
	PollTimeout         time.Duration
	PollMaxBackoff      time.Duration
	MonitorBatchSize    int
	MonitorLeaseTime    time.Duration
	MonitorWorkerID     string
	CooldownDuration    time.Duration
	PoolMinSize         int
	PoolLowWatermark    int
	ReplenishInterval   time.Duration
	HDSeedMnemonic      string
	HDSeedPassphrase    string
	MaxReplenishBatch   int
	DispatchInterval    time.Duration
	DispatchBatchSize   int
	DispatchInitialWait time.Duration
	DispatchMaxWait     time.Duration
	DispatchRetryBudget int
}

// LoadConfig reads settings from the environment. Operational thresholds
// (confirmation threshold, expiry, poll interval, pool minimum, cooldown)
// are required so they stay operator-visible instead of hidden defaults.
func LoadConfig() (Config, *ConfigError) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", defaultPort)
	v.SetDefault("OPENAPI_SPEC_PATH", defaultOpenAPISpec)
	v.SetDefault("STORE_MODE", StoreModePostgres)
	v.SetDefault("MIGRATIONS_PATH", defaultMigrationsPath)
	v.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	v.SetDefault("EVENT_EXCHANGE", defaultEventExchange)
	v.SetDefault("CHAIN_API_BASE_URL", defaultChainAPIBaseURL)
	v.SetDefault("ASSET_SYMBOL", defaultAssetSymbol)
	v.SetDefault("POLL_TIMEOUT", defaultPollTimeout)
	v.SetDefault("POLL_MAX_BACKOFF", defaultPollMaxBackoff)
	v.SetDefault("REPLENISH_INTERVAL", defaultReplenishInterval)
	v.SetDefault("MONITOR_BATCH_SIZE", defaultMonitorBatchSize)
	v.SetDefault("MONITOR_LEASE_DURATION", defaultMonitorLeaseDuration)
	v.SetDefault("MONITOR_WORKER_ID", "monitor-1")
	v.SetDefault("MAX_REPLENISH_BATCH", 100)
	v.SetDefault("DISPATCH_INTERVAL", defaultDispatchInterval)
	v.SetDefault("DISPATCH_BATCH_SIZE", defaultDispatchBatchSize)
	v.SetDefault("DISPATCH_INITIAL_BACKOFF", defaultDispatchInitialBackoff)
	v.SetDefault("DISPATCH_MAX_BACKOFF", defaultDispatchMaxBackoff)
	v.SetDefault("DISPATCH_RETRY_BUDGET", defaultDispatchRetryBudget)
	v.SetDefault("DEPOSIT_RATE_LIMIT_PER_MINUTE", 0)

	cfg := Config{
		ServerPort:      strings.TrimSpace(v.GetString("SERVER_PORT")),
		OpenAPISpecPath: strings.TrimSpace(v.GetString("OPENAPI_SPEC_PATH")),
		ShutdownTimeout: defaultShutdownTimeout,

		StoreMode:                strings.ToLower(strings.TrimSpace(v.GetString("STORE_MODE"))),
		DatabaseURL:              strings.TrimSpace(v.GetString("DATABASE_URL")),
		MigrationsPath:           strings.TrimSpace(v.GetString("MIGRATIONS_PATH")),
		DBReadinessTimeout:       defaultDBReadinessTimeout,
		DBReadinessRetryInterval: defaultDBReadinessRetryInterval,

		RedisURL:                  strings.TrimSpace(v.GetString("REDIS_URL")),
		RedisRateLimitPrefix:      strings.TrimSpace(v.GetString("REDIS_RATE_LIMIT_PREFIX")),
		DepositRateLimitPerMinute: v.GetInt("DEPOSIT_RATE_LIMIT_PER_MINUTE"),

		RabbitMQURL:   strings.TrimSpace(v.GetString("RABBITMQ_URL")),
		EventExchange: strings.TrimSpace(v.GetString("EVENT_EXCHANGE")),

		WebhookURL:        strings.TrimSpace(v.GetString("WEBHOOK_URL")),
		WebhookHMACSecret: strings.TrimSpace(v.GetString("WEBHOOK_HMAC_SECRET")),

		ChainAPIBaseURL: strings.TrimSpace(v.GetString("CHAIN_API_BASE_URL")),
		ChainAPIKey:     strings.TrimSpace(v.GetString("CHAIN_API_KEY")),
		USDTContract:    strings.TrimSpace(v.GetString("USDT_CONTRACT")),
		AssetSymbol:     strings.TrimSpace(v.GetString("ASSET_SYMBOL")),

		ConfirmationThreshold: v.GetInt("CONFIRMATION_THRESHOLD"),
		DepositExpiry:         v.GetDuration("DEPOSIT_EXPIRY"),
		MinDepositAmountMinor: strings.TrimSpace(v.GetString("MIN_DEPOSIT_AMOUNT_MINOR")),
		MaxDepositAmountMinor: strings.TrimSpace(v.GetString("MAX_DEPOSIT_AMOUNT_MINOR")),

		PollInterval:        v.GetDuration("POLL_INTERVAL"),
		PollTimeout:         v.GetDuration("POLL_TIMEOUT"),
		PollMaxBackoff:      v.GetDuration("POLL_MAX_BACKOFF"),
		MonitorBatchSize:    v.GetInt("MONITOR_BATCH_SIZE"),
		MonitorLeaseTime:    v.GetDuration("MONITOR_LEASE_DURATION"),
		MonitorWorkerID:     strings.TrimSpace(v.GetString("MONITOR_WORKER_ID")),
		CooldownDuration:    v.GetDuration("COOLDOWN_DURATION"),
		PoolMinSize:         v.GetInt("POOL_MIN_SIZE"),
		PoolLowWatermark:    v.GetInt("POOL_LOW_WATERMARK"),
		ReplenishInterval:   v.GetDuration("REPLENISH_INTERVAL"),
		HDSeedMnemonic:      strings.TrimSpace(v.GetString("HD_SEED_MNEMONIC")),
		HDSeedPassphrase:    v.GetString("HD_SEED_PASSPHRASE"),
		MaxReplenishBatch:   v.GetInt("MAX_REPLENISH_BATCH"),
		DispatchInterval:    v.GetDuration("DISPATCH_INTERVAL"),
		DispatchBatchSize:   v.GetInt("DISPATCH_BATCH_SIZE"),
		DispatchInitialWait: v.GetDuration("DISPATCH_INITIAL_BACKOFF"),
		DispatchMaxWait:     v.GetDuration("DISPATCH_MAX_BACKOFF"),
		DispatchRetryBudget: v.GetInt("DISPATCH_RETRY_BUDGET"),
	}

	if cfg.StoreMode != StoreModePostgres && cfg.StoreMode != StoreModeMemory {
		return Config{}, &ConfigError{
			Code:    "config_store_mode_invalid",
			Message: "STORE_MODE must be postgres or memory",
		}
	}

	if cfg.StoreMode == StoreModePostgres {
		if cfg.DatabaseURL == "" {
			return Config{}, &ConfigError{
				Code:    "config_database_url_required",
				Message: "DATABASE_URL is required for the postgres store mode",
			}
		}
		databaseTarget, parseErr := parseDatabaseTarget(cfg.DatabaseURL)
		if parseErr != nil {
			return Config{}, parseErr
		}
		cfg.DatabaseTarget = databaseTarget
	}

	if cfg.ConfirmationThreshold <= 0 {
		return Config{}, &ConfigError{
			Code:    "config_confirmation_threshold_required",
			Message: "CONFIRMATION_THRESHOLD must be a positive integer",
		}
	}
	if cfg.DepositExpiry <= 0 {
		return Config{}, &ConfigError{
			Code:    "config_deposit_expiry_required",
			Message: "DEPOSIT_EXPIRY must be a positive duration",
		}
	}
	if cfg.PollInterval <= 0 {
		return Config{}, &ConfigError{
			Code:    "config_poll_interval_required",
			Message: "POLL_INTERVAL must be a positive duration",
		}
	}
	if cfg.PoolMinSize <= 0 {
		return Config{}, &ConfigError{
			Code:    "config_pool_min_size_required",
			Message: "POOL_MIN_SIZE must be a positive integer",
		}
	}
	if cfg.CooldownDuration <= 0 {
		return Config{}, &ConfigError{
			Code:    "config_cooldown_duration_required",
			Message: "COOLDOWN_DURATION must be a positive duration",
		}
	}
	if cfg.PoolLowWatermark <= 0 {
		cfg.PoolLowWatermark = cfg.PoolMinSize
	}
	if cfg.PollMaxBackoff < cfg.PollInterval {
		return Config{}, &ConfigError{
			Code:    "config_poll_max_backoff_invalid",
			Message: "POLL_MAX_BACKOFF must be at least POLL_INTERVAL",
		}
	}
	if cfg.WebhookURL != "" && cfg.WebhookHMACSecret == "" {
		return Config{}, &ConfigError{
			Code:    "config_webhook_secret_required",
			Message: "WEBHOOK_HMAC_SECRET is required when WEBHOOK_URL is set",
		}
	}

	return cfg, nil
}

func (c Config) Address() string {
	return ":" + c.ServerPort
}

func parseDatabaseTarget(databaseURL string) (string, *ConfigError) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", &ConfigError{
			Code:    "config_database_url_invalid",
			Message: "DATABASE_URL is invalid",
		}
	}

	switch parsed.Scheme {
	case "postgres", "postgresql":
	default:
		return "", &ConfigError{
			Code:    "config_database_url_scheme_invalid",
			Message: "DATABASE_URL must use postgres or postgresql scheme",
		}
	}

	if parsed.Host == "" {
		return "", &ConfigError{
			Code:    "config_database_url_host_missing",
			Message: "DATABASE_URL host is required",
		}
	}

	databaseName := strings.TrimPrefix(parsed.Path, "/")
	if databaseName == "" {
		return "", &ConfigError{
			Code:    "config_database_name_missing",
			Message: "DATABASE_URL database name is required",
		}
	}

	return parsed.Host + "/" + databaseName, nil
}
