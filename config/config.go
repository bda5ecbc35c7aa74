package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	dbconfig "github.com/pointscan-io/pointscan/orm/config"
	"github.com/pointscan-io/pointscan/types"
)

var (
	Version    = "dev"
	CommitHash = "unknown"

	// Singleton instance
	configInstance *Config
	configOnce     sync.Once
)

// Default configuration constants
const (
	// Port settings
	DefaultAPIPort     = "8080"
	DefaultMetricsPort = "9090"
	MinPortNumber      = 1
	MaxPortNumber      = 65535

	// Database settings
	DefaultDBMaxConns  = 0 // 0 means unlimited (GORM default)
	DefaultDBIdleConns = 2 // GORM default
	DefaultDBBatchSize = 100

	// Cache settings
	DefaultCacheSize = 8192
	DefaultCacheTTL  = 10 * time.Minute

	// Timeout and interval settings
	DefaultCoolingDuration = 50 * time.Millisecond
	DefaultQueryTimeout    = 30 * time.Second
	DefaultPollingInterval = 3 * time.Second

	// Concurrent request settings
	DefaultMaxConcurrentRequests = 10
	MaxAllowedConcurrentRequests = 1000

	// Accrual settings
	DefaultDailyPointRate = 1000
	DefaultSweepInterval  = time.Hour
	DefaultBlockBatchSize = 20

	// Metrics settings
	DefaultMetricsPath = "/metrics"

	// Default environment
	DefaultEnvironment = "local"
)

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	Port    string `json:"port"`
}

// SentryConfig contains configuration for Sentry integration
type SentryConfig struct {
	DSN         string  `json:"dsn"`
	SampleRate  float64 `json:"sample_rate"`
	Environment string  `json:"environment"`
}

// AccrualConfig tunes the points accrual engine.
type AccrualConfig struct {
	DailyPointRate       int64                  `json:"daily_point_rate"`
	SweepInterval        time.Duration          `json:"sweep_interval"`
	OutOfOrderPolicy     types.OutOfOrderPolicy `json:"out_of_order_policy"`
	StaleBalanceFallback bool                   `json:"stale_balance_fallback"`
}

func SetBuildInfo(v, commit string) {
	Version = v
	CommitHash = commit
}

type Config struct {
	listenPort            string
	dbConfig              *dbconfig.Config
	chainConfig           *ChainConfig
	accrualConfig         *AccrualConfig
	logLevel              string
	logFormat             string
	coolingDuration       time.Duration // for indexer only
	queryTimeout          time.Duration // for indexer only
	maxConcurrentRequests int           // for indexer only
	blockBatchSize        int           // for indexer only
	cacheSize             int
	cacheTTL              time.Duration // for api only
	pollingInterval       time.Duration // for api only
	metricsConfig         *MetricsConfig
	sentryConfig          *SentryConfig

	// Start height configuration
	startHeight    int64 // explicit start height when set
	startHeightSet bool  // whether START_HEIGHT was provided
}

func setDefaults() {
	viper.SetDefault("PORT", DefaultAPIPort)
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("DB_BATCH_SIZE", DefaultDBBatchSize)
	viper.SetDefault("DB_MAX_CONNS", DefaultDBMaxConns)
	viper.SetDefault("DB_IDLE_CONNS", DefaultDBIdleConns)
	viper.SetDefault("COOLING_DURATION", DefaultCoolingDuration)
	viper.SetDefault("QUERY_TIMEOUT", DefaultQueryTimeout)
	viper.SetDefault("MAX_CONCURRENT_REQUESTS", DefaultMaxConcurrentRequests)
	viper.SetDefault("BLOCK_BATCH_SIZE", DefaultBlockBatchSize)
	viper.SetDefault("LOG_LEVEL", "warn")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("CACHE_SIZE", DefaultCacheSize)
	viper.SetDefault("CACHE_TTL", DefaultCacheTTL)
	viper.SetDefault("POLLING_INTERVAL", DefaultPollingInterval)
	viper.SetDefault("DAILY_POINT_RATE", DefaultDailyPointRate)
	viper.SetDefault("SWEEP_INTERVAL", DefaultSweepInterval)
	viper.SetDefault("OUT_OF_ORDER_POLICY", string(types.OutOfOrderRecord))
	viper.SetDefault("STALE_BALANCE_FALLBACK", false)
	viper.SetDefault("METRICS_ENABLED", false)
	viper.SetDefault("METRICS_PATH", DefaultMetricsPath)
	viper.SetDefault("METRICS_PORT", DefaultMetricsPort)
	viper.SetDefault("ENVIRONMENT", DefaultEnvironment)

	// Sentry defaults
	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("SENTRY_SAMPLE_RATE", 0.01)

	// CHAIN_ID, JSON_RPC_URL and TOKEN_ADDRESS have no defaults
}

func GetConfig() (*Config, error) {
	var err error

	configOnce.Do(func() {
		configInstance, err = loadConfig()
	})

	return configInstance, err
}

func loadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// just log without panic, local testing purpose only
		fmt.Fprintln(os.Stderr, "No .env file found")
	}
	viper.AutomaticEnv()
	setDefaults()

	dc := &dbconfig.Config{
		DSN:         viper.GetString("DB_DSN"),
		AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		MaxConns:    viper.GetInt("DB_MAX_CONNS"),
		IdleConns:   viper.GetInt("DB_IDLE_CONNS"),
		BatchSize:   viper.GetInt("DB_BATCH_SIZE"),
	}

	cc := &ChainConfig{
		ChainId:      viper.GetString("CHAIN_ID"),
		JsonRpcUrl:   viper.GetString("JSON_RPC_URL"),
		TokenAddress: strings.ToLower(viper.GetString("TOKEN_ADDRESS")),
	}

	var oooPolicy types.OutOfOrderPolicy
	switch viper.GetString("OUT_OF_ORDER_POLICY") {
	case string(types.OutOfOrderRecord):
		oooPolicy = types.OutOfOrderRecord
	case string(types.OutOfOrderSkip):
		oooPolicy = types.OutOfOrderSkip
	default:
		return nil, types.NewInvalidValueError("OUT_OF_ORDER_POLICY", viper.GetString("OUT_OF_ORDER_POLICY"), "must be record or skip")
	}

	ac := &AccrualConfig{
		DailyPointRate:       viper.GetInt64("DAILY_POINT_RATE"),
		SweepInterval:        viper.GetDuration("SWEEP_INTERVAL"),
		OutOfOrderPolicy:     oooPolicy,
		StaleBalanceFallback: viper.GetBool("STALE_BALANCE_FALLBACK"),
	}

	config := &Config{
		listenPort:            viper.GetString("PORT"),
		dbConfig:              dc,
		chainConfig:           cc,
		accrualConfig:         ac,
		logLevel:              viper.GetString("LOG_LEVEL"),
		logFormat:             viper.GetString("LOG_FORMAT"),
		coolingDuration:       viper.GetDuration("COOLING_DURATION"),
		queryTimeout:          viper.GetDuration("QUERY_TIMEOUT"),
		maxConcurrentRequests: viper.GetInt("MAX_CONCURRENT_REQUESTS"),
		blockBatchSize:        viper.GetInt("BLOCK_BATCH_SIZE"),
		cacheSize:             viper.GetInt("CACHE_SIZE"),
		cacheTTL:              viper.GetDuration("CACHE_TTL"),
		pollingInterval:       viper.GetDuration("POLLING_INTERVAL"),
		metricsConfig: &MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
			Path:    viper.GetString("METRICS_PATH"),
			Port:    viper.GetString("METRICS_PORT"),
		},
		sentryConfig: &SentryConfig{
			DSN:         viper.GetString("SENTRY_DSN"),
			SampleRate:  viper.GetFloat64("SENTRY_SAMPLE_RATE"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
	}

	// parse optional START_HEIGHT env var. Accepts integer >= 0.
	raw := strings.TrimSpace(viper.GetString("START_HEIGHT"))
	if raw != "" {
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || val < 0 {
			return nil, types.NewInvalidValueError("START_HEIGHT", raw, "must be a non-negative integer")
		}
		config.startHeight = val
		config.startHeightSet = true
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c Config) Validate() error {
	port, err := strconv.Atoi(c.listenPort)
	if err != nil || port < MinPortNumber || port > MaxPortNumber {
		return types.NewInvalidValueError("PORT", c.listenPort, "must be a valid port number")
	}
	if err := c.dbConfig.Validate(); err != nil {
		return err
	}
	if err := c.chainConfig.Validate(); err != nil {
		return err
	}
	if c.accrualConfig.DailyPointRate <= 0 {
		return types.NewInvalidValueError("DAILY_POINT_RATE", strconv.FormatInt(c.accrualConfig.DailyPointRate, 10), "must be positive")
	}
	if c.accrualConfig.SweepInterval <= 0 {
		return types.NewInvalidValueError("SWEEP_INTERVAL", c.accrualConfig.SweepInterval.String(), "must be positive")
	}
	if c.blockBatchSize < 1 {
		return types.NewInvalidValueError("BLOCK_BATCH_SIZE", strconv.Itoa(c.blockBatchSize), "must be at least 1")
	}
	if c.maxConcurrentRequests < 1 || c.maxConcurrentRequests > MaxAllowedConcurrentRequests {
		return types.NewInvalidValueError("MAX_CONCURRENT_REQUESTS", strconv.Itoa(c.maxConcurrentRequests), "out of range")
	}
	return nil
}

func (c Config) GetListenPort() string {
	return c.listenPort
}

// SetDBConfig assigns the DB config for testing purposes.
func (c *Config) SetDBConfig(dbCfg *dbconfig.Config) {
	c.dbConfig = dbCfg
}

func (c Config) GetDBConfig() *dbconfig.Config {
	return c.dbConfig
}

// SetChainConfig assigns the chain config for testing purposes.
func (c *Config) SetChainConfig(chainCfg *ChainConfig) {
	c.chainConfig = chainCfg
}

func (c Config) GetChainConfig() *ChainConfig {
	return c.chainConfig
}

// SetAccrualConfig assigns the accrual config for testing purposes.
func (c *Config) SetAccrualConfig(accrualCfg *AccrualConfig) {
	c.accrualConfig = accrualCfg
}

func (c Config) GetAccrualConfig() *AccrualConfig {
	return c.accrualConfig
}

func (c Config) GetChainId() string {
	return c.chainConfig.ChainId
}

func (c Config) GetDBBatchSize() int {
	return c.dbConfig.BatchSize
}

func (c Config) GetCacheSize() int {
	return c.cacheSize
}

func (c Config) GetCacheTTL() time.Duration {
	return c.cacheTTL
}

func (c Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func (c Config) GetLogFormat() string {
	return c.logFormat
}

func (c Config) GetCoolingDuration() time.Duration {
	return c.coolingDuration
}

func (c Config) GetQueryTimeout() time.Duration {
	return c.queryTimeout
}

func (c Config) GetMaxConcurrentRequests() int {
	return c.maxConcurrentRequests
}

func (c Config) GetBlockBatchSize() int {
	return c.blockBatchSize
}

func (c Config) GetPollingInterval() time.Duration {
	return c.pollingInterval
}

func (c Config) GetMetricsConfig() *MetricsConfig {
	return c.metricsConfig
}

func (c Config) GetSentryConfig() *SentryConfig {
	return c.sentryConfig
}

// GetStartHeight returns the configured start height and whether it was set.
func (c Config) GetStartHeight() (int64, bool) {
	return c.startHeight, c.startHeightSet
}
