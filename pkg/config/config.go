package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the indexer application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Oracles    OraclesConfig    `mapstructure:"oracles"`
	Crons      CronsConfig      `mapstructure:"crons"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	// Pool sizing. Every pipeline worker holds a connection while its stage
	// runs, so the open limit should track total stage concurrency.
	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// RedisConfig contains connection settings for the task queue backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig contains per-chain RPC and contract settings
type ChainConfig struct {
	ChainID            uint64            `mapstructure:"chain_id"`
	Name               string            `mapstructure:"name"`
	RPCURL             string            `mapstructure:"rpc_url"`
	NativeSymbol       string            `mapstructure:"native_symbol"`
	ConfirmationBlocks uint64            `mapstructure:"confirmation_blocks"`
	MaxQueryRange      uint64            `mapstructure:"max_query_range"`
	VerifierContract   string            `mapstructure:"verifier_contract"`
	StartBlock         uint64            `mapstructure:"start_block"`
	GapCutover         *GapCutoverConfig `mapstructure:"gap_cutover"`
}

// GapCutoverConfig marks the deposit-id boundary where a contract upgrade
// restarted the id sequence. Gap detection jumps from the last id of the old
// deployment straight to the first id of the new one instead of scanning the
// dead range in between.
type GapCutoverConfig struct {
	LastID  int64 `mapstructure:"last_id"`
	FirstID int64 `mapstructure:"first_id"`
}

// ScannerConfig contains block scanner settings
type ScannerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	DeploymentsFile string        `mapstructure:"deployments_file"`
	RoutesFile      string        `mapstructure:"routes_file"`
}

// PipelineConfig contains enrichment pipeline settings
type PipelineConfig struct {
	Concurrency        map[string]int `mapstructure:"concurrency"`
	SuggestedFeeWindow time.Duration  `mapstructure:"suggested_fee_window"`
	MissedFillGrace    time.Duration  `mapstructure:"missed_fill_grace"`
	RetryBackoff       time.Duration  `mapstructure:"retry_backoff"`
	MaxRetryBackoff    time.Duration  `mapstructure:"max_retry_backoff"`
}

// OraclesConfig contains the external price and fee oracle endpoints
type OraclesConfig struct {
	PriceURL  string        `mapstructure:"price_url"`
	FeeURL    string        `mapstructure:"fee_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	AcxSymbol string        `mapstructure:"acx_symbol"`
	AcxLaunch string        `mapstructure:"acx_launch"`
	AcxPreUSD string        `mapstructure:"acx_pre_usd"`
}

// CronsConfig contains reconciliation cron settings
type CronsConfig struct {
	GapDetectionSchedule   string        `mapstructure:"gap_detection_schedule"`
	MissedFillSchedule     string        `mapstructure:"missed_fill_schedule"`
	ViewRefreshSchedule    string        `mapstructure:"view_refresh_schedule"`
	QueueMonitorSchedule   string        `mapstructure:"queue_monitor_schedule"`
	ViewRefreshCooldown    time.Duration `mapstructure:"view_refresh_cooldown"`
	QueueDepthThreshold    int64         `mapstructure:"queue_depth_threshold"`
	GapDetectionMaxResults int           `mapstructure:"gap_detection_max_results"`
	GapIntervalMaxSize     uint64        `mapstructure:"gap_interval_max_size"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "bridge_indexer")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 10)

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// Scanner defaults
	viper.SetDefault("scanner.interval", "15s")
	viper.SetDefault("scanner.deployments_file", "deployments.yaml")
	viper.SetDefault("scanner.routes_file", "routes.yaml")

	// Pipeline defaults
	viper.SetDefault("pipeline.suggested_fee_window", "24h")
	viper.SetDefault("pipeline.missed_fill_grace", "30m")
	viper.SetDefault("pipeline.retry_backoff", "5s")
	viper.SetDefault("pipeline.max_retry_backoff", "5m")

	// Oracle defaults
	viper.SetDefault("oracles.timeout", "30s")
	viper.SetDefault("oracles.acx_symbol", "acx")
	viper.SetDefault("oracles.acx_launch", "2022-11-28")
	viper.SetDefault("oracles.acx_pre_usd", "0.1")

	// Cron defaults
	viper.SetDefault("crons.gap_detection_schedule", "*/5 * * * *")
	viper.SetDefault("crons.missed_fill_schedule", "*/10 * * * *")
	viper.SetDefault("crons.view_refresh_schedule", "*/30 * * * *")
	viper.SetDefault("crons.queue_monitor_schedule", "* * * * *")
	viper.SetDefault("crons.view_refresh_cooldown", "30s")
	viper.SetDefault("crons.queue_depth_threshold", 5000)
	viper.SetDefault("crons.gap_detection_max_results", 20)
	viper.SetDefault("crons.gap_interval_max_size", 100)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for _, chain := range config.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chain_id must be set for chain %q", chain.Name)
		}
		if chain.RPCURL == "" {
			return fmt.Errorf("rpc_url is required for chain %d", chain.ChainID)
		}
	}
	return nil
}

// Chain returns the configuration for the given chain id, or nil if not configured.
func (c *Config) Chain(chainID uint64) *ChainConfig {
	for i := range c.Chains {
		if c.Chains[i].ChainID == chainID {
			return &c.Chains[i]
		}
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// StageConcurrency returns the configured worker concurrency for a pipeline
// stage, falling back to the given default when unset.
func (p *PipelineConfig) StageConcurrency(stage string, fallback int) int {
	if n, ok := p.Concurrency[stage]; ok && n > 0 {
		return n
	}
	return fallback
}
