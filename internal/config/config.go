package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
	Strategy    StrategyConfig `mapstructure:"strategy"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalysisConfig controls the batch scan driver.
type AnalysisConfig struct {
	Workers        int    `mapstructure:"workers"`
	SignalCacheTTL string `mapstructure:"signal_cache_ttl"`
}

// StrategyConfig selects and parameterizes the analytical strategies. The
// list holds the strategy kinds enabled for batch scans.
type StrategyConfig struct {
	List       []string         `mapstructure:"list"`
	Overreact  OverreactConfig  `mapstructure:"overreact"`
	ProfitLock ProfitLockConfig `mapstructure:"profit_lock"`
}

// OverreactConfig parameterizes the overreaction drop detector.
// MaxAllowedFallback and MaxFallbackRate are derived from the recover
// parameters when left unset.
type OverreactConfig struct {
	TopDropPct         float64  `mapstructure:"top_drop_pct"`
	TargetRecoverRate  float64  `mapstructure:"target_recover_rate"`
	RecoverDays        int      `mapstructure:"recover_days"`
	RecoverSuccessRate float64  `mapstructure:"recover_success_rate"`
	MaxAllowedFallback *float64 `mapstructure:"max_allowed_fallback"`
	MaxFallbackRate    *float64 `mapstructure:"max_fallback_rate"`
}

// ProfitLockConfig parameterizes the trailing profit-lock sell pricer.
type ProfitLockConfig struct {
	MinimalProfit float64 `mapstructure:"minimal_profit"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects strategy parameters that would make the analytical
// thresholds meaningless.
func (c *Config) Validate() error {
	o := c.Strategy.Overreact
	if o.TopDropPct <= 0 || o.TopDropPct > 1 {
		return fmt.Errorf("strategy.overreact.top_drop_pct must be in (0, 1], got %v", o.TopDropPct)
	}
	if o.TargetRecoverRate <= 0 {
		return fmt.Errorf("strategy.overreact.target_recover_rate must be positive, got %v", o.TargetRecoverRate)
	}
	if o.RecoverDays < 1 {
		return fmt.Errorf("strategy.overreact.recover_days must be at least 1, got %d", o.RecoverDays)
	}
	if o.RecoverSuccessRate <= 0 || o.RecoverSuccessRate > 1 {
		return fmt.Errorf("strategy.overreact.recover_success_rate must be in (0, 1], got %v", o.RecoverSuccessRate)
	}
	if c.Strategy.ProfitLock.MinimalProfit < 0 {
		return fmt.Errorf("strategy.profit_lock.minimal_profit must not be negative, got %v", c.Strategy.ProfitLock.MinimalProfit)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1, got %d", c.Analysis.Workers)
	}
	if c.Analysis.SignalCacheTTL != "" {
		if _, err := time.ParseDuration(c.Analysis.SignalCacheTTL); err != nil {
			return fmt.Errorf("invalid analysis.signal_cache_ttl: %w", err)
		}
	}
	return nil
}

// SignalCacheTTL parses the configured cache TTL, falling back to 24h.
func (c *Config) SignalCacheTTL() time.Duration {
	ttl, err := time.ParseDuration(c.Analysis.SignalCacheTTL)
	if err != nil || ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "finance")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("analysis.workers", 4)
	viper.SetDefault("analysis.signal_cache_ttl", "24h")

	viper.SetDefault("strategy.list", []string{"overreact"})
	viper.SetDefault("strategy.overreact.top_drop_pct", 0.05)
	viper.SetDefault("strategy.overreact.target_recover_rate", 0.05)
	viper.SetDefault("strategy.overreact.recover_days", 5)
	viper.SetDefault("strategy.overreact.recover_success_rate", 0.9)
	viper.SetDefault("strategy.profit_lock.minimal_profit", 0.05)
}
