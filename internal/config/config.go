package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
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

// AnalysisConfig holds the trade simulation parameters applied to every
// signal when resolving its outcome.
type AnalysisConfig struct {
	TakeProfitPercent float64 `mapstructure:"take_profit_percent"`
	StopLossPercent   float64 `mapstructure:"stop_loss_percent"`
	PositionSize      float64 `mapstructure:"position_size"`
	Leverage          int     `mapstructure:"leverage"`
	AnalysisHours     int     `mapstructure:"analysis_hours"`
	EntryDelayMinutes int     `mapstructure:"entry_delay_minutes"`
	BatchSize         int     `mapstructure:"batch_size"`
	ProgressInterval  int     `mapstructure:"progress_interval"`
}

// AggregationConfig holds parameters for the win-rate statistics rebuild.
type AggregationConfig struct {
	MinWinRate float64 `mapstructure:"min_win_rate"`
	Version    string  `mapstructure:"version"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
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

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Analysis.TakeProfitPercent <= 0 || c.Analysis.StopLossPercent <= 0 {
		return fmt.Errorf("take_profit_percent and stop_loss_percent must be positive, got %.2f / %.2f",
			c.Analysis.TakeProfitPercent, c.Analysis.StopLossPercent)
	}
	if c.Analysis.AnalysisHours <= 0 {
		return fmt.Errorf("analysis_hours must be positive, got %d", c.Analysis.AnalysisHours)
	}
	if c.Analysis.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %d", c.Analysis.Leverage)
	}
	if c.Aggregation.MinWinRate < 0 || c.Aggregation.MinWinRate > 100 {
		return fmt.Errorf("min_win_rate must be within [0, 100], got %.2f", c.Aggregation.MinWinRate)
	}
	if c.Server.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown timeout duration: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "elcrypto")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "fox_crypto")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Analysis
	viper.SetDefault("analysis.take_profit_percent", 3.0)
	viper.SetDefault("analysis.stop_loss_percent", 3.0)
	viper.SetDefault("analysis.position_size", 100.0)
	viper.SetDefault("analysis.leverage", 10)
	viper.SetDefault("analysis.analysis_hours", 3)
	viper.SetDefault("analysis.entry_delay_minutes", 15)
	viper.SetDefault("analysis.batch_size", 10000)
	viper.SetDefault("analysis.progress_interval", 500)

	// Aggregation
	viper.SetDefault("aggregation.min_win_rate", 50.0)
	viper.SetDefault("aggregation.version", "v7.0")
}
