package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Environment: "test",
		LogLevel:    "debug",
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: "30s",
		},
		Analysis: AnalysisConfig{
			TakeProfitPercent: 3.0,
			StopLossPercent:   3.0,
			PositionSize:      100.0,
			Leverage:          10,
			AnalysisHours:     3,
			EntryDelayMinutes: 15,
			BatchSize:         10000,
			ProgressInterval:  500,
		},
		Aggregation: AggregationConfig{
			MinWinRate: 50.0,
			Version:    "v7.0",
		},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero take profit", func(c *Config) { c.Analysis.TakeProfitPercent = 0 }},
		{"negative stop loss", func(c *Config) { c.Analysis.StopLossPercent = -1 }},
		{"zero analysis hours", func(c *Config) { c.Analysis.AnalysisHours = 0 }},
		{"zero leverage", func(c *Config) { c.Analysis.Leverage = 0 }},
		{"min win rate above 100", func(c *Config) { c.Aggregation.MinWinRate = 101 }},
		{"negative min win rate", func(c *Config) { c.Aggregation.MinWinRate = -0.1 }},
		{"bad shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "30s", cfg.Server.ShutdownTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "fox_crypto", cfg.Database.DBName)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 3.0, cfg.Analysis.TakeProfitPercent)
	assert.Equal(t, 3.0, cfg.Analysis.StopLossPercent)
	assert.Equal(t, 100.0, cfg.Analysis.PositionSize)
	assert.Equal(t, 10, cfg.Analysis.Leverage)
	assert.Equal(t, 3, cfg.Analysis.AnalysisHours)
	assert.Equal(t, 15, cfg.Analysis.EntryDelayMinutes)
	assert.Equal(t, 500, cfg.Analysis.ProgressInterval)
	assert.Equal(t, 50.0, cfg.Aggregation.MinWinRate)
	assert.Equal(t, "v7.0", cfg.Aggregation.Version)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("ANALYSIS_TAKE_PROFIT_PERCENT", "5.0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 5.0, cfg.Analysis.TakeProfitPercent)
}
