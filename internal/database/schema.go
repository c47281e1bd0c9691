package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Owned tables. Upstream tables (scoring_history, signal_patterns,
// market_regime, market_data_aggregated) are provisioned by the extraction and
// ingestion services and are only read here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trade_outcomes (
		id SERIAL PRIMARY KEY,
		signal_id BIGINT NOT NULL,
		pair_symbol VARCHAR(50) NOT NULL,
		direction VARCHAR(10) NOT NULL,
		market_regime VARCHAR(50),
		entry_price DECIMAL(20,8),
		entry_time TIMESTAMP WITH TIME ZONE,
		exit_type VARCHAR(50),
		exit_price DECIMAL(20,8),
		exit_time TIMESTAMP WITH TIME ZONE,
		is_win BOOLEAN,
		pnl_percent DECIMAL(10,4),
		pnl_usd DECIMAL(15,2),
		best_price DECIMAL(20,8),
		worst_price DECIMAL(20,8),
		max_potential_profit_percent DECIMAL(10,4),
		max_drawdown_percent DECIMAL(10,4),
		hours_to_close DECIMAL(10,2),
		processed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(signal_id, direction)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_outcomes_signal
		ON trade_outcomes(signal_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_outcomes_entry_time
		ON trade_outcomes(entry_time DESC)`,
	`CREATE TABLE IF NOT EXISTS pattern_statistics_weekly (
		id SERIAL PRIMARY KEY,
		pattern_name VARCHAR(100) NOT NULL,
		direction VARCHAR(10) NOT NULL,
		market_regime VARCHAR(50) NOT NULL,
		timeframe VARCHAR(10) NOT NULL,
		combination_type VARCHAR(255) NOT NULL,
		pattern_list TEXT[],
		total_signals INTEGER NOT NULL,
		winning_signals INTEGER NOT NULL,
		win_rate DECIMAL(5,1) NOT NULL,
		period_start TIMESTAMP WITH TIME ZONE NOT NULL,
		period_end TIMESTAMP WITH TIME ZONE NOT NULL,
		UNIQUE(pattern_name, direction, market_regime, timeframe, combination_type, period_start, period_end)
	)`,
	`CREATE TABLE IF NOT EXISTS pattern_statistics_monthly (
		id SERIAL PRIMARY KEY,
		pattern_name VARCHAR(100) NOT NULL,
		direction VARCHAR(10) NOT NULL,
		market_regime VARCHAR(50) NOT NULL,
		timeframe VARCHAR(10) NOT NULL,
		combination_type VARCHAR(255) NOT NULL,
		pattern_list TEXT[],
		total_signals INTEGER NOT NULL,
		winning_signals INTEGER NOT NULL,
		win_rate DECIMAL(5,1) NOT NULL,
		period_start TIMESTAMP WITH TIME ZONE NOT NULL,
		period_end TIMESTAMP WITH TIME ZONE NOT NULL,
		UNIQUE(pattern_name, direction, market_regime, timeframe, combination_type, period_start, period_end)
	)`,
	`CREATE TABLE IF NOT EXISTS run_metadata (
		id SERIAL PRIMARY KEY,
		run_id UUID NOT NULL,
		analysis_type VARCHAR(50) NOT NULL,
		period_start TIMESTAMP WITH TIME ZONE NOT NULL,
		period_end TIMESTAMP WITH TIME ZONE NOT NULL,
		calculation_timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		total_patterns_calculated INTEGER NOT NULL,
		version VARCHAR(20) NOT NULL,
		notes TEXT
	)`,
}

// EnsureSchema creates the analyzer's result tables when missing. Safe to run
// on every startup.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	logrus.Info("Result tables ready")
	return nil
}
