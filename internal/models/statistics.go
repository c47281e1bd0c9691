package models

import (
	"time"
)

// PeriodKind selects the rolling analysis window.
type PeriodKind string

const (
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
)

// AnalysisPeriod is the closed date range statistics are computed over.
// Never persisted on its own; stamped onto statistic rows and run metadata.
type AnalysisPeriod struct {
	Start     time.Time `json:"period_start"`
	End       time.Time `json:"period_end"`
	DaysCount int       `json:"days_count"`
}

// PatternStatistic is one aggregated win-rate row for a pattern within a
// period. The natural key is (pattern, direction, regime, timeframe,
// combination type, period bounds).
type PatternStatistic struct {
	PatternName     string    `json:"pattern_name" db:"pattern_name"`
	Direction       Direction `json:"direction" db:"direction"`
	MarketRegime    string    `json:"market_regime" db:"market_regime"`
	Timeframe       string    `json:"timeframe" db:"timeframe"`
	CombinationType string    `json:"combination_type" db:"combination_type"`
	PatternList     []string  `json:"pattern_list" db:"pattern_list"`
	TotalSignals    int       `json:"total_signals" db:"total_signals"`
	WinningSignals  int       `json:"winning_signals" db:"winning_signals"`
	WinRate         float64   `json:"win_rate" db:"win_rate"`
	PeriodStart     time.Time `json:"period_start" db:"period_start"`
	PeriodEnd       time.Time `json:"period_end" db:"period_end"`
}

// RunMetadata is one append-only audit record per successful aggregation run.
type RunMetadata struct {
	RunID                   string     `json:"run_id" db:"run_id"`
	AnalysisType            string     `json:"analysis_type" db:"analysis_type"`
	PeriodStart             time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd               time.Time  `json:"period_end" db:"period_end"`
	CalculationTimestamp    time.Time  `json:"calculation_timestamp" db:"calculation_timestamp"`
	TotalPatternsCalculated int        `json:"total_patterns_calculated" db:"total_patterns_calculated"`
	Version                 string     `json:"version" db:"version"`
	Notes                   string     `json:"notes" db:"notes"`
}

// RunResult is the caller-visible outcome of one aggregation run. A run
// skipped because another holds the period lock is a success with
// Skipped=true, not an error.
type RunResult struct {
	RunID      string        `json:"run_id"`
	PeriodKind PeriodKind    `json:"period_kind"`
	SavedCount int           `json:"saved_count"`
	Duration   time.Duration `json:"duration"`
	Message    string        `json:"message"`
	Skipped    bool          `json:"skipped"`
}

// RecalculationResult summarizes one bulk outcome recalculation pass.
type RecalculationResult struct {
	SignalsProcessed int           `json:"signals_processed"`
	SignalsSkipped   int           `json:"signals_skipped"`
	Errors           int           `json:"errors"`
	Duration         time.Duration `json:"duration"`
}

// DirectionStats is a comparative summary of recent outcomes for one
// direction, or for both combined.
type DirectionStats struct {
	Direction       string   `json:"direction"`
	TotalSignals    int      `json:"total_signals"`
	Wins            int      `json:"wins"`
	Losses          int      `json:"losses"`
	Timeouts        int      `json:"timeouts"`
	WinRate         *float64 `json:"win_rate,omitempty"`
	AvgPnLPercent   *float64 `json:"avg_pnl_percent,omitempty"`
	TotalPnLUSD     *float64 `json:"total_pnl_usd,omitempty"`
	AvgHoursToClose *float64 `json:"avg_hours_to_close,omitempty"`
}

// RunFreshness is the last-run summary cached for monitoring.
type RunFreshness struct {
	RunID        string     `json:"run_id"`
	PeriodKind   PeriodKind `json:"period_kind"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	SavedCount   int        `json:"saved_count"`
	CalculatedAt time.Time  `json:"calculated_at"`
	Version      string     `json:"version"`
}
