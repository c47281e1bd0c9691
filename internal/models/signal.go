package models

import "time"

// Direction of a simulated trade. Every signal is evaluated for both.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Signal is one scoring observation produced by the upstream extraction
// pipeline. Read-only to the analyzer.
type Signal struct {
	ID             int64     `json:"id" db:"id"`
	TradingPairID  int       `json:"trading_pair_id" db:"trading_pair_id"`
	PairSymbol     string    `json:"pair_symbol" db:"pair_symbol"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	MarketRegime   string    `json:"market_regime" db:"market_regime"`
	TotalScore     float64   `json:"total_score" db:"total_score"`
	IndicatorScore float64   `json:"indicator_score" db:"indicator_score"`
	PatternScore   float64   `json:"pattern_score" db:"pattern_score"`
}

// PatternMembership links a signal to one detected pattern. The sign of
// ScoreImpact decides which direction the membership counts toward: positive
// impacts feed LONG analysis, negative feed SHORT.
type PatternMembership struct {
	SignalID    int64   `json:"signal_id" db:"signal_id"`
	PatternName string  `json:"pattern_name" db:"pattern_name"`
	Timeframe   string  `json:"timeframe" db:"timeframe"`
	ScoreImpact float64 `json:"score_impact" db:"score_impact"`
}

// Candle is one 5-minute OHLC sample of the pair's price history.
type Candle struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	High      float64   `json:"high_price" db:"high_price"`
	Low       float64   `json:"low_price" db:"low_price"`
	Close     float64   `json:"close_price" db:"close_price"`
}
