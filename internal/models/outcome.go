package models

import "time"

// Exit types. A timeout close carries no win/loss attribution.
const (
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
	ExitTimeout    = "timeout"
)

// TradeOutcome is the realized result of simulating one signal in one
// direction through its subsequent price history. Unique per
// (signal_id, direction); recomputation replaces the prior row.
type TradeOutcome struct {
	SignalID     int64     `json:"signal_id" db:"signal_id"`
	PairSymbol   string    `json:"pair_symbol" db:"pair_symbol"`
	Direction    Direction `json:"direction" db:"direction"`
	MarketRegime string    `json:"market_regime" db:"market_regime"`

	EntryPrice float64    `json:"entry_price" db:"entry_price"`
	EntryTime  time.Time  `json:"entry_time" db:"entry_time"`
	ExitType   string     `json:"exit_type" db:"exit_type"`
	ExitPrice  float64    `json:"exit_price" db:"exit_price"`
	ExitTime   *time.Time `json:"exit_time,omitempty" db:"exit_time"`

	// IsWin is nil for timeout closes.
	IsWin *bool `json:"is_win,omitempty" db:"is_win"`

	PnLPercent float64 `json:"pnl_percent" db:"pnl_percent"`
	PnLUSD     float64 `json:"pnl_usd" db:"pnl_usd"`

	BestPrice                 float64  `json:"best_price" db:"best_price"`
	WorstPrice                float64  `json:"worst_price" db:"worst_price"`
	MaxPotentialProfitPercent float64  `json:"max_potential_profit_percent" db:"max_potential_profit_percent"`
	MaxDrawdownPercent        float64  `json:"max_drawdown_percent" db:"max_drawdown_percent"`
	HoursToClose              *float64 `json:"hours_to_close,omitempty" db:"hours_to_close"`
}
