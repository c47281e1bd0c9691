package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/config"
	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
	"github.com/jackc/pgx/v5"
)

// Data-availability errors. The affected signal stays unresolved and the
// caller moves on; nothing is written for it.
var (
	ErrNoEntryPrice        = errors.New("no entry price available")
	ErrInsufficientHistory = errors.New("insufficient price history")
)

// candles per hour at the 5m timeframe, and the fraction of the expected
// window that must be present before a simulation is trusted
const (
	candlesPerHour      = 12
	minHistoryCoverage  = 0.75
	maxCandleSpreadFrac = 0.5
)

// OutcomeResolver simulates a signal's trade forward through its price
// history and persists the realized outcome per (signal, direction).
type OutcomeResolver struct {
	db     DBPool
	cfg    config.AnalysisConfig
	logger logging.Logger
}

func NewOutcomeResolver(db DBPool, cfg config.AnalysisConfig, logger logging.Logger) *OutcomeResolver {
	return &OutcomeResolver{db: db, cfg: cfg, logger: logger}
}

// SignalSeed derives the deterministic tie-break seed for a signal. The seed
// is a pure function of the signal identifier: SHA-256 over a prefixed string
// form, first 8 bytes big-endian, reduced into the 32-bit seed space. The
// same signal always gets the same seed no matter which batch it is processed
// in or what ran before it.
func SignalSeed(signalID int64) uint32 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("scoring_history_id_%d", signalID)))
	return uint32(binary.BigEndian.Uint64(sum[:8]) % (1 << 32))
}

// stopLossFirst breaks the both-boundaries-in-one-candle tie. A generator is
// seeded from the signal identifier immediately before the single draw and
// used for nothing else, so no shared random state survives across signals.
func stopLossFirst(signalID int64) bool {
	rng := rand.New(rand.NewSource(int64(SignalSeed(signalID))))
	return rng.Intn(2) == 0
}

type entryData struct {
	price float64
	time  time.Time
}

// entryPrice finds the first candle at or after signal time plus the entry
// delay and derives a direction-pessimistic fill from its range: LONG fills
// at 75% of the candle range, SHORT at 25%.
func (r *OutcomeResolver) entryPrice(ctx context.Context, tradingPairID int, signalTime time.Time, direction models.Direction) (*entryData, error) {
	entryFrom := signalTime.Add(time.Duration(r.cfg.EntryDelayMinutes) * time.Minute)

	query := `
		SELECT timestamp, high_price, low_price
		FROM market_data_aggregated
		WHERE trading_pair_id = $1
			AND timeframe = '5m'
			AND timestamp >= $2
		ORDER BY timestamp ASC
		LIMIT 1
	`

	var ts time.Time
	var high, low float64
	err := r.db.QueryRow(ctx, query, tradingPairID, entryFrom).Scan(&ts, &high, &low)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoEntryPrice
		}
		return nil, fmt.Errorf("failed to query entry candle: %w", err)
	}

	if high <= 0 || low <= 0 || high < low {
		r.logger.WithComponent("outcome_resolver").Warn("Invalid entry candle prices",
			"trading_pair_id", tradingPairID, "high", high, "low", low)
		return nil, ErrNoEntryPrice
	}
	// A spread over 50% within 5 minutes is a data error, not a market move.
	if (high-low)/low > maxCandleSpreadFrac {
		r.logger.WithComponent("outcome_resolver").Warn("Anomalous candle spread, skipping",
			"trading_pair_id", tradingPairID, "high", high, "low", low)
		return nil, ErrNoEntryPrice
	}

	fill := 0.75
	if direction == models.DirectionShort {
		fill = 0.25
	}

	return &entryData{
		price: low + (high-low)*fill,
		time:  ts,
	}, nil
}

// priceHistory loads the 5m candles covering the analysis window after entry.
func (r *OutcomeResolver) priceHistory(ctx context.Context, tradingPairID int, entryTime time.Time) ([]models.Candle, error) {
	windowEnd := entryTime.Add(time.Duration(r.cfg.AnalysisHours) * time.Hour)

	query := `
		SELECT timestamp, high_price, low_price, close_price
		FROM market_data_aggregated
		WHERE trading_pair_id = $1
			AND timeframe = '5m'
			AND timestamp >= $2
			AND timestamp <= $3
		ORDER BY timestamp ASC
	`

	rows, err := r.db.Query(ctx, query, tradingPairID, entryTime, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return candles, nil
}

// Simulate walks the price history from entry and determines the exit. The
// first boundary touched wins; when take-profit and stop-loss are both inside
// one candle's range the ordering is unresolvable at this granularity and the
// signal-seeded coin flip decides. No boundary touched means a timeout close
// at the last candle with no win/loss attributed.
func (r *OutcomeResolver) Simulate(signalID int64, direction models.Direction, entryPrice float64, history []models.Candle, entryTime time.Time) (models.TradeOutcome, error) {
	if len(history) == 0 {
		return models.TradeOutcome{}, ErrInsufficientHistory
	}

	tpFrac := r.cfg.TakeProfitPercent / 100
	slFrac := r.cfg.StopLossPercent / 100

	var tpPrice, slPrice float64
	if direction == models.DirectionLong {
		tpPrice = entryPrice * (1 + tpFrac)
		slPrice = entryPrice * (1 - slFrac)
	} else {
		tpPrice = entryPrice * (1 - tpFrac)
		slPrice = entryPrice * (1 + slFrac)
	}

	outcome := models.TradeOutcome{
		SignalID:   signalID,
		Direction:  direction,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
	}

	closed := false
	absoluteMax := entryPrice
	absoluteMin := entryPrice

	// Running peak in the trade's favorable direction, for drawdown tracking.
	runningBest := entryPrice
	maxDrawdownFromPeak := 0.0

	for i := range history {
		candle := &history[i]
		hoursPassed := candle.Timestamp.Sub(entryTime).Hours()

		if candle.High > absoluteMax {
			absoluteMax = candle.High
		}
		if candle.Low < absoluteMin {
			absoluteMin = candle.Low
		}

		if !closed {
			var slHit, tpHit bool
			if direction == models.DirectionLong {
				slHit = candle.Low <= slPrice
				tpHit = candle.High >= tpPrice
			} else {
				slHit = candle.High >= slPrice
				tpHit = candle.Low <= tpPrice
			}

			if slHit || tpHit {
				hitStopLoss := slHit
				if slHit && tpHit {
					hitStopLoss = stopLossFirst(signalID)
				}

				closed = true
				exitTime := candle.Timestamp
				outcome.ExitTime = &exitTime
				hours := hoursPassed
				outcome.HoursToClose = &hours

				win := !hitStopLoss
				outcome.IsWin = &win
				if hitStopLoss {
					outcome.ExitType = models.ExitStopLoss
					outcome.ExitPrice = slPrice
				} else {
					outcome.ExitType = models.ExitTakeProfit
					outcome.ExitPrice = tpPrice
				}
			}
		}

		if direction == models.DirectionLong {
			if candle.High > runningBest {
				runningBest = candle.High
			}
			if runningBest > 0 {
				drawdown := (runningBest - candle.Low) / runningBest * 100
				if drawdown > maxDrawdownFromPeak {
					maxDrawdownFromPeak = drawdown
				}
			}
		} else {
			if candle.Low < runningBest {
				runningBest = candle.Low
			}
			if runningBest > 0 {
				drawdown := (candle.High - runningBest) / runningBest * 100
				if drawdown > maxDrawdownFromPeak {
					maxDrawdownFromPeak = drawdown
				}
			}
		}
	}

	if !closed {
		last := history[len(history)-1]
		exitTime := last.Timestamp
		hours := float64(r.cfg.AnalysisHours)
		outcome.ExitType = models.ExitTimeout
		outcome.ExitPrice = last.Close
		outcome.ExitTime = &exitTime
		outcome.HoursToClose = &hours
	}

	notional := r.cfg.PositionSize * float64(r.cfg.Leverage)
	if direction == models.DirectionLong {
		outcome.BestPrice = absoluteMax
		outcome.WorstPrice = absoluteMin
		outcome.MaxPotentialProfitPercent = (absoluteMax - entryPrice) / entryPrice * 100
		outcome.PnLPercent = (outcome.ExitPrice - entryPrice) / entryPrice * 100
	} else {
		outcome.BestPrice = absoluteMin
		outcome.WorstPrice = absoluteMax
		outcome.MaxPotentialProfitPercent = (entryPrice - absoluteMin) / entryPrice * 100
		outcome.PnLPercent = (entryPrice - outcome.ExitPrice) / entryPrice * 100
	}
	outcome.MaxDrawdownPercent = maxDrawdownFromPeak
	outcome.PnLUSD = notional * outcome.PnLPercent / 100

	return outcome, nil
}

// ResolveSignal evaluates both directions of one signal against the shared
// price history and persists/replaces the outcome rows. Data-availability
// problems leave the signal unresolved without writing anything.
func (r *OutcomeResolver) ResolveSignal(ctx context.Context, signal models.Signal) error {
	longEntry, err := r.entryPrice(ctx, signal.TradingPairID, signal.Timestamp, models.DirectionLong)
	if err != nil {
		return err
	}
	shortEntry, err := r.entryPrice(ctx, signal.TradingPairID, signal.Timestamp, models.DirectionShort)
	if err != nil {
		return err
	}

	history, err := r.priceHistory(ctx, signal.TradingPairID, longEntry.time)
	if err != nil {
		return err
	}

	minCandles := int(float64(r.cfg.AnalysisHours*candlesPerHour) * minHistoryCoverage)
	if len(history) < minCandles {
		return fmt.Errorf("%w: got %d candles, need %d", ErrInsufficientHistory, len(history), minCandles)
	}

	longOutcome, err := r.Simulate(signal.ID, models.DirectionLong, longEntry.price, history, longEntry.time)
	if err != nil {
		return err
	}
	shortOutcome, err := r.Simulate(signal.ID, models.DirectionShort, shortEntry.price, history, shortEntry.time)
	if err != nil {
		return err
	}

	for _, outcome := range []*models.TradeOutcome{&longOutcome, &shortOutcome} {
		outcome.PairSymbol = signal.PairSymbol
		outcome.MarketRegime = signal.MarketRegime
		if err := r.saveOutcome(ctx, outcome); err != nil {
			return err
		}
	}

	return nil
}

// saveOutcome inserts or fully replaces the outcome row for the
// (signal, direction) key.
func (r *OutcomeResolver) saveOutcome(ctx context.Context, outcome *models.TradeOutcome) error {
	query := `
		INSERT INTO trade_outcomes (
			signal_id, pair_symbol, direction, market_regime,
			entry_price, entry_time, exit_type, exit_price, exit_time,
			is_win, pnl_percent, pnl_usd,
			best_price, worst_price,
			max_potential_profit_percent, max_drawdown_percent, hours_to_close
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (signal_id, direction) DO UPDATE SET
			market_regime = EXCLUDED.market_regime,
			entry_price = EXCLUDED.entry_price,
			entry_time = EXCLUDED.entry_time,
			exit_type = EXCLUDED.exit_type,
			exit_price = EXCLUDED.exit_price,
			exit_time = EXCLUDED.exit_time,
			is_win = EXCLUDED.is_win,
			pnl_percent = EXCLUDED.pnl_percent,
			pnl_usd = EXCLUDED.pnl_usd,
			best_price = EXCLUDED.best_price,
			worst_price = EXCLUDED.worst_price,
			max_potential_profit_percent = EXCLUDED.max_potential_profit_percent,
			max_drawdown_percent = EXCLUDED.max_drawdown_percent,
			hours_to_close = EXCLUDED.hours_to_close,
			processed_at = NOW()
	`

	start := time.Now()
	tag, err := r.db.Exec(ctx, query,
		outcome.SignalID, outcome.PairSymbol, outcome.Direction, outcome.MarketRegime,
		outcome.EntryPrice, outcome.EntryTime, outcome.ExitType, outcome.ExitPrice, outcome.ExitTime,
		outcome.IsWin, outcome.PnLPercent, outcome.PnLUSD,
		outcome.BestPrice, outcome.WorstPrice,
		outcome.MaxPotentialProfitPercent, outcome.MaxDrawdownPercent, outcome.HoursToClose,
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome for signal %d %s: %w", outcome.SignalID, outcome.Direction, err)
	}

	r.logger.LogDatabaseOperation("upsert", "trade_outcomes", time.Since(start).Milliseconds(), tag.RowsAffected())
	return nil
}
