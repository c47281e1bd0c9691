package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/config"
	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
)

// BulkRecalculator re-resolves outcomes for every signal inside a rolling
// window, oldest first. Reruns overwrite rather than duplicate, so it is the
// backfill/repair tool after resolver changes.
type BulkRecalculator struct {
	db       DBPool
	resolver *OutcomeResolver
	cfg      config.AnalysisConfig
	logger   logging.Logger
	now      func() time.Time
}

func NewBulkRecalculator(db DBPool, resolver *OutcomeResolver, cfg config.AnalysisConfig, logger logging.Logger) *BulkRecalculator {
	return &BulkRecalculator{
		db:       db,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Recalculate walks all signals timestamped within the last daysAgo days and
// re-runs the outcome resolution for both directions of each. Per-signal
// failures are isolated: data gaps and unexpected errors are counted and
// logged, never abort the pass.
func (b *BulkRecalculator) Recalculate(ctx context.Context, daysAgo int) (models.RecalculationResult, error) {
	if daysAgo <= 0 {
		return models.RecalculationResult{}, fmt.Errorf("days_ago must be positive, got %d", daysAgo)
	}

	start := b.now()
	from := start.AddDate(0, 0, -daysAgo)
	log := b.logger.WithComponent("bulk_recalculator")

	signals, err := b.loadSignals(ctx, from, start)
	if err != nil {
		return models.RecalculationResult{}, err
	}

	log.Info("Starting bulk recalculation",
		"signals", len(signals), "days_ago", daysAgo)

	result := models.RecalculationResult{}
	progressInterval := b.cfg.ProgressInterval
	if progressInterval <= 0 {
		progressInterval = 500
	}

	for i, signal := range signals {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := b.resolver.ResolveSignal(ctx, signal)
		switch {
		case err == nil:
			result.SignalsProcessed++
		case errors.Is(err, ErrNoEntryPrice) || errors.Is(err, ErrInsufficientHistory):
			result.SignalsSkipped++
		default:
			result.Errors++
			b.logger.WithSignalID(signal.ID).Error("Failed to resolve signal outcome",
				"pair_symbol", signal.PairSymbol, "error", err.Error())
		}

		if (i+1)%progressInterval == 0 {
			log.Info("Recalculation progress",
				"processed", i+1, "total", len(signals))
		}
	}

	result.Duration = b.now().Sub(start)
	log.Info("Bulk recalculation finished",
		"processed", result.SignalsProcessed,
		"skipped", result.SignalsSkipped,
		"errors", result.Errors,
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// loadSignals reads the window's signals with the market regime active at
// each signal's time, oldest first.
func (b *BulkRecalculator) loadSignals(ctx context.Context, from, to time.Time) ([]models.Signal, error) {
	query := `
		SELECT
			sh.id,
			sh.trading_pair_id,
			sh.pair_symbol,
			sh.timestamp,
			COALESCE(mr.regime, 'unknown') AS market_regime,
			sh.total_score,
			sh.indicator_score,
			sh.pattern_score
		FROM scoring_history sh
		LEFT JOIN LATERAL (
			SELECT regime
			FROM market_regime mr
			WHERE mr.timestamp <= sh.timestamp
				AND mr.timeframe = '4h'
			ORDER BY mr.timestamp DESC
			LIMIT 1
		) mr ON true
		WHERE sh.timestamp >= $1
			AND sh.timestamp < $2
		ORDER BY sh.timestamp ASC
	`

	rows, err := b.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		if err := rows.Scan(&s.ID, &s.TradingPairID, &s.PairSymbol, &s.Timestamp,
			&s.MarketRegime, &s.TotalScore, &s.IndicatorScore, &s.PatternScore); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return signals, nil
}
