package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/config"
	"github.com/elcrypto/scoring-analyzer/internal/database"
	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const lockNamePrefix = "save_pattern_analysis_"

// freshnessTTL bounds how long a stale last-run summary lingers in the cache.
const freshnessTTL = 14 * 24 * time.Hour

// FreshnessCache stores the last-run summary for monitoring. Satisfied by
// *database.RedisClient; may be nil when no cache is deployed.
type FreshnessCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// StatisticsOrchestrator owns the truncate-and-repopulate cycle for the
// pattern statistics tables. Each run rebuilds one period kind's table from
// scratch inside a single transaction, guarded by a non-blocking advisory
// lock so at most one rebuild per kind runs at a time.
type StatisticsOrchestrator struct {
	db         DBPool
	cache      FreshnessCache
	aggregator *WinRateAggregator
	cfg        config.AggregationConfig
	logger     logging.Logger
	now        func() time.Time
}

func NewStatisticsOrchestrator(db DBPool, cache FreshnessCache, aggregator *WinRateAggregator, cfg config.AggregationConfig, logger logging.Logger) *StatisticsOrchestrator {
	return &StatisticsOrchestrator{
		db:         db,
		cache:      cache,
		aggregator: aggregator,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run rebuilds the statistics table for one period kind. A concurrent run for
// the same kind makes this a no-op skip, not an error; weekly and monthly use
// distinct locks and tables and may run concurrently. On any failure the
// transaction rolls back, leaving the prior table contents intact and the
// lock released.
func (s *StatisticsOrchestrator) Run(ctx context.Context, kind models.PeriodKind, minWinRate float64, debug bool) (models.RunResult, error) {
	start := s.now()
	runID := uuid.New().String()
	log := s.logger.WithRunID(runID)

	period, err := ResolvePeriod(kind, start)
	if err != nil {
		return models.RunResult{RunID: runID, PeriodKind: kind, Message: err.Error()}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return s.failure(runID, kind, start, fmt.Errorf("failed to begin transaction: %w", err))
	}
	// Rollback after commit is a harmless no-op; this guarantees the
	// transaction (and with it the advisory lock) never outlives the run.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			log.Error("Failed to rollback transaction", "error", err.Error())
		}
	}()

	lockKey := database.AdvisoryLockKey(lockNamePrefix + string(kind))
	var acquired bool
	if err := tx.QueryRow(ctx, database.TryAdvisoryXactLockSQL, lockKey).Scan(&acquired); err != nil {
		return s.failure(runID, kind, start, fmt.Errorf("failed to try advisory lock: %w", err))
	}
	if !acquired {
		msg := fmt.Sprintf("another %s analysis run is in progress, skipping", kind)
		log.Info(msg, "period_kind", string(kind))
		return models.RunResult{
			RunID:      runID,
			PeriodKind: kind,
			SavedCount: 0,
			Duration:   s.now().Sub(start),
			Message:    msg,
			Skipped:    true,
		}, nil
	}

	// kind has been validated by ResolvePeriod; the table name is not
	// attacker-controlled.
	table := fmt.Sprintf("pattern_statistics_%s", kind)
	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
		return s.failure(runID, kind, start, fmt.Errorf("failed to truncate %s: %w", table, err))
	}

	patterns, err := s.aggregator.listPatterns(ctx, period)
	if err != nil {
		return s.failure(runID, kind, start, err)
	}

	savedCount := 0
	patternsWithRows := 0

	for _, pattern := range patterns {
		groups, err := s.aggregator.analyzePattern(ctx, pattern, period)
		if err != nil {
			return s.failure(runID, kind, start, err)
		}

		patternSaved := 0
		for _, group := range groups {
			if group.WinRate <= minWinRate {
				continue
			}

			stats, err := s.aggregator.analyzeCombinations(ctx, pattern, group.Direction, group.MarketRegime, group.Timeframe, period)
			if err != nil {
				return s.failure(runID, kind, start, err)
			}

			inserted, err := s.insertStatistics(ctx, tx, table, stats)
			if err != nil {
				return s.failure(runID, kind, start, err)
			}
			patternSaved += inserted
		}

		if patternSaved > 0 {
			patternsWithRows++
			savedCount += patternSaved
		}
		if debug {
			log.Debug("Pattern analyzed",
				"pattern", pattern, "groups", len(groups), "rows_saved", patternSaved)
		}
	}

	// Commit releases the advisory lock; the metadata append happens after,
	// outside the lock's critical section.
	if err := tx.Commit(ctx); err != nil {
		return s.failure(runID, kind, start, fmt.Errorf("failed to commit statistics rebuild: %w", err))
	}

	if err := s.writeMetadata(ctx, runID, kind, period, minWinRate, patternsWithRows); err != nil {
		return s.failure(runID, kind, start, err)
	}

	s.cacheFreshness(ctx, runID, kind, period, savedCount)

	duration := s.now().Sub(start)
	s.logger.LogAnalysisRun(string(kind), savedCount, duration.Milliseconds())

	return models.RunResult{
		RunID:      runID,
		PeriodKind: kind,
		SavedCount: savedCount,
		Duration:   duration,
		Message:    fmt.Sprintf("saved %d statistic rows for %d patterns", savedCount, patternsWithRows),
	}, nil
}

func (s *StatisticsOrchestrator) failure(runID string, kind models.PeriodKind, start time.Time, err error) (models.RunResult, error) {
	s.logger.WithRunID(runID).Error("Analysis run failed", "period_kind", string(kind), "error", err.Error())
	return models.RunResult{
		RunID:      runID,
		PeriodKind: kind,
		SavedCount: 0,
		Duration:   s.now().Sub(start),
		Message:    err.Error(),
	}, err
}

// insertStatistics bulk-inserts combination rows. Duplicate natural keys are
// silently skipped rather than errored.
func (s *StatisticsOrchestrator) insertStatistics(ctx context.Context, tx pgx.Tx, table string, stats []models.PatternStatistic) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			pattern_name, direction, market_regime, timeframe,
			combination_type, pattern_list,
			total_signals, winning_signals, win_rate,
			period_start, period_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
	`, table)

	inserted := 0
	for _, stat := range stats {
		tag, err := tx.Exec(ctx, query,
			stat.PatternName, stat.Direction, stat.MarketRegime, stat.Timeframe,
			stat.CombinationType, stat.PatternList,
			stat.TotalSignals, stat.WinningSignals, stat.WinRate,
			stat.PeriodStart, stat.PeriodEnd,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert statistic row for %s: %w", stat.PatternName, err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

func (s *StatisticsOrchestrator) writeMetadata(ctx context.Context, runID string, kind models.PeriodKind, period models.AnalysisPeriod, minWinRate float64, totalPatterns int) error {
	query := `
		INSERT INTO run_metadata (
			run_id, analysis_type, period_start, period_end,
			calculation_timestamp, total_patterns_calculated, version, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	notes := fmt.Sprintf("min_win_rate=%.1f days=%d", minWinRate, period.DaysCount)
	_, err := s.db.Exec(ctx, query,
		runID, string(kind), period.Start, period.End,
		s.now(), totalPatterns, s.cfg.Version, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

// cacheFreshness publishes the last-run summary for monitoring. Cache
// failures are logged, never escalated: the run itself has already succeeded.
func (s *StatisticsOrchestrator) cacheFreshness(ctx context.Context, runID string, kind models.PeriodKind, period models.AnalysisPeriod, savedCount int) {
	if s.cache == nil {
		return
	}

	freshness := models.RunFreshness{
		RunID:        runID,
		PeriodKind:   kind,
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
		SavedCount:   savedCount,
		CalculatedAt: s.now(),
		Version:      s.cfg.Version,
	}

	payload, err := json.Marshal(freshness)
	if err != nil {
		s.logger.WithRunID(runID).Warn("Failed to marshal freshness summary", "error", err.Error())
		return
	}

	key := FreshnessKey(kind)
	if err := s.cache.Set(ctx, key, payload, freshnessTTL); err != nil {
		s.logger.WithRunID(runID).Warn("Failed to cache freshness summary", "key", key, "error", err.Error())
	}
}

// FreshnessKey is the cache key holding the last-run summary for a period kind.
func FreshnessKey(kind models.PeriodKind) string {
	return fmt.Sprintf("analysis:last_run:%s", kind)
}
