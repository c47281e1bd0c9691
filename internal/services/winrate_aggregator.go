package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
	"github.com/shopspring/decimal"
)

// combinationNone is the descriptor the upstream naming convention uses for
// signals carrying no pattern besides the base one. Descriptors starting with
// higherTFPrefix mark higher-timeframe variants of the base pattern; anything
// else is a " + "-joined list of co-occurring pattern names.
const (
	combinationNone = "None"
	higherTFPrefix  = "Higher_TF"
	comboSeparator  = " + "
)

// BasicGroup is one (direction, regime, timeframe) win-rate group from the
// first-level analysis of a pattern.
type BasicGroup struct {
	Direction      models.Direction
	MarketRegime   string
	Timeframe      string
	TotalSignals   int
	WinningSignals int
	WinRate        float64
}

// WinRateAggregator compiles win-rate statistics for patterns over resolved
// trade outcomes inside a rolling analysis window.
type WinRateAggregator struct {
	db     DBPool
	logger logging.Logger
	now    func() time.Time
}

func NewWinRateAggregator(db DBPool, logger logging.Logger) *WinRateAggregator {
	return &WinRateAggregator{db: db, logger: logger, now: time.Now}
}

// roundWinRate computes winning/total*100 rounded to one decimal place. The
// rounding must stay byte-stable across reruns, so it goes through decimal
// arithmetic rather than float formatting.
func roundWinRate(winning, total int) float64 {
	if total == 0 {
		return 0
	}
	rate, _ := decimal.NewFromInt(int64(winning) * 100).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		Float64()
	return rate
}

// Analyze runs the first-level analysis for a pattern within the period kind's
// window: outcomes grouped by direction, market regime and timeframe. Groups
// without any resolved outcome are suppressed.
func (a *WinRateAggregator) Analyze(ctx context.Context, patternName string, kind models.PeriodKind) ([]BasicGroup, error) {
	period, err := ResolvePeriod(kind, a.now())
	if err != nil {
		return nil, err
	}
	return a.analyzePattern(ctx, patternName, period)
}

func (a *WinRateAggregator) analyzePattern(ctx context.Context, patternName string, period models.AnalysisPeriod) ([]BasicGroup, error) {
	// Membership score impact decides direction attribution: positive
	// impacts count toward LONG analysis, negative toward SHORT.
	query := `
		SELECT
			o.direction,
			COALESCE(o.market_regime, 'unknown') AS market_regime,
			sp.timeframe,
			COUNT(*) AS total_signals,
			COUNT(*) FILTER (WHERE o.is_win) AS winning_signals
		FROM trade_outcomes o
		JOIN signal_patterns sp ON sp.signal_id = o.signal_id
		WHERE sp.pattern_name = $1
			AND ((o.direction = 'LONG' AND sp.score_impact > 0)
				OR (o.direction = 'SHORT' AND sp.score_impact < 0))
			AND o.entry_time >= $2
			AND o.entry_time < $3
		GROUP BY o.direction, COALESCE(o.market_regime, 'unknown'), sp.timeframe
		ORDER BY o.direction, market_regime, sp.timeframe
	`

	rows, err := a.db.Query(ctx, query, patternName, period.Start, period.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze pattern %s: %w", patternName, err)
	}
	defer rows.Close()

	var groups []BasicGroup
	for rows.Next() {
		var g BasicGroup
		if err := rows.Scan(&g.Direction, &g.MarketRegime, &g.Timeframe, &g.TotalSignals, &g.WinningSignals); err != nil {
			return nil, fmt.Errorf("failed to scan basic group: %w", err)
		}
		if g.TotalSignals == 0 {
			continue
		}
		g.WinRate = roundWinRate(g.WinningSignals, g.TotalSignals)
		groups = append(groups, g)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return groups, nil
}

// AnalyzeDetailed splits one qualifying basic group by the combination of
// patterns that fired alongside the base pattern on the same signal. Each
// distinct combination descriptor becomes its own statistic row.
func (a *WinRateAggregator) AnalyzeDetailed(ctx context.Context, patternName string, direction models.Direction, regime string, timeframe string, kind models.PeriodKind) ([]models.PatternStatistic, error) {
	period, err := ResolvePeriod(kind, a.now())
	if err != nil {
		return nil, err
	}
	return a.analyzeCombinations(ctx, patternName, direction, regime, timeframe, period)
}

func (a *WinRateAggregator) analyzeCombinations(ctx context.Context, patternName string, direction models.Direction, regime string, timeframe string, period models.AnalysisPeriod) ([]models.PatternStatistic, error) {
	query := `
		SELECT
			o.is_win,
			COALESCE(
				string_agg(other.pattern_name, ' + ' ORDER BY other.pattern_name)
					FILTER (WHERE other.pattern_name IS NOT NULL),
				'None'
			) AS combination
		FROM trade_outcomes o
		JOIN signal_patterns base ON base.signal_id = o.signal_id
			AND base.pattern_name = $1
			AND base.timeframe = $2
		LEFT JOIN signal_patterns other ON other.signal_id = o.signal_id
			AND other.pattern_name <> $1
			AND ((o.direction = 'LONG' AND other.score_impact > 0)
				OR (o.direction = 'SHORT' AND other.score_impact < 0))
		WHERE o.direction = $3
			AND COALESCE(o.market_regime, 'unknown') = $4
			AND ((o.direction = 'LONG' AND base.score_impact > 0)
				OR (o.direction = 'SHORT' AND base.score_impact < 0))
			AND o.entry_time >= $5
			AND o.entry_time < $6
		GROUP BY o.signal_id, o.is_win
	`

	rows, err := a.db.Query(ctx, query, patternName, timeframe, direction, regime, period.Start, period.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze combinations for %s: %w", patternName, err)
	}
	defer rows.Close()

	type comboCounts struct {
		total int
		wins  int
	}
	counts := make(map[string]*comboCounts)
	var order []string

	for rows.Next() {
		var isWin *bool
		var combination string
		if err := rows.Scan(&isWin, &combination); err != nil {
			return nil, fmt.Errorf("failed to scan combination row: %w", err)
		}

		c, ok := counts[combination]
		if !ok {
			c = &comboCounts{}
			counts[combination] = c
			order = append(order, combination)
		}
		c.total++
		if isWin != nil && *isWin {
			c.wins++
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	stats := make([]models.PatternStatistic, 0, len(order))
	for _, combination := range order {
		c := counts[combination]
		stats = append(stats, models.PatternStatistic{
			PatternName:     patternName,
			Direction:       direction,
			MarketRegime:    regime,
			Timeframe:       timeframe,
			CombinationType: combination,
			PatternList:     combinationPatternList(patternName, combination),
			TotalSignals:    c.total,
			WinningSignals:  c.wins,
			WinRate:         roundWinRate(c.wins, c.total),
			PeriodStart:     period.Start,
			PeriodEnd:       period.End,
		})
	}

	return stats, nil
}

// combinationPatternList expands a combination descriptor into the ordered
// pattern names participating in it. The descriptor grammar comes from the
// upstream extraction naming convention: "None", a "Higher_TF*" variant name,
// or pattern names joined by " + ".
func combinationPatternList(basePattern, combination string) []string {
	switch {
	case combination == combinationNone:
		return []string{basePattern}
	case strings.HasPrefix(combination, higherTFPrefix):
		return []string{basePattern, combination}
	default:
		return append([]string{basePattern}, strings.Split(combination, comboSeparator)...)
	}
}

// ListPatterns enumerates every pattern with at least one attributable
// outcome inside the window.
func (a *WinRateAggregator) ListPatterns(ctx context.Context, kind models.PeriodKind) ([]string, error) {
	period, err := ResolvePeriod(kind, a.now())
	if err != nil {
		return nil, err
	}
	return a.listPatterns(ctx, period)
}

func (a *WinRateAggregator) listPatterns(ctx context.Context, period models.AnalysisPeriod) ([]string, error) {
	query := `
		SELECT DISTINCT sp.pattern_name
		FROM signal_patterns sp
		JOIN trade_outcomes o ON o.signal_id = sp.signal_id
		WHERE o.entry_time >= $1
			AND o.entry_time < $2
		ORDER BY sp.pattern_name
	`

	rows, err := a.db.Query(ctx, query, period.Start, period.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan pattern name: %w", err)
		}
		patterns = append(patterns, name)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return patterns, nil
}
