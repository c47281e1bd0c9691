package services

import (
	"context"
	"fmt"

	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
)

// DirectionSummaryService compares recent LONG and SHORT outcomes, plus a
// combined row, for operational reporting.
type DirectionSummaryService struct {
	db     DBPool
	logger logging.Logger
}

func NewDirectionSummaryService(db DBPool, logger logging.Logger) *DirectionSummaryService {
	return &DirectionSummaryService{db: db, logger: logger}
}

// Summarize aggregates outcomes processed in the last 24 hours per direction.
// Win rate excludes timeouts: wins / (wins + losses). Timeout-only groups get
// no win rate.
func (s *DirectionSummaryService) Summarize(ctx context.Context) ([]models.DirectionStats, error) {
	query := `
		SELECT
			COALESCE(direction, 'COMBINED') AS direction,
			COUNT(*) AS total_signals,
			COUNT(*) FILTER (WHERE is_win) AS wins,
			COUNT(*) FILTER (WHERE is_win = false) AS losses,
			COUNT(*) FILTER (WHERE is_win IS NULL AND exit_type = 'timeout') AS timeouts,
			AVG(pnl_percent) AS avg_pnl_percent,
			SUM(pnl_usd) AS total_pnl_usd,
			AVG(hours_to_close) FILTER (WHERE exit_type != 'timeout') AS avg_hours_to_close
		FROM trade_outcomes
		WHERE processed_at >= NOW() - INTERVAL '1 day'
		GROUP BY GROUPING SETS ((direction), ())
		ORDER BY direction
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize outcomes: %w", err)
	}
	defer rows.Close()

	var stats []models.DirectionStats
	for rows.Next() {
		var st models.DirectionStats
		if err := rows.Scan(&st.Direction, &st.TotalSignals, &st.Wins, &st.Losses,
			&st.Timeouts, &st.AvgPnLPercent, &st.TotalPnLUSD, &st.AvgHoursToClose); err != nil {
			return nil, fmt.Errorf("failed to scan direction stats: %w", err)
		}
		if decided := st.Wins + st.Losses; decided > 0 {
			rate := roundWinRate(st.Wins, decided)
			st.WinRate = &rate
		}
		stats = append(stats, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return stats, nil
}
