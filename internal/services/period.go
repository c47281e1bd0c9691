package services

import (
	"fmt"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/models"
)

// ErrUnknownPeriod reports a period kind outside weekly/monthly. It signals a
// configuration error, not a data problem.
var ErrUnknownPeriod = fmt.Errorf("unknown period kind")

// Window offsets in days. The last two days are always excluded: their
// outcomes may still be unresolved because the price-history window has not
// elapsed, and including them would make win rates depend on when the
// aggregation ran.
const (
	recentCutoffDays = 2
	weeklySpanDays   = 7
	monthlySpanDays  = 30
)

// ResolvePeriod maps a period kind and a reference date to the closed date
// range all statistics are computed over. Every component that needs a time
// window derives it from here, so the resolver, aggregator and recalculator
// can never disagree about what "weekly" means.
func ResolvePeriod(kind models.PeriodKind, reference time.Time) (models.AnalysisPeriod, error) {
	ref := time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, time.UTC)
	end := ref.AddDate(0, 0, -recentCutoffDays)

	switch kind {
	case models.PeriodWeekly:
		return models.AnalysisPeriod{
			Start:     end.AddDate(0, 0, -(weeklySpanDays - 1)),
			End:       end,
			DaysCount: weeklySpanDays,
		}, nil
	case models.PeriodMonthly:
		return models.AnalysisPeriod{
			Start:     end.AddDate(0, 0, -(monthlySpanDays - 1)),
			End:       end,
			DaysCount: monthlySpanDays,
		}, nil
	default:
		return models.AnalysisPeriod{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, kind)
	}
}
