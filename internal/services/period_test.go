package services

import (
	"errors"
	"testing"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolvePeriod(t *testing.T) {
	tests := []struct {
		name      string
		kind      models.PeriodKind
		reference time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantDays  int
	}{
		{
			name:      "weekly window excludes last two days",
			kind:      models.PeriodWeekly,
			reference: date(2026, 8, 28),
			wantStart: date(2026, 8, 20),
			wantEnd:   date(2026, 8, 26),
			wantDays:  7,
		},
		{
			name:      "monthly window excludes last two days",
			kind:      models.PeriodMonthly,
			reference: date(2026, 8, 28),
			wantStart: date(2026, 7, 28),
			wantEnd:   date(2026, 8, 26),
			wantDays:  30,
		},
		{
			name:      "weekly across month boundary",
			kind:      models.PeriodWeekly,
			reference: date(2026, 3, 2),
			wantStart: date(2026, 2, 22),
			wantEnd:   date(2026, 2, 28),
			wantDays:  7,
		},
		{
			name:      "monthly across year boundary",
			kind:      models.PeriodMonthly,
			reference: date(2026, 1, 10),
			wantStart: date(2025, 12, 10),
			wantEnd:   date(2026, 1, 8),
			wantDays:  30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, err := ResolvePeriod(tt.kind, tt.reference)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, period.Start)
			assert.Equal(t, tt.wantEnd, period.End)
			assert.Equal(t, tt.wantDays, period.DaysCount)
		})
	}
}

func TestResolvePeriod_NormalizesReferenceTime(t *testing.T) {
	// A mid-day reference in a non-UTC zone resolves to the same window as
	// the UTC midnight of the same calendar date.
	loc := time.FixedZone("UTC+3", 3*3600)
	midday := time.Date(2026, 8, 28, 15, 42, 7, 0, loc)

	fromMidday, err := ResolvePeriod(models.PeriodWeekly, midday)
	require.NoError(t, err)
	fromMidnight, err := ResolvePeriod(models.PeriodWeekly, date(2026, 8, 28))
	require.NoError(t, err)

	assert.Equal(t, fromMidnight, fromMidday)
}

func TestResolvePeriod_UnknownKind(t *testing.T) {
	_, err := ResolvePeriod(models.PeriodKind("quarterly"), date(2026, 8, 28))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPeriod))
}

func TestResolvePeriod_SpanArithmetic(t *testing.T) {
	// Inclusive day count matches the stamped DaysCount for any reference.
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly} {
		ref := date(2026, 8, 28)
		for i := 0; i < 90; i++ {
			period, err := ResolvePeriod(kind, ref.AddDate(0, 0, i))
			require.NoError(t, err)
			gotDays := int(period.End.Sub(period.Start).Hours()/24) + 1
			assert.Equal(t, period.DaysCount, gotDays)
		}
	}
}
