package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecalculator(t *testing.T) (*BulkRecalculator, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	logger := logging.NewTestLogger()
	resolver := NewOutcomeResolver(mockPool, testAnalysisConfig(), logger)
	b := NewBulkRecalculator(mockPool, resolver, testAnalysisConfig(), logger)
	b.now = func() time.Time { return date(2026, 8, 28) }
	return b, mockPool
}

func signalRows(rows *pgxmock.Rows, id int64, pairID int, symbol string, ts time.Time) *pgxmock.Rows {
	return rows.AddRow(id, pairID, symbol, ts, "trending", 7.5, 4.0, 3.5)
}

func TestRecalculate_RejectsNonPositiveWindow(t *testing.T) {
	b, _ := newTestRecalculator(t)

	for _, days := range []int{0, -5} {
		_, err := b.Recalculate(context.Background(), days)
		assert.Error(t, err)
	}
}

func TestRecalculate_IsolatesPerSignalFailures(t *testing.T) {
	b, mockPool := newTestRecalculator(t)

	from := date(2026, 7, 29)
	to := date(2026, 8, 28)
	ts := date(2026, 8, 10)
	entryFrom := ts.Add(15 * time.Minute)

	rows := pgxmock.NewRows([]string{
		"id", "trading_pair_id", "pair_symbol", "timestamp",
		"market_regime", "total_score", "indicator_score", "pattern_score",
	})
	signalRows(rows, 1, 10, "BTCUSDT", ts)
	signalRows(rows, 2, 11, "ETHUSDT", ts)
	signalRows(rows, 3, 12, "SOLUSDT", ts)

	mockPool.ExpectQuery("FROM scoring_history sh").
		WithArgs(from, to).
		WillReturnRows(rows)

	// Signal 1 resolves cleanly.
	mockPool.ExpectQuery("SELECT timestamp, high_price, low_price").
		WithArgs(anyArgs(2)...).
		WillReturnRows(entryCandleRows(entryFrom, 101, 99))
	mockPool.ExpectQuery("SELECT timestamp, high_price, low_price").
		WithArgs(anyArgs(2)...).
		WillReturnRows(entryCandleRows(entryFrom, 101, 99))
	mockPool.ExpectQuery("SELECT timestamp, high_price, low_price, close_price").
		WithArgs(anyArgs(3)...).
		WillReturnRows(historyRows(entryFrom, 36, 101, 99, 100))
	mockPool.ExpectExec("INSERT INTO trade_outcomes").
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO trade_outcomes").
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Signal 2 has no entry candle: skipped, not an error.
	mockPool.ExpectQuery("SELECT timestamp, high_price, low_price").
		WithArgs(anyArgs(2)...).
		WillReturnError(pgx.ErrNoRows)

	// Signal 3 hits an infrastructure failure: counted, pass continues.
	mockPool.ExpectQuery("SELECT timestamp, high_price, low_price").
		WithArgs(anyArgs(2)...).
		WillReturnError(errors.New("connection reset"))

	result, err := b.Recalculate(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SignalsProcessed)
	assert.Equal(t, 1, result.SignalsSkipped)
	assert.Equal(t, 1, result.Errors)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecalculate_EmptyWindow(t *testing.T) {
	b, mockPool := newTestRecalculator(t)

	mockPool.ExpectQuery("FROM scoring_history sh").
		WithArgs(anyArgs(2)...).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "trading_pair_id", "pair_symbol", "timestamp",
			"market_regime", "total_score", "indicator_score", "pattern_score",
		}))

	result, err := b.Recalculate(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, result.SignalsProcessed)
	assert.Zero(t, result.SignalsSkipped)
	assert.Zero(t, result.Errors)
}

func TestRecalculate_StopsOnCancelledContext(t *testing.T) {
	b, mockPool := newTestRecalculator(t)

	rows := pgxmock.NewRows([]string{
		"id", "trading_pair_id", "pair_symbol", "timestamp",
		"market_regime", "total_score", "indicator_score", "pattern_score",
	})
	signalRows(rows, 1, 10, "BTCUSDT", date(2026, 8, 10))

	mockPool.ExpectQuery("FROM scoring_history sh").
		WithArgs(anyArgs(2)...).
		WillReturnRows(rows)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Recalculate(ctx, 30)
	assert.ErrorIs(t, err, context.Canceled)
}
