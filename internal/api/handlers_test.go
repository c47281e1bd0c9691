package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elcrypto/scoring-analyzer/internal/config"
	"github.com/elcrypto/scoring-analyzer/internal/database"
	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
	"github.com/elcrypto/scoring-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	handler  *Handler
	mockPool pgxmock.PgxPoolIface
	mr       *miniredis.Miniredis
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mr := miniredis.RunT(t)
	redisClient := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	logger := logging.NewTestLogger()
	cfg := &config.Config{
		Analysis: config.AnalysisConfig{
			TakeProfitPercent: 3.0,
			StopLossPercent:   3.0,
			PositionSize:      100.0,
			Leverage:          10,
			AnalysisHours:     3,
			EntryDelayMinutes: 15,
			ProgressInterval:  500,
		},
		Aggregation: config.AggregationConfig{MinWinRate: 55.0, Version: "v7.0"},
	}

	aggregator := services.NewWinRateAggregator(mockPool, logger)
	orchestrator := services.NewStatisticsOrchestrator(mockPool, redisClient, aggregator, cfg.Aggregation, logger)
	resolver := services.NewOutcomeResolver(mockPool, cfg.Analysis, logger)
	recalculator := services.NewBulkRecalculator(mockPool, resolver, cfg.Analysis, logger)
	summary := services.NewDirectionSummaryService(mockPool, logger)

	return &handlerFixture{
		handler:  NewHandler(orchestrator, recalculator, summary, redisClient, cfg, logger),
		mockPool: mockPool,
		mr:       mr,
	}
}

func performRequest(handler gin.HandlerFunc, method, target string, params gin.Params) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Params = params
	handler(c)
	return w
}

func TestRunAnalysis_UnknownPeriod(t *testing.T) {
	f := newHandlerFixture(t)

	w := performRequest(f.handler.RunAnalysis, "POST", "/api/v1/analysis/quarterly/run",
		gin.Params{{Key: "period", Value: "quarterly"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown period kind")
}

func TestRunAnalysis_InvalidMinWinRate(t *testing.T) {
	f := newHandlerFixture(t)

	for _, raw := range []string{"abc", "-1", "101"} {
		w := performRequest(f.handler.RunAnalysis, "POST", "/api/v1/analysis/weekly/run?min_win_rate="+raw,
			gin.Params{{Key: "period", Value: "weekly"}})
		assert.Equal(t, http.StatusBadRequest, w.Code, "min_win_rate=%s", raw)
	}
}

func TestRunAnalysis_ConcurrentRunIsSkip(t *testing.T) {
	f := newHandlerFixture(t)

	f.mockPool.ExpectBegin()
	f.mockPool.ExpectQuery("pg_try_advisory_xact_lock").
		WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_xact_lock"}).AddRow(false))
	f.mockPool.ExpectRollback()

	w := performRequest(f.handler.RunAnalysis, "POST", "/api/v1/analysis/weekly/run",
		gin.Params{{Key: "period", Value: "weekly"}})

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["skipped"])
	assert.Equal(t, float64(0), body["saved_count"])
	assert.NoError(t, f.mockPool.ExpectationsWereMet())
}

func TestRecalculateOutcomes_InvalidDays(t *testing.T) {
	f := newHandlerFixture(t)

	for _, raw := range []string{"abc", "0", "-3"} {
		w := performRequest(f.handler.RecalculateOutcomes, "POST", "/api/v1/outcomes/recalculate?days="+raw, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "days=%s", raw)
	}
}

func TestRecalculateOutcomes_DefaultWindow(t *testing.T) {
	f := newHandlerFixture(t)

	f.mockPool.ExpectQuery("FROM scoring_history sh").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "trading_pair_id", "pair_symbol", "timestamp",
			"market_regime", "total_score", "indicator_score", "pattern_score",
		}))

	w := performRequest(f.handler.RecalculateOutcomes, "POST", "/api/v1/outcomes/recalculate", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["signals_processed"])
	assert.NoError(t, f.mockPool.ExpectationsWereMet())
}

func TestAnalysisStatus(t *testing.T) {
	f := newHandlerFixture(t)

	weekly := models.RunFreshness{
		RunID:        "run-1",
		PeriodKind:   models.PeriodWeekly,
		PeriodStart:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
		SavedCount:   12,
		CalculatedAt: time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC),
		Version:      "v7.0",
	}
	payload, err := json.Marshal(weekly)
	require.NoError(t, err)
	require.NoError(t, f.mr.Set(services.FreshnessKey(models.PeriodWeekly), string(payload)))

	f.mockPool.ExpectQuery("GROUPING SETS").
		WillReturnRows(pgxmock.NewRows([]string{
			"direction", "total_signals", "wins", "losses", "timeouts",
			"avg_pnl_percent", "total_pnl_usd", "avg_hours_to_close",
		}).AddRow("COMBINED", 10, 5, 3, 2, (*float64)(nil), (*float64)(nil), (*float64)(nil)))

	w := performRequest(f.handler.AnalysisStatus, "GET", "/api/v1/analysis/status", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		LastRuns map[string]*models.RunFreshness `json:"last_runs"`
		Summary  []models.DirectionStats         `json:"direction_summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	require.NotNil(t, body.LastRuns["weekly"])
	assert.Equal(t, "run-1", body.LastRuns["weekly"].RunID)
	// Monthly has never run: present but null.
	monthly, ok := body.LastRuns["monthly"]
	assert.True(t, ok)
	assert.Nil(t, monthly)

	require.Len(t, body.Summary, 1)
	assert.Equal(t, "COMBINED", body.Summary[0].Direction)
	require.NotNil(t, body.Summary[0].WinRate)
	assert.Equal(t, 62.5, *body.Summary[0].WinRate)
	assert.NoError(t, f.mockPool.ExpectationsWereMet())
}
