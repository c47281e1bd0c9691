package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/elcrypto/scoring-analyzer/internal/config"
	"github.com/elcrypto/scoring-analyzer/internal/database"
	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/models"
	"github.com/elcrypto/scoring-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handler wires the analysis services to the HTTP surface.
type Handler struct {
	orchestrator *services.StatisticsOrchestrator
	recalculator *services.BulkRecalculator
	summary      *services.DirectionSummaryService
	redis        *database.RedisClient
	cfg          *config.Config
	logger       logging.Logger
}

func NewHandler(orchestrator *services.StatisticsOrchestrator, recalculator *services.BulkRecalculator, summary *services.DirectionSummaryService, redisClient *database.RedisClient, cfg *config.Config, logger logging.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		recalculator: recalculator,
		summary:      summary,
		redis:        redisClient,
		cfg:          cfg,
		logger:       logger,
	}
}

// RunAnalysis triggers one statistics rebuild for the period kind in the
// path. A run skipped because of a concurrent holder is a 200 with
// skipped=true, so callers never need to treat contention as a fault.
func (h *Handler) RunAnalysis(c *gin.Context) {
	kind := models.PeriodKind(c.Param("period"))

	minWinRate := h.cfg.Aggregation.MinWinRate
	if raw := c.Query("min_win_rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_win_rate must be a number within [0, 100]"})
			return
		}
		minWinRate = parsed
	}
	debug := c.Query("debug") == "true"

	result, err := h.orchestrator.Run(c.Request.Context(), kind, minWinRate, debug)
	if err != nil {
		if errors.Is(err, services.ErrUnknownPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":       result.Message,
			"run_id":      result.RunID,
			"saved_count": 0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      result.RunID,
		"period_kind": result.PeriodKind,
		"saved_count": result.SavedCount,
		"duration_ms": result.Duration.Milliseconds(),
		"message":     result.Message,
		"skipped":     result.Skipped,
	})
}

// RecalculateOutcomes re-resolves outcomes for all signals in the last N days.
func (h *Handler) RecalculateOutcomes(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = parsed
	}

	result, err := h.recalculator.Recalculate(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signals_processed": result.SignalsProcessed,
		"signals_skipped":   result.SignalsSkipped,
		"errors":            result.Errors,
		"duration_ms":       result.Duration.Milliseconds(),
	})
}

// AnalysisStatus reports last-run freshness per period kind plus the
// comparative direction summary of the last 24 hours.
func (h *Handler) AnalysisStatus(c *gin.Context) {
	ctx := c.Request.Context()

	freshness := make(map[string]*models.RunFreshness)
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly} {
		raw, err := h.redis.Get(ctx, services.FreshnessKey(kind))
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				h.logger.WithComponent("api").Warn("Failed to read freshness key",
					"period_kind", string(kind), "error", err.Error())
			}
			freshness[string(kind)] = nil
			continue
		}

		var f models.RunFreshness
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			h.logger.WithComponent("api").Warn("Malformed freshness payload",
				"period_kind", string(kind), "error", err.Error())
			freshness[string(kind)] = nil
			continue
		}
		freshness[string(kind)] = &f
	}

	summary, err := h.summary.Summarize(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"last_runs":         freshness,
		"direction_summary": summary,
	})
}
