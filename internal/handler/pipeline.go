package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"riskfolio/internal/pipeline"
	"riskfolio/internal/repository"
)

// PipelineHandler exposes manual pipeline triggers and batch job visibility.
// Triggers run in the background and return 202; the batch job records are
// the source of truth for progress.
type PipelineHandler struct {
	Repo         repository.Repository
	Orchestrator *pipeline.Orchestrator
	LookbackDays int
	Logger       *zap.Logger
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/pipeline")
	group.POST("/run", h.run)
	group.POST("/portfolios/:id/run", h.runPortfolio)
	group.POST("/portfolios/:id/stages/:stage", h.runStage)
	group.POST("/market-data/refresh", h.refreshMarketData)

	r.GET("/api/v1/jobs", h.listJobs)
}

// @Summary Trigger the full pipeline for all portfolios
// @Tags pipeline
// @Param date query string false "YYYY-MM-DD, default today"
// @Param force query bool false "run even on a non-trading day"
// @Success 202 {object} apiResponse
// @Router /api/v1/pipeline/run [post]
func (h *PipelineHandler) run(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	force := strings.EqualFold(strings.TrimSpace(c.Query("force")), "true")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.Orchestrator.RunAll(ctx, date, force); err != nil && h.Logger != nil {
			h.Logger.Error("manual pipeline run failed", zap.Time("run_date", date), zap.Error(err))
		}
	}()
	Accepted(c, gin.H{"run_date": date.Format("2006-01-02"), "force": force})
}

// @Summary Trigger the full pipeline for one portfolio
// @Tags pipeline
// @Param id path int true "portfolio id"
// @Param date query string false "YYYY-MM-DD, default today"
// @Success 202 {object} apiResponse
// @Router /api/v1/pipeline/portfolios/{id}/run [post]
func (h *PipelineHandler) runPortfolio(c *gin.Context) {
	if h.Orchestrator == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	portfolioID := uint64QueryParam(c, "id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio id", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	portfolio, err := h.Repo.GetPortfolioByID(c.Request.Context(), portfolioID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if portfolio == nil {
		Error(c, http.StatusNotFound, "portfolio not found", nil)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.Orchestrator.RunPortfolio(ctx, portfolioID, date); err != nil && h.Logger != nil {
			h.Logger.Error("manual portfolio run failed",
				zap.Uint64("portfolio_id", portfolioID),
				zap.Time("run_date", date),
				zap.Error(err),
			)
		}
	}()
	Accepted(c, gin.H{"portfolio_id": portfolioID, "run_date": date.Format("2006-01-02")})
}

// @Summary Re-run a single stage for one portfolio
// @Tags pipeline
// @Param id path int true "portfolio id"
// @Param stage path string true "stage name"
// @Param date query string false "YYYY-MM-DD, default today"
// @Success 202 {object} apiResponse
// @Router /api/v1/pipeline/portfolios/{id}/stages/{stage} [post]
func (h *PipelineHandler) runStage(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	portfolioID := uint64QueryParam(c, "id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio id", nil)
		return
	}
	stage := strings.ToLower(strings.TrimSpace(c.Param("stage")))
	if !validStage(stage) {
		Error(c, http.StatusBadRequest, "unknown stage", map[string]any{"stages": pipeline.Stages})
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.Orchestrator.RunStage(ctx, portfolioID, date, stage); err != nil && h.Logger != nil {
			h.Logger.Error("manual stage run failed",
				zap.Uint64("portfolio_id", portfolioID),
				zap.String("stage", stage),
				zap.Error(err),
			)
		}
	}()
	Accepted(c, gin.H{"portfolio_id": portfolioID, "stage": stage, "run_date": date.Format("2006-01-02")})
}

// @Summary Refresh market data for all referenced symbols
// @Tags pipeline
// @Param date query string false "YYYY-MM-DD, default today"
// @Success 202 {object} apiResponse
// @Router /api/v1/pipeline/market-data/refresh [post]
func (h *PipelineHandler) refreshMarketData(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	lookback := h.LookbackDays
	if lookback <= 0 {
		lookback = 5
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.Orchestrator.RefreshMarketData(ctx, date, lookback); err != nil && h.Logger != nil {
			h.Logger.Error("manual market data refresh failed", zap.Time("run_date", date), zap.Error(err))
		}
	}()
	Accepted(c, gin.H{"run_date": date.Format("2006-01-02"), "lookback_days": lookback})
}

// @Summary List batch job records
// @Tags pipeline
// @Param portfolio_id query int false "portfolio id"
// @Param date query string false "YYYY-MM-DD"
// @Param status query string false "job status"
// @Success 200 {object} apiResponse
// @Router /api/v1/jobs [get]
func (h *PipelineHandler) listJobs(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	params := repository.ListBatchJobsParams{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(c.Query("portfolio_id")); raw != "" {
		id := uint64(intQuery(c, "portfolio_id", 0))
		params.PortfolioID = &id
	}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			t := ts.UTC()
			params.RunDate = &t
		}
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		params.Status = &v
	}

	items, err := h.Repo.ListBatchJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

func validStage(stage string) bool {
	for _, s := range pipeline.Stages {
		if s == stage {
			return true
		}
	}
	return false
}
