package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"riskfolio/internal/models"
	"riskfolio/internal/repository"
)

type AnalyticsHandler struct {
	Repo repository.Repository
}

func (h *AnalyticsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/portfolios/:id")
	group.GET("/factor-exposures", h.factorExposures)
	group.GET("/correlations", h.correlations)
	group.GET("/stress-results", h.stressResults)
	group.GET("/greeks", h.greeks)
}

// @Summary Factor exposures for a portfolio at a calc date
// @Tags analytics
// @Param id path int true "portfolio id"
// @Param date query string false "YYYY-MM-DD, default today"
// @Param entity query string false "portfolio or position"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/factor-exposures [get]
func (h *AnalyticsHandler) factorExposures(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
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
	entityKind := models.EntityPortfolio
	if v := strings.ToLower(strings.TrimSpace(c.Query("entity"))); v == models.EntityPosition {
		entityKind = models.EntityPosition
	}
	limit := intQuery(c, "limit", 200)
	offset := intQuery(c, "offset", 0)

	// Position-level rows are scoped by the portfolio column; entity_id holds
	// a position id there, so it must not carry the path portfolio id.
	params := repository.ListFactorExposuresParams{
		EntityKind:  entityKind,
		PortfolioID: &portfolioID,
		CalcDate:    &date,
		Limit:       limit,
		Offset:      offset,
	}
	if entityKind == models.EntityPortfolio {
		params.EntityID = &portfolioID
	}
	items, err := h.Repo.ListFactorExposures(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// @Summary Correlation matrix rows for a portfolio at a calc date
// @Tags analytics
// @Param id path int true "portfolio id"
// @Param date query string false "YYYY-MM-DD, default today"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/correlations [get]
func (h *AnalyticsHandler) correlations(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
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
	items, err := h.Repo.ListCorrelationRecords(c.Request.Context(), portfolioID, date)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary Stress test results for a portfolio at a calc date
// @Tags analytics
// @Param id path int true "portfolio id"
// @Param date query string false "YYYY-MM-DD, default today"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/stress-results [get]
func (h *AnalyticsHandler) stressResults(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
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
	items, err := h.Repo.ListStressResults(c.Request.Context(), portfolioID, date)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary Per-position greeks for a portfolio at a calc date
// @Tags analytics
// @Param id path int true "portfolio id"
// @Param date query string false "YYYY-MM-DD, default today"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/greeks [get]
func (h *AnalyticsHandler) greeks(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
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
	items, err := h.Repo.ListGreeksRecords(c.Request.Context(), portfolioID, date)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
