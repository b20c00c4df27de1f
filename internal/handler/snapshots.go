package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"riskfolio/internal/repository"
)

type SnapshotHandler struct {
	Repo repository.Repository
}

func (h *SnapshotHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/portfolios")
	group.GET("", h.listPortfolios)
	group.GET("/:id/snapshots", h.history)
	group.GET("/:id/snapshots/latest", h.latest)
	group.GET("/:id/snapshots/:date", h.get)
}

// @Summary List portfolios
// @Tags portfolios
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios [get]
func (h *SnapshotHandler) listPortfolios(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListPortfolios(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary Snapshot history for a portfolio
// @Tags snapshots
// @Param id path int true "portfolio id"
// @Param since query string false "YYYY-MM-DD"
// @Param until query string false "YYYY-MM-DD"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/snapshots [get]
func (h *SnapshotHandler) history(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	portfolioID := uint64QueryParam(c, "id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio id", nil)
		return
	}
	limit := intQuery(c, "limit", 90)
	offset := intQuery(c, "offset", 0)

	var since *time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			t := ts.UTC()
			since = &t
		}
	}
	var until *time.Time
	if raw := strings.TrimSpace(c.Query("until")); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			t := ts.UTC()
			until = &t
		}
	}

	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), repository.ListSnapshotsParams{
		PortfolioID: portfolioID,
		Since:       since,
		Until:       until,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// @Summary Latest snapshot on or before today
// @Tags snapshots
// @Param id path int true "portfolio id"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/snapshots/latest [get]
func (h *SnapshotHandler) latest(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	portfolioID := uint64QueryParam(c, "id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio id", nil)
		return
	}
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	item, err := h.Repo.LatestSnapshotBefore(c.Request.Context(), portfolioID, tomorrow)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "no snapshots for portfolio", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Snapshot for a specific date
// @Tags snapshots
// @Param id path int true "portfolio id"
// @Param date path string true "YYYY-MM-DD"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/snapshots/{date} [get]
func (h *SnapshotHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	portfolioID := uint64QueryParam(c, "id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio id", nil)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(c.Param("date")))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	item, err := h.Repo.GetPortfolioSnapshot(c.Request.Context(), portfolioID, date.UTC())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "snapshot not found", nil)
		return
	}
	Ok(c, item, nil)
}
