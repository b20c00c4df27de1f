package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"riskfolio/internal/models"
	"riskfolio/internal/repository"
)

// exposureRepo captures the query params the handler builds; the embedded
// interface covers the rest and panics if anything unexpected is touched.
type exposureRepo struct {
	repository.Repository

	got  repository.ListFactorExposuresParams
	rows []models.FactorExposure
}

func (s *exposureRepo) ListFactorExposures(ctx context.Context, params repository.ListFactorExposuresParams) ([]models.FactorExposure, error) {
	s.got = params
	return s.rows, nil
}

func newAnalyticsEngine(repo *exposureRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	(&AnalyticsHandler{Repo: repo}).Register(engine)
	return engine
}

func TestFactorExposures_PositionEntityScopedToPortfolio(t *testing.T) {
	repo := &exposureRepo{rows: []models.FactorExposure{
		{EntityKind: models.EntityPosition, EntityID: 11, PortfolioID: 7, FactorName: "Market", Beta: 1.1},
	}}
	engine := newAnalyticsEngine(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/portfolios/7/factor-exposures?entity=position&date=2026-08-21", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200: %s", w.Code, w.Body.String())
	}
	if repo.got.PortfolioID == nil || *repo.got.PortfolioID != 7 {
		t.Fatalf("params=%+v: position query must be scoped to the path portfolio", repo.got)
	}
	// entity_id holds position ids for position rows; the path portfolio id
	// must not be forced into it.
	if repo.got.EntityID != nil {
		t.Fatalf("entity_id=%d want unset for position queries", *repo.got.EntityID)
	}
	if repo.got.EntityKind != models.EntityPosition {
		t.Fatalf("entity_kind=%q want position", repo.got.EntityKind)
	}
	want := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	if repo.got.CalcDate == nil || !repo.got.CalcDate.Equal(want) {
		t.Fatalf("calc_date=%v want %s", repo.got.CalcDate, want.Format("2006-01-02"))
	}
}

func TestFactorExposures_DefaultsToPortfolioEntity(t *testing.T) {
	repo := &exposureRepo{}
	engine := newAnalyticsEngine(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/portfolios/7/factor-exposures?date=2026-08-21", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200: %s", w.Code, w.Body.String())
	}
	if repo.got.EntityKind != models.EntityPortfolio {
		t.Fatalf("entity_kind=%q want portfolio", repo.got.EntityKind)
	}
	if repo.got.EntityID == nil || *repo.got.EntityID != 7 {
		t.Fatalf("params=%+v want entity_id 7", repo.got)
	}
	if repo.got.PortfolioID == nil || *repo.got.PortfolioID != 7 {
		t.Fatalf("params=%+v want portfolio scope 7", repo.got)
	}
}
