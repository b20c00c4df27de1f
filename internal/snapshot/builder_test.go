package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riskfolio/internal/aggregation"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
	"riskfolio/internal/repository"
	"riskfolio/internal/valuation"
)

// snapRepo overrides only the snapshot methods; the embedded interface covers
// the rest and panics if anything unexpected is touched.
type snapRepo struct {
	repository.Repository

	previous *models.PortfolioSnapshot
	// upserts keyed by (portfolio, date) to verify idempotency.
	stored map[string]*models.PortfolioSnapshot
}

func newSnapRepo() *snapRepo {
	return &snapRepo{stored: map[string]*models.PortfolioSnapshot{}}
}

func (s *snapRepo) LatestSnapshotBefore(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error) {
	return s.previous, nil
}

func (s *snapRepo) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	key := item.SnapshotDate.Format("2006-01-02")
	s.stored[key] = item
	return nil
}

func f64ptr(v float64) *float64 { return &v }

func positionInput(id uint64, marketValue, exposure, unrealized, daily int64) aggregation.PositionInput {
	return aggregation.PositionInput{
		Position: models.Position{ID: id, Symbol: "AAPL", Kind: models.KindStock},
		Valuation: valuation.PositionValuation{
			MarketValue:   decimal.NewFromInt(marketValue),
			Exposure:      decimal.NewFromInt(exposure),
			UnrealizedPnL: decimal.NewFromInt(unrealized),
			DailyPnL:      decimal.NewFromInt(daily),
		},
		Greeks: &models.GreeksRecord{
			Delta: f64ptr(100), Gamma: f64ptr(0), Theta: f64ptr(0), Vega: f64ptr(0), Rho: f64ptr(0),
		},
		UnitDelta: f64ptr(1),
	}
}

var friday = time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

func TestBuild_FirstSnapshot(t *testing.T) {
	repo := newSnapRepo()
	b := &Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)}

	inputs := []aggregation.PositionInput{
		positionInput(1, 155000, 155000, 5000, 1000),
		positionInput(2, 90000, -90000, 10000, 2500),
	}
	snap, err := b.Build(context.Background(), 7, friday, inputs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil {
		t.Fatalf("snapshot not built")
	}
	if !snap.FirstSnapshot {
		t.Fatalf("first run must set FirstSnapshot")
	}
	if !snap.DailyPnL.IsZero() {
		t.Fatalf("daily=%s want 0 on first snapshot", snap.DailyPnL)
	}
	if snap.CumulativePnL.Cmp(decimal.NewFromInt(15000)) != 0 {
		t.Fatalf("cumulative=%s want 15000", snap.CumulativePnL)
	}
	if snap.TotalValue.Cmp(decimal.NewFromInt(245000)) != 0 {
		t.Fatalf("total=%s want 245000", snap.TotalValue)
	}
	if snap.GrossExposure.Cmp(decimal.NewFromInt(245000)) != 0 {
		t.Fatalf("gross=%s want 245000", snap.GrossExposure)
	}
	if snap.NetExposure.Cmp(decimal.NewFromInt(65000)) != 0 {
		t.Fatalf("net=%s want 65000", snap.NetExposure)
	}

	var totals map[string]any
	if err := json.Unmarshal(snap.GreekTotals, &totals); err != nil {
		t.Fatalf("greek totals not valid json: %v", err)
	}
	if totals["delta"].(float64) != 200 {
		t.Fatalf("delta total=%v want 200", totals["delta"])
	}
}

func TestBuild_DailyPnLAgainstPrevious(t *testing.T) {
	repo := newSnapRepo()
	repo.previous = &models.PortfolioSnapshot{
		PortfolioID:   7,
		SnapshotDate:  friday.AddDate(0, 0, -1),
		TotalValue:    decimal.NewFromInt(240000),
		CumulativePnL: decimal.NewFromInt(12000),
	}
	b := &Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)}

	inputs := []aggregation.PositionInput{positionInput(1, 245000, 245000, 5000, 1000)}
	snap, err := b.Build(context.Background(), 7, friday, inputs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.FirstSnapshot {
		t.Fatalf("FirstSnapshot must be false with history")
	}
	if snap.DailyPnL.Cmp(decimal.NewFromInt(5000)) != 0 {
		t.Fatalf("daily=%s want 5000", snap.DailyPnL)
	}
	if snap.CumulativePnL.Cmp(decimal.NewFromInt(17000)) != 0 {
		t.Fatalf("cumulative=%s want 17000", snap.CumulativePnL)
	}
}

func TestBuild_NonTradingDaySkipped(t *testing.T) {
	repo := newSnapRepo()
	b := &Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)}

	saturday := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	snap, err := b.Build(context.Background(), 7, saturday, []aggregation.PositionInput{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatalf("snapshot must not be built on a weekend")
	}
	if len(repo.stored) != 0 {
		t.Fatalf("stored=%d want 0", len(repo.stored))
	}
}

func TestBuild_IdempotentRerun(t *testing.T) {
	repo := newSnapRepo()
	b := &Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)}

	inputs := []aggregation.PositionInput{positionInput(1, 100000, 100000, 0, 0)}
	if _, err := b.Build(context.Background(), 7, friday, inputs, nil); err != nil {
		t.Fatalf("first build: %v", err)
	}
	inputs[0].Valuation.MarketValue = decimal.NewFromInt(101000)
	if _, err := b.Build(context.Background(), 7, friday, inputs, nil); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if len(repo.stored) != 1 {
		t.Fatalf("stored=%d want 1 (same-day rerun must upsert)", len(repo.stored))
	}
	if repo.stored[friday.Format("2006-01-02")].TotalValue.Cmp(decimal.NewFromInt(101000)) != 0 {
		t.Fatalf("rerun must update the stored row")
	}
}

func TestBuild_WrapperInputNormalizedWithWarning(t *testing.T) {
	repo := newSnapRepo()
	b := &Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)}

	wrapped := aggregation.Wrapped{
		Positions: []aggregation.PositionInput{positionInput(1, 1000, 1000, 0, 0)},
	}
	snap, err := b.Build(context.Background(), 7, friday, wrapped, []string{"greeks_failed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var availability Availability
	if err := json.Unmarshal(snap.Warnings, &availability); err != nil {
		t.Fatalf("warnings not valid json: %v", err)
	}
	foundShape := false
	foundStage := false
	for _, w := range availability.Warnings {
		if w == "input_shape_normalized" {
			foundShape = true
		}
		if w == "greeks_failed" {
			foundStage = true
		}
	}
	if !foundShape || !foundStage {
		t.Fatalf("warnings=%v want both normalization and stage warnings", availability.Warnings)
	}
}

func TestBuild_UnknownInputShapeErrors(t *testing.T) {
	repo := newSnapRepo()
	b := &Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)}
	if _, err := b.Build(context.Background(), 7, friday, 42, nil); err == nil {
		t.Fatalf("want error for unknown input shape")
	}
}
