package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"riskfolio/internal/aggregation"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
	"riskfolio/internal/repository"
	"riskfolio/internal/valuation"
)

type Builder struct {
	Repo     repository.Repository
	Calendar *marketdata.Calendar
	Logger   *zap.Logger
}

// Availability is the data-availability section persisted with the snapshot:
// which calculations ran degraded and which positions were excluded.
type Availability struct {
	Warnings []string              `json:"warnings,omitempty"`
	Excluded []valuation.Exclusion `json:"excluded,omitempty"`
}

// Build assembles and upserts the snapshot for (portfolioID, calcDate).
// positionsInput is normalized the same way aggregation normalizes it: a
// wrapper object handed over instead of a flat slice is unwrapped, not
// miscomputed. Re-running for the same day updates in place.
func (b *Builder) Build(ctx context.Context, portfolioID uint64, calcDate time.Time, positionsInput any, warnings []string) (*models.PortfolioSnapshot, error) {
	if b == nil || b.Repo == nil {
		return nil, nil
	}
	if b.Calendar != nil && !b.Calendar.IsTradingDay(calcDate) {
		if b.Logger != nil {
			b.Logger.Info("skipping snapshot on non-trading day",
				zap.Uint64("portfolio_id", portfolioID),
				zap.Time("date", calcDate),
			)
		}
		return nil, nil
	}

	positions, normalized, err := aggregation.Normalize(positionsInput)
	if err != nil {
		return nil, err
	}
	if normalized && b.Logger != nil {
		b.Logger.Warn("snapshot input required normalization",
			zap.Uint64("portfolio_id", portfolioID),
		)
	}

	agg := aggregation.Aggregator{Logger: b.Logger}
	summary, err := agg.Aggregate(positions)
	if err != nil {
		return nil, err
	}

	totalValue := decimal.Zero
	unrealized := decimal.Zero
	for _, p := range positions {
		totalValue = totalValue.Add(p.Valuation.MarketValue)
		unrealized = unrealized.Add(p.Valuation.UnrealizedPnL)
	}

	previous, err := b.Repo.LatestSnapshotBefore(ctx, portfolioID, calcDate)
	if err != nil {
		return nil, err
	}

	snap := &models.PortfolioSnapshot{
		PortfolioID:           portfolioID,
		SnapshotDate:          calcDate,
		TotalValue:            totalValue,
		GrossExposure:         summary.Exposure.Gross,
		NetExposure:           summary.Exposure.Net,
		LongExposure:          summary.Exposure.Long,
		ShortExposure:         summary.Exposure.Short,
		DeltaAdjustedExposure: summary.DeltaAdjusted,
		PositionCount:         summary.Exposure.PositionCount,
		OptionCount:           summary.Exposure.OptionCount,
		StockCount:            summary.Exposure.StockCount,
	}

	if previous == nil {
		// First-day case: zero daily P&L flagged as "no history", which
		// downstream must not read as "no movement".
		snap.FirstSnapshot = true
		snap.DailyPnL = decimal.Zero
		snap.CumulativePnL = unrealized
	} else {
		snap.DailyPnL = totalValue.Sub(previous.TotalValue)
		snap.CumulativePnL = previous.CumulativePnL.Add(snap.DailyPnL)
	}

	greekTotals, _ := json.Marshal(map[string]any{
		"delta":    summary.Greeks.Delta,
		"gamma":    summary.Greeks.Gamma,
		"theta":    summary.Greeks.Theta,
		"vega":     summary.Greeks.Vega,
		"rho":      summary.Greeks.Rho,
		"included": summary.Greeks.Included,
		"skipped":  summary.Greeks.Skipped,
	})
	snap.GreekTotals = greekTotals

	availability := Availability{
		Warnings: warnings,
		Excluded: summary.Excluded,
	}
	if normalized {
		availability.Warnings = append(availability.Warnings, "input_shape_normalized")
	}
	if len(availability.Warnings) > 0 || len(availability.Excluded) > 0 {
		raw, _ := json.Marshal(availability)
		snap.Warnings = raw
	}

	if err := b.Repo.UpsertPortfolioSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
