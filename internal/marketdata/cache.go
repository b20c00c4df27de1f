package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"riskfolio/internal/models"
	"riskfolio/internal/repository"
)

// Cache is the point/range lookup surface over persisted market data, plus a
// refresh path through the external provider. Lookups read the repository;
// refresh writes are (symbol, date) upserts so that concurrent portfolio
// pipelines fetching the same symbol race benignly.
type Cache struct {
	Repo     repository.Repository
	Provider Provider
	Logger   *zap.Logger
}

// RefreshResult reports a partial-failure-tolerant refresh: symbols that
// failed are listed, they never fail the whole batch.
type RefreshResult struct {
	Updated int
	Failed  map[string]string
}

func (c *Cache) GetPrice(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool, error) {
	if c == nil || c.Repo == nil {
		return decimal.Zero, false, nil
	}
	point, err := c.Repo.GetPrice(ctx, symbol, date)
	if err != nil {
		return decimal.Zero, false, err
	}
	if point == nil {
		return decimal.Zero, false, nil
	}
	return point.Close, true, nil
}

// GetPriceOnOrBefore returns the most recent close at or before date. Used for
// previous-trading-day lookups where the exact date may be a holiday gap.
func (c *Cache) GetPriceOnOrBefore(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool, error) {
	if c == nil || c.Repo == nil {
		return decimal.Zero, false, nil
	}
	point, err := c.Repo.LatestPriceOnOrBefore(ctx, symbol, date)
	if err != nil {
		return decimal.Zero, false, err
	}
	if point == nil {
		return decimal.Zero, false, nil
	}
	return point.Close, true, nil
}

func (c *Cache) GetPriceRange(ctx context.Context, symbol string, start, end time.Time) ([]models.MarketDataPoint, error) {
	if c == nil || c.Repo == nil {
		return nil, nil
	}
	return c.Repo.GetPriceRange(ctx, symbol, start, end)
}

// Refresh fetches the lookback window for each symbol and upserts the bars.
// A failing symbol is recorded and skipped, never fatal.
func (c *Cache) Refresh(ctx context.Context, symbols []string, start, end time.Time) (RefreshResult, error) {
	result := RefreshResult{Failed: map[string]string{}}
	if c == nil || c.Repo == nil || c.Provider == nil {
		return result, nil
	}
	seen := map[string]struct{}{}
	for _, raw := range symbols {
		symbol := strings.TrimSpace(raw)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}

		bars, err := c.Provider.FetchDaily(ctx, symbol, start, end)
		if err != nil {
			result.Failed[symbol] = err.Error()
			if c.Logger != nil {
				c.Logger.Warn("market data fetch failed",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
			}
			continue
		}
		if len(bars) == 0 {
			continue
		}
		points := make([]models.MarketDataPoint, 0, len(bars))
		for _, bar := range bars {
			points = append(points, models.MarketDataPoint{
				Symbol:   symbol,
				Date:     bar.Date,
				Close:    bar.Close,
				Sector:   bar.Sector,
				Industry: bar.Industry,
			})
		}
		if err := c.Repo.UpsertMarketDataPoints(ctx, points); err != nil {
			result.Failed[symbol] = err.Error()
			if c.Logger != nil {
				c.Logger.Warn("market data upsert failed",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
			}
			continue
		}
		result.Updated += len(points)
	}
	return result, nil
}

// DailyReturns converts a close series into day-over-day fractional returns
// keyed by date. Dates carry no time component.
func DailyReturns(points []models.MarketDataPoint) map[string]float64 {
	out := map[string]float64{}
	for i := 1; i < len(points); i++ {
		prev, _ := points[i-1].Close.Float64()
		cur, _ := points[i].Close.Float64()
		if prev == 0 {
			continue
		}
		out[points[i].Date.Format("2006-01-02")] = (cur - prev) / prev
	}
	return out
}
