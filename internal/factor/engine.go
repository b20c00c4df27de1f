package factor

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"riskfolio/internal/config"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
	"riskfolio/internal/repository"
	"riskfolio/internal/valuation"
)

// Engine regresses entity returns against each factor proxy independently.
// Factor proxies sourced from real-market ETFs are heavily inter-correlated
// (cross-factor correlation above 0.9 is common), which makes a combined
// multivariate regression numerically unstable; one univariate regression per
// factor is used instead.
type Engine struct {
	Cache  *marketdata.Cache
	Repo   repository.Repository
	Config config.FactorConfig
	Logger *zap.Logger
}

// ComputeForPortfolio produces one beta per (entity, factor) for the portfolio
// and each valued position. Portfolio betas come from re-regressing the
// exposure-weighted portfolio return series, not from averaging position
// betas. Entities with no return data emit no rows and are logged as gaps.
func (e *Engine) ComputeForPortfolio(ctx context.Context, portfolioID uint64, valued []valuation.PositionValuation, calcDate time.Time) ([]models.FactorExposure, error) {
	if e == nil || e.Cache == nil || e.Repo == nil {
		return nil, nil
	}
	factors, err := e.Repo.ListFactorDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	if len(factors) == 0 {
		return nil, nil
	}

	windowStart := calcDate.AddDate(0, 0, -e.Config.WindowDays)

	factorReturns := make(map[string]map[string]float64, len(factors))
	for _, f := range factors {
		points, err := e.Cache.GetPriceRange(ctx, f.ProxySymbol, windowStart, calcDate)
		if err != nil {
			return nil, err
		}
		returns := marketdata.DailyReturns(points)
		if len(returns) == 0 {
			if e.Logger != nil {
				e.Logger.Warn("factor proxy has no return data",
					zap.String("factor", f.Name),
					zap.String("proxy", f.ProxySymbol),
				)
			}
			continue
		}
		factorReturns[f.Name] = returns
	}

	positionReturns := make(map[uint64]map[string]float64, len(valued))
	for _, v := range valued {
		points, err := e.Cache.GetPriceRange(ctx, v.Position.PriceSymbol(), windowStart, calcDate)
		if err != nil {
			return nil, err
		}
		returns := marketdata.DailyReturns(points)
		if len(returns) == 0 {
			if e.Logger != nil {
				e.Logger.Warn("no return data for position, factor exposure gap",
					zap.Uint64("position_id", v.Position.ID),
					zap.String("symbol", v.Position.Symbol),
				)
			}
			continue
		}
		positionReturns[v.Position.ID] = returns
	}

	portfolioSeries := WeightedReturns(valued, positionReturns)

	var rows []models.FactorExposure
	for _, f := range factors {
		fr, ok := factorReturns[f.Name]
		if !ok {
			continue
		}
		if len(portfolioSeries) > 0 {
			if row, ok := e.regress(portfolioSeries, fr, models.EntityPortfolio, portfolioID, portfolioID, f.Name, calcDate); ok {
				rows = append(rows, row)
			}
		}
		for _, v := range valued {
			pr, ok := positionReturns[v.Position.ID]
			if !ok {
				continue
			}
			if row, ok := e.regress(pr, fr, models.EntityPosition, v.Position.ID, portfolioID, f.Name, calcDate); ok {
				rows = append(rows, row)
			}
		}
	}

	if len(rows) == 0 && e.Logger != nil {
		e.Logger.Warn("factor exposure produced no rows",
			zap.Uint64("portfolio_id", portfolioID),
			zap.Time("calc_date", calcDate),
		)
	}
	return rows, nil
}

func (e *Engine) regress(entity, factor map[string]float64, entityKind string, entityID, portfolioID uint64, factorName string, calcDate time.Time) (models.FactorExposure, bool) {
	y, x := AlignSeries(entity, factor)
	beta, n, ok := OLSBeta(y, x)
	if !ok {
		return models.FactorExposure{}, false
	}
	quality := models.QualityFullHistory
	if n < e.Config.MinSampleSize {
		quality = models.QualityLimitedHistory
	}
	return models.FactorExposure{
		EntityKind:  entityKind,
		EntityID:    entityID,
		PortfolioID: portfolioID,
		FactorName:  factorName,
		CalcDate:    calcDate,
		Beta:        CapBeta(beta, e.Config.BetaCap),
		Quality:     quality,
		SampleSize:  n,
	}, true
}

// WeightedReturns builds the portfolio daily return series: each position's
// return weighted by its signed exposure share of gross exposure, summed per
// date over the positions with data that day.
func WeightedReturns(valued []valuation.PositionValuation, positionReturns map[uint64]map[string]float64) map[string]float64 {
	gross := 0.0
	for _, v := range valued {
		exp, _ := v.Exposure.Float64()
		gross += math.Abs(exp)
	}
	if gross == 0 {
		return nil
	}

	out := map[string]float64{}
	for _, v := range valued {
		returns, ok := positionReturns[v.Position.ID]
		if !ok {
			continue
		}
		exp, _ := v.Exposure.Float64()
		weight := exp / gross
		for date, r := range returns {
			out[date] += weight * r
		}
	}
	return out
}

// AlignSeries intersects two date-keyed series into paired observation
// vectors, ordered consistently.
func AlignSeries(y, x map[string]float64) ([]float64, []float64) {
	dates := make([]string, 0, len(y))
	for d := range y {
		if _, ok := x[d]; ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	ys := make([]float64, 0, len(dates))
	xs := make([]float64, 0, len(dates))
	for _, d := range dates {
		ys = append(ys, y[d])
		xs = append(xs, x[d])
	}
	return ys, xs
}

// OLSBeta is the univariate regression slope cov(x,y)/var(x). It needs at
// least two overlapping observations and a non-degenerate regressor.
func OLSBeta(y, x []float64) (float64, int, bool) {
	n := len(x)
	if n < 2 || len(y) != n {
		return 0, n, false
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		cov += dx * (y[i] - meanY)
		varX += dx * dx
	}
	if varX == 0 {
		return 0, n, false
	}
	beta := cov / varX
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, n, false
	}
	return beta, n, true
}

// CapBeta bounds pathological regressions from short or illiquid histories.
func CapBeta(beta, cap float64) float64 {
	if cap <= 0 {
		return beta
	}
	if beta > cap {
		return cap
	}
	if beta < -cap {
		return -cap
	}
	return beta
}
