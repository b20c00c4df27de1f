package stress

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"riskfolio/internal/models"
	"riskfolio/internal/repository"
)

// Engine applies named shock scenarios to portfolio factor betas.
//
// Per-factor dollar exposure is apportioned by each beta's share of the total
// absolute beta, so the sum of factor dollar exposures never exceeds the
// portfolio's gross exposure. Computing each factor's dollar exposure as
// beta * full portfolio value instead would N-times-count the portfolio when
// a scenario shocks several factors at once and produce losses past 100% of
// an unlevered book.
type Engine struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// Run evaluates every scenario for the portfolio at calcDate. factorMatrix is
// the cross-factor correlation matrix; when unavailable (ok=false) correlated
// impact degrades to direct impact with a direct_only flag.
func (e *Engine) Run(ctx context.Context, portfolioID uint64, set ScenarioSet, grossExposure decimal.Decimal, factorMatrix map[string]map[string]float64, matrixOK bool, calcDate time.Time) ([]models.StressResult, error) {
	if e == nil || e.Repo == nil {
		return nil, nil
	}
	exposures, err := e.Repo.ListFactorExposures(ctx, repository.ListFactorExposuresParams{
		EntityKind: models.EntityPortfolio,
		EntityID:   &portfolioID,
		CalcDate:   &calcDate,
	})
	if err != nil {
		return nil, err
	}
	if len(exposures) == 0 {
		if e.Logger != nil {
			e.Logger.Warn("no factor exposures for portfolio, stress scenarios skipped",
				zap.Uint64("portfolio_id", portfolioID),
				zap.Time("calc_date", calcDate),
			)
		}
		return nil, nil
	}

	betas := make(map[string]float64, len(exposures))
	for _, row := range exposures {
		betas[row.FactorName] = row.Beta
	}
	gross, _ := grossExposure.Float64()

	results := make([]models.StressResult, 0, len(set.Scenarios))
	for _, sc := range set.Scenarios {
		direct := DirectImpact(betas, sc.Shocks, gross)

		var correlated float64
		var flags []string
		if matrixOK {
			correlated = CorrelatedImpact(betas, sc.Shocks, factorMatrix, gross)
		} else {
			correlated = direct
			flags = append(flags, models.StressFlagDirectOnly)
			if e.Logger != nil {
				e.Logger.Warn("factor correlation matrix unavailable, using direct impact",
					zap.Uint64("portfolio_id", portfolioID),
					zap.String("scenario", sc.ID),
				)
			}
		}

		result := models.StressResult{
			PortfolioID:       portfolioID,
			ScenarioID:        sc.ID,
			CalcDate:          calcDate,
			Category:          sc.Category,
			Severity:          sc.Severity,
			DirectPnL:         decimal.NewFromFloat(direct),
			CorrelatedPnL:     decimal.NewFromFloat(correlated),
			CorrelationEffect: decimal.NewFromFloat(correlated - direct),
		}
		if len(flags) > 0 {
			raw, _ := json.Marshal(flags)
			result.Flags = raw
		}
		results = append(results, result)
	}
	return results, nil
}

// DirectImpact sums shocked factor dollar exposures without cross-factor
// effects. The per-factor base apportionment keeps the aggregate loss within
// gross exposure; CapLoss enforces it as a hard invariant regardless.
func DirectImpact(betas map[string]float64, shocks map[string]float64, grossExposure float64) float64 {
	dollars := apportionedDollars(betas, grossExposure)
	total := 0.0
	for factor, shock := range shocks {
		d, ok := dollars[factor]
		if !ok {
			continue
		}
		total += d * shock
	}
	return CapLoss(total, grossExposure)
}

// CorrelatedImpact propagates each shock through the factor correlation
// matrix: every factor with a beta receives the largest-magnitude induced
// shock from the scenario's shocked factors before dollar impacts are summed.
func CorrelatedImpact(betas map[string]float64, shocks map[string]float64, matrix map[string]map[string]float64, grossExposure float64) float64 {
	dollars := apportionedDollars(betas, grossExposure)
	total := 0.0
	for factor, d := range dollars {
		effective := 0.0
		if direct, ok := shocks[factor]; ok {
			effective = direct
		}
		for shocked, shock := range shocks {
			if shocked == factor {
				continue
			}
			corr := matrixLookup(matrix, factor, shocked)
			induced := corr * shock
			if math.Abs(induced) > math.Abs(effective) {
				effective = induced
			}
		}
		if effective > 1 {
			effective = 1
		}
		if effective < -1 {
			effective = -1
		}
		total += d * effective
	}
	return CapLoss(total, grossExposure)
}

// CapLoss bounds total loss at the unlevered gross exposure. A loss past
// gross exposure is mathematically impossible for an unlevered book.
func CapLoss(pnl, grossExposure float64) float64 {
	if grossExposure > 0 && pnl < -grossExposure {
		return -grossExposure
	}
	return pnl
}

// apportionedDollars splits gross exposure across factors by each beta's
// share of total absolute beta, preserving beta sign. The absolute dollar
// amounts sum to at most grossExposure.
func apportionedDollars(betas map[string]float64, grossExposure float64) map[string]float64 {
	totalAbs := 0.0
	for _, beta := range betas {
		totalAbs += math.Abs(beta)
	}
	out := make(map[string]float64, len(betas))
	if totalAbs == 0 {
		return out
	}
	for factor, beta := range betas {
		out[factor] = grossExposure * beta / totalAbs
	}
	return out
}

func matrixLookup(matrix map[string]map[string]float64, a, b string) float64 {
	if matrix == nil {
		return 0
	}
	if row, ok := matrix[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := matrix[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return 0
}
