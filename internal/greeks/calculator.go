package greeks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"riskfolio/internal/config"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
)

// Result pairs the persisted record with the unscaled per-contract delta the
// aggregator needs for delta-adjusted exposure. UnitDelta is nil whenever the
// record's greeks are nil.
type Result struct {
	Record    models.GreeksRecord
	UnitDelta *float64
	Warning   string
}

type Calculator struct {
	Cache  *marketdata.Cache
	Config config.GreeksConfig
	Logger *zap.Logger
}

// ComputeAll produces one Result per position. Option greeks are scaled by
// signed quantity so short positions invert sign. Failures yield all-nil
// greeks with a warning, never a substituted value.
func (c *Calculator) ComputeAll(ctx context.Context, positions []models.Position, calcDate time.Time) ([]Result, error) {
	if c == nil {
		return nil, nil
	}
	out := make([]Result, 0, len(positions))
	for _, pos := range positions {
		res, err := c.computeOne(ctx, pos, calcDate)
		if err != nil {
			return nil, err
		}
		if res.Warning != "" && c.Logger != nil {
			c.Logger.Warn("greeks calculation degraded",
				zap.Uint64("position_id", pos.ID),
				zap.String("symbol", pos.Symbol),
				zap.String("warning", res.Warning),
			)
		}
		out = append(out, res)
	}
	return out, nil
}

func (c *Calculator) computeOne(ctx context.Context, pos models.Position, calcDate time.Time) (Result, error) {
	record := models.GreeksRecord{
		PositionID:  pos.ID,
		PortfolioID: pos.PortfolioID,
		CalcDate:    calcDate,
	}
	qty, _ := pos.Quantity.Float64()

	if !pos.IsOption() {
		// Stocks carry directional delta only; no pricing model is invoked.
		unit := 1.0
		if qty < 0 {
			unit = -1.0
		}
		record.Delta = f64ptr(qty)
		record.Gamma = f64ptr(0)
		record.Theta = f64ptr(0)
		record.Vega = f64ptr(0)
		record.Rho = f64ptr(0)
		return Result{Record: record, UnitDelta: &unit}, nil
	}

	if pos.Expiry == nil || pos.Strike == nil {
		return Result{Record: record, Warning: "missing_option_parameters"}, nil
	}
	if !pos.Expiry.After(calcDate) {
		// Expired contracts have no remaining sensitivity.
		zero := 0.0
		record.Delta = f64ptr(0)
		record.Gamma = f64ptr(0)
		record.Theta = f64ptr(0)
		record.Vega = f64ptr(0)
		record.Rho = f64ptr(0)
		return Result{Record: record, UnitDelta: &zero}, nil
	}

	underlying := pos.Underlying
	if underlying == "" {
		underlying = pos.Symbol
	}
	spot, ok, err := c.Cache.GetPriceOnOrBefore(ctx, underlying, calcDate)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Record: record, Warning: "missing_underlying_price"}, nil
	}

	spotF, _ := spot.Float64()
	strikeF, _ := pos.Strike.Float64()
	years := pos.Expiry.Sub(calcDate).Hours() / 24 / 365

	unit, err := Compute(Inputs{
		Spot:         spotF,
		Strike:       strikeF,
		TimeToExpiry: years,
		Volatility:   c.Config.DefaultVolatility,
		RiskFree:     c.Config.RiskFreeRate,
		IsCall:       pos.Kind == models.KindCall,
	})
	if err != nil {
		return Result{Record: record, Warning: err.Error()}, nil
	}

	record.Delta = f64ptr(unit.Delta * qty)
	record.Gamma = f64ptr(unit.Gamma * qty)
	record.Theta = f64ptr(unit.Theta * qty)
	record.Vega = f64ptr(unit.Vega * qty)
	record.Rho = f64ptr(unit.Rho * qty)
	unitDelta := unit.Delta
	return Result{Record: record, UnitDelta: &unitDelta}, nil
}

func f64ptr(v float64) *float64 { return &v }
