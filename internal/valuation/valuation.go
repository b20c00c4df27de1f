package valuation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
)

const (
	WarnNoPreviousClose = "no_previous_close"
	WarnEntryFallback   = "daily_pnl_entry_price_fallback"
	ReasonMissingPrice  = "missing_current_price"
)

// PositionValuation is recomputed each run, never persisted long-term.
type PositionValuation struct {
	Position models.Position

	CurrentPrice  decimal.Decimal
	MarketValue   decimal.Decimal
	Exposure      decimal.Decimal
	UnrealizedPnL decimal.Decimal
	DailyPnL      decimal.Decimal

	Warnings []string
}

// Exclusion records a position dropped from the run with the reason. Excluded
// positions are a data-quality event, not a stage failure.
type Exclusion struct {
	PositionID uint64 `json:"position_id"`
	Symbol     string `json:"symbol"`
	Reason     string `json:"reason"`
}

type Engine struct {
	Cache    *marketdata.Cache
	Calendar *marketdata.Calendar
	Logger   *zap.Logger
}

// ValuePositions values every open position at calcDate. Positions with no
// current price are excluded with a warning and the pipeline continues.
func (e *Engine) ValuePositions(ctx context.Context, positions []models.Position, calcDate time.Time) ([]PositionValuation, []Exclusion, error) {
	if e == nil || e.Cache == nil {
		return nil, nil, nil
	}
	out := make([]PositionValuation, 0, len(positions))
	var excluded []Exclusion
	for _, pos := range positions {
		current, ok, err := e.Cache.GetPriceOnOrBefore(ctx, pos.PriceSymbol(), calcDate)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			excluded = append(excluded, Exclusion{
				PositionID: pos.ID,
				Symbol:     pos.Symbol,
				Reason:     ReasonMissingPrice,
			})
			if e.Logger != nil {
				e.Logger.Warn("position excluded from valuation",
					zap.Uint64("position_id", pos.ID),
					zap.String("symbol", pos.Symbol),
					zap.String("reason", ReasonMissingPrice),
				)
			}
			continue
		}

		prevDate := calcDate.AddDate(0, 0, -1)
		if e.Calendar != nil {
			prevDate = e.Calendar.PreviousTradingDay(calcDate)
		}
		previous, hasPrev, err := e.Cache.GetPriceOnOrBefore(ctx, pos.PriceSymbol(), prevDate)
		if err != nil {
			return nil, nil, err
		}

		out = append(out, Value(pos, current, previous, hasPrev))
	}
	return out, excluded, nil
}

// Value computes the valuation of one position from its current price and the
// previous trading day's close. With no previous close the daily P&L falls
// back to the entry price; a zero entry yields daily P&L 0 plus a warning.
func Value(pos models.Position, current, previous decimal.Decimal, hasPrevious bool) PositionValuation {
	mult := pos.Multiplier()

	marketValue := pos.Quantity.Abs().Mul(current).Mul(mult)
	exposure := pos.Quantity.Mul(current).Mul(mult)
	unrealized := exposure.Sub(pos.Quantity.Mul(pos.EntryPrice).Mul(mult))

	v := PositionValuation{
		Position:      pos,
		CurrentPrice:  current,
		MarketValue:   marketValue,
		Exposure:      exposure,
		UnrealizedPnL: unrealized,
	}

	switch {
	case hasPrevious:
		v.DailyPnL = pos.Quantity.Mul(current.Sub(previous)).Mul(mult)
	case pos.EntryPrice.GreaterThan(decimal.Zero):
		v.DailyPnL = pos.Quantity.Mul(current.Sub(pos.EntryPrice)).Mul(mult)
		v.Warnings = append(v.Warnings, WarnNoPreviousClose, WarnEntryFallback)
	default:
		v.DailyPnL = decimal.Zero
		v.Warnings = append(v.Warnings, WarnNoPreviousClose)
	}

	return v
}
