package greeks

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riskfolio/internal/config"
	"riskfolio/internal/models"
)

var calcDate = time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

func TestComputeAll_StockDelta(t *testing.T) {
	c := &Calculator{Config: config.GreeksConfig{DefaultVolatility: 0.3, RiskFreeRate: 0.05}}
	positions := []models.Position{
		{ID: 1, Symbol: "AAPL", Kind: models.KindStock, Quantity: decimal.NewFromInt(300)},
		{ID: 2, Symbol: "TSLA", Kind: models.KindStock, Quantity: decimal.NewFromInt(-150)},
	}
	results, err := c.ComputeAll(context.Background(), positions, calcDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d want 2", len(results))
	}

	long := results[0]
	if long.Record.Delta == nil || *long.Record.Delta != 300 {
		t.Fatalf("long delta=%v want 300", long.Record.Delta)
	}
	if long.UnitDelta == nil || *long.UnitDelta != 1 {
		t.Fatalf("long unit delta=%v want 1", long.UnitDelta)
	}
	if *long.Record.Gamma != 0 || *long.Record.Theta != 0 || *long.Record.Vega != 0 || *long.Record.Rho != 0 {
		t.Fatalf("stock higher-order greeks must be zero")
	}

	short := results[1]
	if short.Record.Delta == nil || *short.Record.Delta != -150 {
		t.Fatalf("short delta=%v want -150", short.Record.Delta)
	}
	if short.UnitDelta == nil || *short.UnitDelta != -1 {
		t.Fatalf("short unit delta=%v want -1", short.UnitDelta)
	}
}

func TestComputeAll_ExpiredOptionZeroGreeks(t *testing.T) {
	c := &Calculator{Config: config.GreeksConfig{DefaultVolatility: 0.3, RiskFreeRate: 0.05}}
	strike := decimal.NewFromInt(150)
	expiry := calcDate.AddDate(0, 0, -7)
	positions := []models.Position{
		{
			ID: 3, Symbol: "AAPL260814C150", Underlying: "AAPL", Kind: models.KindCall,
			Quantity: decimal.NewFromInt(5), Strike: &strike, Expiry: &expiry,
		},
	}
	results, err := c.ComputeAll(context.Background(), positions, calcDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := results[0]
	if !r.Record.HasValues() {
		t.Fatalf("expired option must carry explicit zeros, got nils")
	}
	if *r.Record.Delta != 0 || *r.Record.Vega != 0 {
		t.Fatalf("expired option greeks must be zero, delta=%v vega=%v", *r.Record.Delta, *r.Record.Vega)
	}
	if r.UnitDelta == nil || *r.UnitDelta != 0 {
		t.Fatalf("expired option unit delta=%v want 0", r.UnitDelta)
	}
}

func TestComputeAll_MissingParametersNilGreeks(t *testing.T) {
	c := &Calculator{Config: config.GreeksConfig{DefaultVolatility: 0.3, RiskFreeRate: 0.05}}
	positions := []models.Position{
		{ID: 4, Symbol: "SPY260918P400", Underlying: "SPY", Kind: models.KindPut, Quantity: decimal.NewFromInt(2)},
	}
	results, err := c.ComputeAll(context.Background(), positions, calcDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := results[0]
	if r.Record.HasValues() {
		t.Fatalf("missing strike/expiry must yield nil greeks")
	}
	if r.UnitDelta != nil {
		t.Fatalf("unit delta=%v want nil", r.UnitDelta)
	}
	if r.Warning != "missing_option_parameters" {
		t.Fatalf("warning=%q want missing_option_parameters", r.Warning)
	}
}

func TestComputeAll_MissingUnderlyingPriceNilGreeks(t *testing.T) {
	// Nil cache behaves as an empty price store.
	c := &Calculator{Config: config.GreeksConfig{DefaultVolatility: 0.3, RiskFreeRate: 0.05}}
	strike := decimal.NewFromInt(400)
	expiry := calcDate.AddDate(0, 6, 0)
	positions := []models.Position{
		{
			ID: 5, Symbol: "SPY270219C400", Underlying: "SPY", Kind: models.KindCall,
			Quantity: decimal.NewFromInt(1), Strike: &strike, Expiry: &expiry,
		},
	}
	results, err := c.ComputeAll(context.Background(), positions, calcDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := results[0]
	if r.Record.HasValues() {
		t.Fatalf("missing underlying price must yield nil greeks")
	}
	if r.Warning != "missing_underlying_price" {
		t.Fatalf("warning=%q want missing_underlying_price", r.Warning)
	}
}
