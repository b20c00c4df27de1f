package valuation

import (
	"testing"

	"github.com/shopspring/decimal"

	"riskfolio/internal/models"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValue_LongStock(t *testing.T) {
	pos := models.Position{
		ID:         1,
		Symbol:     "AAPL",
		Kind:       models.KindStock,
		Quantity:   dec("1000"),
		EntryPrice: dec("150"),
	}
	v := Value(pos, dec("155"), dec("154"), true)

	if v.MarketValue.Cmp(dec("155000")) != 0 {
		t.Fatalf("market value=%s want=155000", v.MarketValue)
	}
	if v.Exposure.Cmp(dec("155000")) != 0 {
		t.Fatalf("exposure=%s want=155000", v.Exposure)
	}
	if v.UnrealizedPnL.Cmp(dec("5000")) != 0 {
		t.Fatalf("unrealized=%s want=5000", v.UnrealizedPnL)
	}
	if v.DailyPnL.Cmp(dec("1000")) != 0 {
		t.Fatalf("daily=%s want=1000", v.DailyPnL)
	}
	if len(v.Warnings) != 0 {
		t.Fatalf("warnings=%v want none", v.Warnings)
	}
}

func TestValue_ShortStock(t *testing.T) {
	pos := models.Position{
		ID:         2,
		Symbol:     "TSLA",
		Kind:       models.KindStock,
		Quantity:   dec("-500"),
		EntryPrice: dec("200"),
	}
	v := Value(pos, dec("180"), dec("185"), true)

	// Market value is absolute; exposure keeps the short sign.
	if v.MarketValue.Cmp(dec("90000")) != 0 {
		t.Fatalf("market value=%s want=90000", v.MarketValue)
	}
	if v.Exposure.Cmp(dec("-90000")) != 0 {
		t.Fatalf("exposure=%s want=-90000", v.Exposure)
	}
	if v.UnrealizedPnL.Cmp(dec("10000")) != 0 {
		t.Fatalf("unrealized=%s want=10000", v.UnrealizedPnL)
	}
	if v.DailyPnL.Cmp(dec("2500")) != 0 {
		t.Fatalf("daily=%s want=2500", v.DailyPnL)
	}
}

func TestValue_LongCalls_ContractMultiplier(t *testing.T) {
	strike := dec("150")
	pos := models.Position{
		ID:         3,
		Symbol:     "AAPL260116C150",
		Underlying: "AAPL",
		Kind:       models.KindCall,
		Quantity:   dec("10"),
		EntryPrice: dec("2.50"),
		Strike:     &strike,
	}
	v := Value(pos, dec("3.75"), dec("3.00"), true)

	if v.MarketValue.Cmp(dec("3750")) != 0 {
		t.Fatalf("market value=%s want=3750", v.MarketValue)
	}
	if v.UnrealizedPnL.Cmp(dec("1250")) != 0 {
		t.Fatalf("unrealized=%s want=1250", v.UnrealizedPnL)
	}
	if v.DailyPnL.Cmp(dec("750")) != 0 {
		t.Fatalf("daily=%s want=750", v.DailyPnL)
	}
}

func TestValue_NoPreviousClose_EntryFallback(t *testing.T) {
	pos := models.Position{
		ID:         4,
		Symbol:     "NVDA",
		Kind:       models.KindStock,
		Quantity:   dec("100"),
		EntryPrice: dec("400"),
	}
	v := Value(pos, dec("410"), decimal.Zero, false)

	if v.DailyPnL.Cmp(dec("1000")) != 0 {
		t.Fatalf("daily=%s want=1000 (entry fallback)", v.DailyPnL)
	}
	if len(v.Warnings) != 2 || v.Warnings[0] != WarnNoPreviousClose || v.Warnings[1] != WarnEntryFallback {
		t.Fatalf("warnings=%v want [%s %s]", v.Warnings, WarnNoPreviousClose, WarnEntryFallback)
	}
}

func TestValue_NoPreviousClose_ZeroEntry(t *testing.T) {
	pos := models.Position{
		ID:       5,
		Symbol:   "FREE",
		Kind:     models.KindStock,
		Quantity: dec("10"),
	}
	v := Value(pos, dec("5"), decimal.Zero, false)

	if !v.DailyPnL.IsZero() {
		t.Fatalf("daily=%s want=0", v.DailyPnL)
	}
	if len(v.Warnings) != 1 || v.Warnings[0] != WarnNoPreviousClose {
		t.Fatalf("warnings=%v want [%s]", v.Warnings, WarnNoPreviousClose)
	}
}
