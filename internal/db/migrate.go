package db

import (
	"riskfolio/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Portfolio{},
		&models.Position{},
		&models.MarketDataPoint{},
		&models.GreeksRecord{},
		&models.FactorDefinition{},
		&models.FactorExposure{},
		&models.CorrelationRecord{},
		&models.StressResult{},
		&models.PortfolioSnapshot{},
		&models.BatchJobRecord{},
	)
}

// DefaultFactors is the seeded factor set. Each factor is backed by a liquid
// ETF proxy whose return series drives the regressions.
func DefaultFactors() []models.FactorDefinition {
	return []models.FactorDefinition{
		{Name: "Market", ProxySymbol: "SPY"},
		{Name: "Value", ProxySymbol: "VTV"},
		{Name: "Growth", ProxySymbol: "VUG"},
		{Name: "Momentum", ProxySymbol: "MTUM"},
		{Name: "Quality", ProxySymbol: "QUAL"},
		{Name: "Size", ProxySymbol: "IWM"},
		{Name: "LowVolatility", ProxySymbol: "USMV"},
	}
}
