package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const StressFlagDirectOnly = "direct_only"

// StressResult is one scenario outcome per (portfolio, scenario, date).
// CorrelationEffect = CorrelatedPnL - DirectPnL. Flags record degraded
// computations such as a direct-only fallback when the factor correlation
// matrix was unavailable.
type StressResult struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	PortfolioID uint64    `gorm:"not null;uniqueIndex:idx_stress_scenario_date"`
	ScenarioID  string    `gorm:"type:varchar(60);not null;uniqueIndex:idx_stress_scenario_date"`
	CalcDate    time.Time `gorm:"type:date;not null;uniqueIndex:idx_stress_scenario_date"`

	Category string `gorm:"type:varchar(30);not null"`
	Severity string `gorm:"type:varchar(20);not null"`

	DirectPnL         decimal.Decimal `gorm:"column:direct_pnl;type:numeric(30,10);not null"`
	CorrelatedPnL     decimal.Decimal `gorm:"column:correlated_pnl;type:numeric(30,10);not null"`
	CorrelationEffect decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	Flags datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StressResult) TableName() string {
	return "stress_results"
}
