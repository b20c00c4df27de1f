package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PortfolioSnapshot is the one point-in-time record per (portfolio, trading
// day). Re-runs for the same day upsert rather than duplicate.
type PortfolioSnapshot struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	PortfolioID  uint64    `gorm:"not null;uniqueIndex:idx_snapshot_portfolio_date"`
	SnapshotDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_snapshot_portfolio_date"`

	TotalValue    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	GrossExposure decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	NetExposure   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	LongExposure  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	ShortExposure decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	DeltaAdjustedExposure decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	// Elementwise sums of non-nil position Greeks for the day.
	GreekTotals datatypes.JSON `gorm:"type:jsonb"`

	DailyPnL      decimal.Decimal `gorm:"column:daily_pnl;type:numeric(30,10);not null"`
	CumulativePnL decimal.Decimal `gorm:"column:cumulative_pnl;type:numeric(30,10);not null"`

	PositionCount int `gorm:"not null"`
	OptionCount   int `gorm:"not null"`
	StockCount    int `gorm:"not null"`

	// FirstSnapshot distinguishes "no history" from "no movement" when
	// DailyPnL is zero.
	FirstSnapshot bool `gorm:"not null;default:false"`

	// Warnings is the data-availability section: which calculations were
	// skipped or degraded and why.
	Warnings datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
