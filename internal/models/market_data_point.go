package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataPoint is append-only: one row per (symbol, date). Concurrent
// pipelines refreshing the same symbol race benignly through upserts.
type MarketDataPoint struct {
	ID     uint64    `gorm:"primaryKey;autoIncrement"`
	Symbol string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_symbol_date"`
	Date   time.Time `gorm:"type:date;not null;uniqueIndex:idx_symbol_date"`

	Close decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	Sector   string `gorm:"type:varchar(60)"`
	Industry string `gorm:"type:varchar(80)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (MarketDataPoint) TableName() string {
	return "market_data_points"
}
