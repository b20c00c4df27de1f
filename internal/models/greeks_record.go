package models

import "time"

// GreeksRecord holds quantity-scaled, sign-aware option sensitivities.
// All five pointers are nil when the calculation was impossible (missing
// price, expired chain data, bad parameters). A nil is never replaced with
// a fabricated value.
type GreeksRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	PositionID  uint64    `gorm:"not null;uniqueIndex:idx_greeks_pos_date"`
	PortfolioID uint64    `gorm:"not null;index"`
	CalcDate    time.Time `gorm:"type:date;not null;uniqueIndex:idx_greeks_pos_date"`

	Delta *float64 `gorm:"type:double precision"`
	Gamma *float64 `gorm:"type:double precision"`
	Theta *float64 `gorm:"type:double precision"`
	Vega  *float64 `gorm:"type:double precision"`
	Rho   *float64 `gorm:"type:double precision"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (GreeksRecord) TableName() string {
	return "greeks_records"
}

func (g GreeksRecord) HasValues() bool {
	return g.Delta != nil && g.Gamma != nil && g.Theta != nil && g.Vega != nil && g.Rho != nil
}
