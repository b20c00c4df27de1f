package models

import "time"

// FactorDefinition names a market factor and the proxy instrument whose
// return series backs it. The set is seeded at migration time.
type FactorDefinition struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"type:varchar(40);not null;uniqueIndex"`
	ProxySymbol string `gorm:"type:varchar(40);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (FactorDefinition) TableName() string {
	return "factor_definitions"
}
