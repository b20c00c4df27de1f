package models

import "time"

const (
	EntityPortfolio = "portfolio"
	EntityPosition  = "position"
)

const (
	QualityFullHistory    = "full_history"
	QualityLimitedHistory = "limited_history"
)

// FactorExposure is one regression beta per (entity, factor, date). Beta is
// capped at the configured bound before persistence.
type FactorExposure struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	EntityKind string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_factor_entity_date"`
	EntityID   uint64    `gorm:"not null;uniqueIndex:idx_factor_entity_date"`
	FactorName string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_factor_entity_date"`
	CalcDate   time.Time `gorm:"type:date;not null;uniqueIndex:idx_factor_entity_date"`

	// PortfolioID scopes position-level rows to their portfolio; for
	// portfolio-level rows it equals EntityID.
	PortfolioID uint64 `gorm:"not null;index"`

	Beta       float64 `gorm:"type:double precision;not null"`
	Quality    string  `gorm:"type:varchar(20);not null"`
	SampleSize int     `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (FactorExposure) TableName() string {
	return "factor_exposures"
}
