package models

import "time"

const (
	CorrelationQualityOK          = "ok"
	CorrelationQualityLowOverlap  = "low_overlap"
	CorrelationQualitySelf        = "self"
	CorrelationStatusInsufficient = "insufficient_data"
)

// CorrelationRecord stores one cell of the full pairwise matrix, diagonal
// included (self-correlation = 1). Coefficient is clamped to [-1, 1].
type CorrelationRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	PortfolioID uint64    `gorm:"not null;index"`
	PositionA   uint64    `gorm:"not null;uniqueIndex:idx_corr_pair_date"`
	PositionB   uint64    `gorm:"not null;uniqueIndex:idx_corr_pair_date"`
	CalcDate    time.Time `gorm:"type:date;not null;uniqueIndex:idx_corr_pair_date"`

	Correlation float64 `gorm:"type:double precision;not null"`
	SampleSize  int     `gorm:"not null"`
	Quality     string  `gorm:"type:varchar(20);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (CorrelationRecord) TableName() string {
	return "correlation_records"
}
