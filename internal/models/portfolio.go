package models

import "time"

type Portfolio struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"type:varchar(120);not null;uniqueIndex"`
	BaseCurrency string `gorm:"type:varchar(10);not null;default:'USD'"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}
