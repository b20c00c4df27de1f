package models

import "time"

const (
	JobStatusPending              = "pending"
	JobStatusRunning              = "running"
	JobStatusSucceeded            = "succeeded"
	JobStatusSucceededWithWarning = "succeeded_with_warnings"
	JobStatusFailed               = "failed"
)

// BatchJobRecord tracks one stage execution per (job, portfolio, run date).
// Created when the stage starts, finalized exactly once at completion.
type BatchJobRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	JobName     string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_job_portfolio_date"`
	PortfolioID uint64    `gorm:"not null;uniqueIndex:idx_job_portfolio_date"`
	RunDate     time.Time `gorm:"type:date;not null;uniqueIndex:idx_job_portfolio_date"`

	Status string `gorm:"type:varchar(30);not null;index"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`

	ErrorDetail string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BatchJobRecord) TableName() string {
	return "batch_job_records"
}
