package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"riskfolio/internal/models"
)

// Repository is the persistence surface shared by the pipeline stages and the
// read API. All writes that concurrent pipelines can race on are upserts keyed
// by natural unique indexes.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Portfolios & positions
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error)
	ListOpenPositions(ctx context.Context, portfolioID uint64) ([]models.Position, error)

	// Market data (append-only; upsert keyed (symbol, date))
	UpsertMarketDataPoints(ctx context.Context, items []models.MarketDataPoint) error
	GetPrice(ctx context.Context, symbol string, date time.Time) (*models.MarketDataPoint, error)
	GetPriceRange(ctx context.Context, symbol string, start, end time.Time) ([]models.MarketDataPoint, error)
	LatestPriceOnOrBefore(ctx context.Context, symbol string, date time.Time) (*models.MarketDataPoint, error)

	// Greeks
	UpsertGreeksRecords(ctx context.Context, items []models.GreeksRecord) error
	ListGreeksRecords(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.GreeksRecord, error)

	// Factors
	ListFactorDefinitions(ctx context.Context) ([]models.FactorDefinition, error)
	SeedFactorDefinitions(ctx context.Context, items []models.FactorDefinition) error
	UpsertFactorExposures(ctx context.Context, items []models.FactorExposure) error
	ListFactorExposures(ctx context.Context, params ListFactorExposuresParams) ([]models.FactorExposure, error)

	// Correlations
	UpsertCorrelationRecords(ctx context.Context, items []models.CorrelationRecord) error
	ListCorrelationRecords(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.CorrelationRecord, error)

	// Stress results
	UpsertStressResults(ctx context.Context, items []models.StressResult) error
	ListStressResults(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.StressResult, error)

	// Snapshots
	UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error
	GetPortfolioSnapshot(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error)
	LatestSnapshotBefore(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error)
	ListPortfolioSnapshots(ctx context.Context, params ListSnapshotsParams) ([]models.PortfolioSnapshot, error)

	// Batch jobs. A job row is created pending, marked running when its stage
	// begins, and finalized exactly once.
	StartBatchJob(ctx context.Context, item *models.BatchJobRecord) error
	MarkBatchJobRunning(ctx context.Context, jobName string, portfolioID uint64, runDate time.Time) error
	FinishBatchJob(ctx context.Context, jobName string, portfolioID uint64, runDate time.Time, status string, errorDetail string) error
	ListBatchJobs(ctx context.Context, params ListBatchJobsParams) ([]models.BatchJobRecord, error)
}

type ListFactorExposuresParams struct {
	EntityKind string
	EntityID   *uint64
	// PortfolioID scopes position-level rows to one portfolio; without it a
	// position query would leak rows across portfolios.
	PortfolioID *uint64
	CalcDate    *time.Time
	FactorName  *string
	Limit       int
	Offset      int
}

type ListSnapshotsParams struct {
	PortfolioID uint64
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

type ListBatchJobsParams struct {
	PortfolioID *uint64
	RunDate     *time.Time
	Status      *string
	Limit       int
	Offset      int
}
