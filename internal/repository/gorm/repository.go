package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"riskfolio/internal/models"
	"riskfolio/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Portfolios & positions --------------------------------------------------

func (s *Store) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Portfolio
	if err := s.db.WithContext(ctx).
		Model(&models.Portfolio{}).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Portfolio
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOpenPositions(ctx context.Context, portfolioID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Position
	if err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("portfolio_id = ?", portfolioID).
		Where("exit_date IS NULL").
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Market data --------------------------------------------------------------

func (s *Store) UpsertMarketDataPoints(ctx context.Context, items []models.MarketDataPoint) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"close",
			"sector",
			"industry",
		}),
	}).Create(&items).Error
}

func (s *Store) GetPrice(ctx context.Context, symbol string, date time.Time) (*models.MarketDataPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketDataPoint
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date = ?", strings.TrimSpace(symbol), date).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPriceRange(ctx context.Context, symbol string, start, end time.Time) ([]models.MarketDataPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.MarketDataPoint
	if err := s.db.WithContext(ctx).
		Model(&models.MarketDataPoint{}).
		Where("symbol = ?", strings.TrimSpace(symbol)).
		Where("date >= ? AND date <= ?", start, end).
		Order("date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LatestPriceOnOrBefore(ctx context.Context, symbol string, date time.Time) (*models.MarketDataPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketDataPoint
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.TrimSpace(symbol)).
		Where("date <= ?", date).
		Order("date desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Greeks -------------------------------------------------------------------

func (s *Store) UpsertGreeksRecords(ctx context.Context, items []models.GreeksRecord) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "position_id"}, {Name: "calc_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"portfolio_id",
			"delta",
			"gamma",
			"theta",
			"vega",
			"rho",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListGreeksRecords(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.GreeksRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.GreeksRecord
	if err := s.db.WithContext(ctx).
		Model(&models.GreeksRecord{}).
		Where("portfolio_id = ? AND calc_date = ?", portfolioID, calcDate).
		Order("position_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Factors ------------------------------------------------------------------

func (s *Store) ListFactorDefinitions(ctx context.Context) ([]models.FactorDefinition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.FactorDefinition
	if err := s.db.WithContext(ctx).
		Model(&models.FactorDefinition{}).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SeedFactorDefinitions(ctx context.Context, items []models.FactorDefinition) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&items).Error
}

func (s *Store) UpsertFactorExposures(ctx context.Context, items []models.FactorExposure) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_kind"}, {Name: "entity_id"}, {Name: "factor_name"}, {Name: "calc_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"portfolio_id",
			"beta",
			"quality",
			"sample_size",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListFactorExposures(ctx context.Context, params repository.ListFactorExposuresParams) ([]models.FactorExposure, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.FactorExposure{})
	if strings.TrimSpace(params.EntityKind) != "" {
		query = query.Where("entity_kind = ?", strings.TrimSpace(params.EntityKind))
	}
	if params.EntityID != nil {
		query = query.Where("entity_id = ?", *params.EntityID)
	}
	if params.PortfolioID != nil {
		query = query.Where("portfolio_id = ?", *params.PortfolioID)
	}
	if params.CalcDate != nil && !params.CalcDate.IsZero() {
		query = query.Where("calc_date = ?", *params.CalcDate)
	}
	if params.FactorName != nil && strings.TrimSpace(*params.FactorName) != "" {
		query = query.Where("factor_name = ?", strings.TrimSpace(*params.FactorName))
	}
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.FactorExposure
	if err := query.
		Order("factor_name asc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Correlations ---------------------------------------------------------------

func (s *Store) UpsertCorrelationRecords(ctx context.Context, items []models.CorrelationRecord) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "position_a"}, {Name: "position_b"}, {Name: "calc_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"portfolio_id",
			"correlation",
			"sample_size",
			"quality",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListCorrelationRecords(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.CorrelationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.CorrelationRecord
	if err := s.db.WithContext(ctx).
		Model(&models.CorrelationRecord{}).
		Where("portfolio_id = ? AND calc_date = ?", portfolioID, calcDate).
		Order("position_a asc, position_b asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Stress results ---------------------------------------------------------------

func (s *Store) UpsertStressResults(ctx context.Context, items []models.StressResult) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "portfolio_id"}, {Name: "scenario_id"}, {Name: "calc_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"category",
			"severity",
			"direct_pnl",
			"correlated_pnl",
			"correlation_effect",
			"flags",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListStressResults(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.StressResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.StressResult
	if err := s.db.WithContext(ctx).
		Model(&models.StressResult{}).
		Where("portfolio_id = ? AND calc_date = ?", portfolioID, calcDate).
		Order("scenario_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Snapshots ---------------------------------------------------------------------

func (s *Store) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "portfolio_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_value",
			"gross_exposure",
			"net_exposure",
			"long_exposure",
			"short_exposure",
			"delta_adjusted_exposure",
			"greek_totals",
			"daily_pnl",
			"cumulative_pnl",
			"position_count",
			"option_count",
			"stock_count",
			"first_snapshot",
			"warnings",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetPortfolioSnapshot(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PortfolioSnapshot
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND snapshot_date = ?", portfolioID, date).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LatestSnapshotBefore(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PortfolioSnapshot
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Where("snapshot_date < ?", date).
		Order("snapshot_date desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, params repository.ListSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.PortfolioSnapshot{}).
		Where("portfolio_id = ?", params.PortfolioID)
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("snapshot_date >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("snapshot_date <= ?", *params.Until)
	}
	limit := normalizeLimit(params.Limit, 90)
	offset := normalizeOffset(params.Offset)
	var items []models.PortfolioSnapshot
	if err := query.
		Order("snapshot_date desc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Batch jobs ---------------------------------------------------------------------

func (s *Store) StartBatchJob(ctx context.Context, item *models.BatchJobRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "job_name"}, {Name: "portfolio_id"}, {Name: "run_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"started_at",
			"finished_at",
			"error_detail",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) MarkBatchJobRunning(ctx context.Context, jobName string, portfolioID uint64, runDate time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&models.BatchJobRecord{}).
		Where("job_name = ? AND portfolio_id = ? AND run_date = ?", jobName, portfolioID, runDate).
		Updates(map[string]any{
			"status":     models.JobStatusRunning,
			"started_at": now,
			"updated_at": now,
		}).Error
}

func (s *Store) FinishBatchJob(ctx context.Context, jobName string, portfolioID uint64, runDate time.Time, status string, errorDetail string) error {
	if s == nil || s.db == nil {
		return nil
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&models.BatchJobRecord{}).
		Where("job_name = ? AND portfolio_id = ? AND run_date = ?", jobName, portfolioID, runDate).
		Updates(map[string]any{
			"status":       status,
			"finished_at":  &now,
			"error_detail": errorDetail,
			"updated_at":   now,
		}).Error
}

func (s *Store) ListBatchJobs(ctx context.Context, params repository.ListBatchJobsParams) ([]models.BatchJobRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BatchJobRecord{})
	if params.PortfolioID != nil {
		query = query.Where("portfolio_id = ?", *params.PortfolioID)
	}
	if params.RunDate != nil && !params.RunDate.IsZero() {
		query = query.Where("run_date = ?", *params.RunDate)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.BatchJobRecord
	if err := query.
		Order("run_date desc, portfolio_id asc, id asc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers --------------------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
