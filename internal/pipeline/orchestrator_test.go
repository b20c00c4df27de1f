package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"riskfolio/internal/aggregation"
	"riskfolio/internal/config"
	"riskfolio/internal/correlation"
	"riskfolio/internal/factor"
	"riskfolio/internal/greeks"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
	"riskfolio/internal/repository"
	"riskfolio/internal/snapshot"
	"riskfolio/internal/stress"
	"riskfolio/internal/valuation"
)

// pipeRepo is a test-only in-memory implementation of repository.Repository
// with per-method error injection.
type pipeRepo struct {
	mu sync.Mutex

	portfolios []models.Portfolio
	positions  map[uint64][]models.Position
	points     map[string][]models.MarketDataPoint
	factors    []models.FactorDefinition

	greeksRecords []models.GreeksRecord
	exposures     []models.FactorExposure
	correlations  []models.CorrelationRecord
	stresses      []models.StressResult
	snapshots     map[string]*models.PortfolioSnapshot
	jobs          map[string]*models.BatchJobRecord
	// jobTrail records every status a job row passes through.
	jobTrail map[string][]string

	failOpenPositions map[uint64]error
	failGreeksUpsert  error
}

func newPipeRepo() *pipeRepo {
	return &pipeRepo{
		positions:         map[uint64][]models.Position{},
		points:            map[string][]models.MarketDataPoint{},
		snapshots:         map[string]*models.PortfolioSnapshot{},
		jobs:              map[string]*models.BatchJobRecord{},
		jobTrail:          map[string][]string{},
		failOpenPositions: map[uint64]error{},
	}
}

func jobKey(name string, portfolioID uint64, runDate time.Time) string {
	return fmt.Sprintf("%s|%d|%s", name, portfolioID, runDate.Format("2006-01-02"))
}

func snapKey(portfolioID uint64, date time.Time) string {
	return fmt.Sprintf("%d|%s", portfolioID, date.Format("2006-01-02"))
}

func (s *pipeRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *pipeRepo) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	return s.portfolios, nil
}
func (s *pipeRepo) GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error) {
	for _, p := range s.portfolios {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}
func (s *pipeRepo) ListOpenPositions(ctx context.Context, portfolioID uint64) ([]models.Position, error) {
	if err := s.failOpenPositions[portfolioID]; err != nil {
		return nil, err
	}
	return s.positions[portfolioID], nil
}
func (s *pipeRepo) UpsertMarketDataPoints(ctx context.Context, items []models.MarketDataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.points[item.Symbol] = append(s.points[item.Symbol], item)
	}
	return nil
}
func (s *pipeRepo) GetPrice(ctx context.Context, symbol string, date time.Time) (*models.MarketDataPoint, error) {
	for _, p := range s.points[symbol] {
		if p.Date.Equal(date) {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}
func (s *pipeRepo) GetPriceRange(ctx context.Context, symbol string, start, end time.Time) ([]models.MarketDataPoint, error) {
	var out []models.MarketDataPoint
	for _, p := range s.points[symbol] {
		if !p.Date.Before(start) && !p.Date.After(end) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (s *pipeRepo) LatestPriceOnOrBefore(ctx context.Context, symbol string, date time.Time) (*models.MarketDataPoint, error) {
	var best *models.MarketDataPoint
	for _, p := range s.points[symbol] {
		if p.Date.After(date) {
			continue
		}
		if best == nil || p.Date.After(best.Date) {
			cp := p
			best = &cp
		}
	}
	return best, nil
}
func (s *pipeRepo) UpsertGreeksRecords(ctx context.Context, items []models.GreeksRecord) error {
	if s.failGreeksUpsert != nil {
		return s.failGreeksUpsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greeksRecords = append(s.greeksRecords, items...)
	return nil
}
func (s *pipeRepo) ListGreeksRecords(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.GreeksRecord, error) {
	return nil, nil
}
func (s *pipeRepo) ListFactorDefinitions(ctx context.Context) ([]models.FactorDefinition, error) {
	return s.factors, nil
}
func (s *pipeRepo) SeedFactorDefinitions(ctx context.Context, items []models.FactorDefinition) error {
	return nil
}
func (s *pipeRepo) UpsertFactorExposures(ctx context.Context, items []models.FactorExposure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposures = append(s.exposures, items...)
	return nil
}
func (s *pipeRepo) ListFactorExposures(ctx context.Context, params repository.ListFactorExposuresParams) ([]models.FactorExposure, error) {
	var out []models.FactorExposure
	for _, row := range s.exposures {
		if params.EntityKind != "" && row.EntityKind != params.EntityKind {
			continue
		}
		if params.EntityID != nil && row.EntityID != *params.EntityID {
			continue
		}
		if params.PortfolioID != nil && row.PortfolioID != *params.PortfolioID {
			continue
		}
		if params.CalcDate != nil && !row.CalcDate.Equal(*params.CalcDate) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
func (s *pipeRepo) UpsertCorrelationRecords(ctx context.Context, items []models.CorrelationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlations = append(s.correlations, items...)
	return nil
}
func (s *pipeRepo) ListCorrelationRecords(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.CorrelationRecord, error) {
	return nil, nil
}
func (s *pipeRepo) UpsertStressResults(ctx context.Context, items []models.StressResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stresses = append(s.stresses, items...)
	return nil
}
func (s *pipeRepo) ListStressResults(ctx context.Context, portfolioID uint64, calcDate time.Time) ([]models.StressResult, error) {
	return nil, nil
}
func (s *pipeRepo) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapKey(item.PortfolioID, item.SnapshotDate)] = item
	return nil
}
func (s *pipeRepo) GetPortfolioSnapshot(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error) {
	return s.snapshots[snapKey(portfolioID, date)], nil
}
func (s *pipeRepo) LatestSnapshotBefore(ctx context.Context, portfolioID uint64, date time.Time) (*models.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.PortfolioSnapshot
	for _, snap := range s.snapshots {
		if snap.PortfolioID != portfolioID || !snap.SnapshotDate.Before(date) {
			continue
		}
		if best == nil || snap.SnapshotDate.After(best.SnapshotDate) {
			best = snap
		}
	}
	return best, nil
}
func (s *pipeRepo) ListPortfolioSnapshots(ctx context.Context, params repository.ListSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	return nil, nil
}
func (s *pipeRepo) StartBatchJob(ctx context.Context, item *models.BatchJobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey(item.JobName, item.PortfolioID, item.RunDate)
	s.jobs[key] = item
	s.jobTrail[key] = append(s.jobTrail[key], item.Status)
	return nil
}
func (s *pipeRepo) MarkBatchJobRunning(ctx context.Context, jobName string, portfolioID uint64, runDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey(jobName, portfolioID, runDate)
	rec, ok := s.jobs[key]
	if !ok {
		return errors.New("job not started")
	}
	rec.Status = models.JobStatusRunning
	s.jobTrail[key] = append(s.jobTrail[key], models.JobStatusRunning)
	return nil
}
func (s *pipeRepo) FinishBatchJob(ctx context.Context, jobName string, portfolioID uint64, runDate time.Time, status string, errorDetail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey(jobName, portfolioID, runDate)
	rec, ok := s.jobs[key]
	if !ok {
		return errors.New("job not started")
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.ErrorDetail = errorDetail
	rec.FinishedAt = &now
	s.jobTrail[key] = append(s.jobTrail[key], status)
	return nil
}
func (s *pipeRepo) ListBatchJobs(ctx context.Context, params repository.ListBatchJobsParams) ([]models.BatchJobRecord, error) {
	return nil, nil
}

var runDate = time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

func seedRepo() *pipeRepo {
	repo := newPipeRepo()
	repo.portfolios = []models.Portfolio{{ID: 1, Name: "alpha"}}
	repo.positions[1] = []models.Position{
		{ID: 11, PortfolioID: 1, Symbol: "AAPL", Kind: models.KindStock, Quantity: decimal.NewFromInt(100), EntryPrice: decimal.NewFromInt(150)},
		{ID: 12, PortfolioID: 1, Symbol: "TSLA", Kind: models.KindStock, Quantity: decimal.NewFromInt(-50), EntryPrice: decimal.NewFromInt(200)},
	}
	for d := 17; d <= 21; d++ {
		date := time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
		repo.points["AAPL"] = append(repo.points["AAPL"], models.MarketDataPoint{
			Symbol: "AAPL", Date: date, Close: decimal.NewFromInt(int64(150 + d)),
		})
		repo.points["TSLA"] = append(repo.points["TSLA"], models.MarketDataPoint{
			Symbol: "TSLA", Date: date, Close: decimal.NewFromInt(int64(200 - d)),
		})
	}
	return repo
}

func newOrchestrator(repo *pipeRepo) *Orchestrator {
	cache := &marketdata.Cache{Repo: repo}
	calendar := marketdata.NewCalendar(nil)
	return &Orchestrator{
		Repo:      repo,
		Cache:     cache,
		Calendar:  calendar,
		Valuation: &valuation.Engine{Cache: cache, Calendar: calendar},
		Greeks:    &greeks.Calculator{Cache: cache, Config: config.GreeksConfig{DefaultVolatility: 0.3, RiskFreeRate: 0.05}},
		Aggregator: &aggregation.Aggregator{},
		Factors: &factor.Engine{
			Cache: cache, Repo: repo,
			Config: config.FactorConfig{WindowDays: 30, MinSampleSize: 60, BetaCap: 5},
		},
		Correlations: &correlation.Engine{
			Cache: cache,
			Config: config.CorrelationConfig{
				LookbackDays: 30, MinOverlap: 20,
				MinNotionalUSD: 1000, MinWeight: 0.01, ClusterThreshold: 0.7,
			},
		},
		Stress:    &stress.Engine{Repo: repo},
		Snapshots: &snapshot.Builder{Repo: repo, Calendar: marketdata.NewCalendar(nil)},
		Config:    config.PipelineConfig{MaxConcurrent: 2},
	}
}

func TestRunPortfolio_FullSequence(t *testing.T) {
	repo := seedRepo()
	o := newOrchestrator(repo)

	if err := o.RunPortfolio(context.Background(), 1, runDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, stage := range Stages {
		rec, ok := repo.jobs[jobKey(stage, 1, runDate)]
		if !ok {
			t.Fatalf("stage %s: no job record", stage)
		}
		if rec.Status == models.JobStatusFailed {
			t.Fatalf("stage %s: status=failed detail=%s", stage, rec.ErrorDetail)
		}
		if rec.FinishedAt == nil {
			t.Fatalf("stage %s: not finalized", stage)
		}
	}

	snap := repo.snapshots[snapKey(1, runDate)]
	if snap == nil {
		t.Fatalf("snapshot not written")
	}
	if snap.PositionCount != 2 {
		t.Fatalf("positions=%d want 2", snap.PositionCount)
	}
	if len(repo.greeksRecords) != 2 {
		t.Fatalf("greeks records=%d want 2", len(repo.greeksRecords))
	}
}

func TestRunPortfolio_CriticalFailureHalts(t *testing.T) {
	repo := seedRepo()
	repo.failOpenPositions[1] = errors.New("positions table offline")
	o := newOrchestrator(repo)

	if err := o.RunPortfolio(context.Background(), 1, runDate); err == nil {
		t.Fatalf("want error from critical valuation failure")
	}

	rec := repo.jobs[jobKey(StageValuation, 1, runDate)]
	if rec == nil || rec.Status != models.JobStatusFailed {
		t.Fatalf("valuation job=%+v want failed", rec)
	}
	if _, ok := repo.jobs[jobKey(StageGreeks, 1, runDate)]; ok {
		t.Fatalf("greeks must not run after a critical failure")
	}
	if repo.snapshots[snapKey(1, runDate)] != nil {
		t.Fatalf("snapshot must not be written after a critical failure")
	}
}

func TestRunPortfolio_NonCriticalFailureContinues(t *testing.T) {
	repo := seedRepo()
	repo.failGreeksUpsert = errors.New("greeks table offline")
	o := newOrchestrator(repo)

	if err := o.RunPortfolio(context.Background(), 1, runDate); err != nil {
		t.Fatalf("non-critical failure must not fail the run: %v", err)
	}

	if rec := repo.jobs[jobKey(StageGreeks, 1, runDate)]; rec == nil || rec.Status != models.JobStatusFailed {
		t.Fatalf("greeks job=%+v want failed", rec)
	}
	snap := repo.snapshots[snapKey(1, runDate)]
	if snap == nil {
		t.Fatalf("snapshot must still be written")
	}
	if rec := repo.jobs[jobKey(StageSnapshot, 1, runDate)]; rec == nil || rec.Status != models.JobStatusSucceededWithWarning {
		t.Fatalf("snapshot job=%+v want succeeded_with_warnings", rec)
	}
}

func TestRunAll_PortfolioIsolation(t *testing.T) {
	repo := seedRepo()
	repo.portfolios = append(repo.portfolios, models.Portfolio{ID: 2, Name: "beta"})
	repo.positions[2] = []models.Position{
		{ID: 21, PortfolioID: 2, Symbol: "AAPL", Kind: models.KindStock, Quantity: decimal.NewFromInt(10), EntryPrice: decimal.NewFromInt(150)},
	}
	repo.failOpenPositions[1] = errors.New("positions table offline")
	o := newOrchestrator(repo)

	report, err := o.RunAll(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 || report.Succeeded != 1 {
		t.Fatalf("report=%+v want 1 failed, 1 succeeded", report)
	}
	if repo.snapshots[snapKey(2, runDate)] == nil {
		t.Fatalf("healthy portfolio must still produce a snapshot")
	}
}

func TestRunAll_NonTradingDaySkipped(t *testing.T) {
	repo := seedRepo()
	o := newOrchestrator(repo)

	saturday := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	report, err := o.RunAll(context.Background(), saturday, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Skipped {
		t.Fatalf("saturday run must be skipped")
	}
	if len(repo.jobs) != 0 {
		t.Fatalf("jobs=%d want 0 on a skipped day", len(repo.jobs))
	}
}

func TestRunStage_SingleStageRerun(t *testing.T) {
	repo := seedRepo()
	o := newOrchestrator(repo)

	if err := o.RunStage(context.Background(), 1, runDate, StageSnapshot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.snapshots[snapKey(1, runDate)] == nil {
		t.Fatalf("snapshot not written by stage rerun")
	}
	// Prerequisites recompute in memory without their own job rows.
	if _, ok := repo.jobs[jobKey(StageValuation, 1, runDate)]; ok {
		t.Fatalf("prerequisite stages must not record job rows on a rerun")
	}
	if rec := repo.jobs[jobKey(StageSnapshot, 1, runDate)]; rec == nil {
		t.Fatalf("rerun stage must record its job row")
	}

	if err := o.RunStage(context.Background(), 1, runDate, "bogus"); err == nil {
		t.Fatalf("want error for unknown stage")
	}
}

func TestRunStage_StressRerunUsesFactorMatrix(t *testing.T) {
	repo := seedRepo()
	repo.factors = []models.FactorDefinition{
		{Name: "Market", ProxySymbol: "SPY"},
		{Name: "Size", ProxySymbol: "IWM"},
	}
	// Correlated proxy series so the factor matrix is computable.
	spy := []int64{100, 102, 101, 104, 103}
	iwm := []int64{50, 51, 50, 52, 51}
	for i, d := range []int{17, 18, 19, 20, 21} {
		date := time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
		repo.points["SPY"] = append(repo.points["SPY"], models.MarketDataPoint{
			Symbol: "SPY", Date: date, Close: decimal.NewFromInt(spy[i]),
		})
		repo.points["IWM"] = append(repo.points["IWM"], models.MarketDataPoint{
			Symbol: "IWM", Date: date, Close: decimal.NewFromInt(iwm[i]),
		})
	}
	repo.exposures = []models.FactorExposure{
		{EntityKind: models.EntityPortfolio, EntityID: 1, PortfolioID: 1, FactorName: "Market", CalcDate: runDate, Beta: 1.0},
		{EntityKind: models.EntityPortfolio, EntityID: 1, PortfolioID: 1, FactorName: "Size", CalcDate: runDate, Beta: 0.5},
	}

	o := newOrchestrator(repo)
	o.Correlations.Config.MinOverlap = 3
	o.Scenarios = stress.ScenarioSet{Version: 1, Scenarios: []stress.Scenario{{
		ID:       "market-down-20",
		Name:     "Broad market -20%",
		Category: "market",
		Severity: "severe",
		Shocks:   map[string]float64{"Market": -0.20},
	}}}

	if err := o.RunStage(context.Background(), 1, runDate, StageStressTest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.stresses) != 1 {
		t.Fatalf("stress results=%d want 1", len(repo.stresses))
	}
	res := repo.stresses[0]
	// A rerun must propagate the shock through the computable matrix, not
	// degrade to direct-only and overwrite the full run's result.
	if len(res.Flags) != 0 {
		t.Fatalf("flags=%s want none", res.Flags)
	}
	if res.CorrelationEffect.IsZero() {
		t.Fatalf("correlation effect must be non-zero when correlated factors carry betas")
	}
	if res.CorrelatedPnL.Cmp(res.DirectPnL) >= 0 {
		t.Fatalf("correlated=%s direct=%s want correlated loss deeper via induced shock",
			res.CorrelatedPnL, res.DirectPnL)
	}
}

func TestRunStage_JobLifecycle(t *testing.T) {
	repo := seedRepo()
	o := newOrchestrator(repo)

	if err := o.RunPortfolio(context.Background(), 1, runDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trail := repo.jobTrail[jobKey(StageValuation, 1, runDate)]
	want := []string{models.JobStatusPending, models.JobStatusRunning, models.JobStatusSucceeded}
	if len(trail) != len(want) {
		t.Fatalf("trail=%v want %v", trail, want)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("trail=%v want %v", trail, want)
		}
	}
}
