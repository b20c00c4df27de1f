package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

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

// Stage names as recorded in batch job records and accepted by the manual
// trigger endpoint.
const (
	StageMarketData     = "market_data_refresh"
	StageValuation      = "valuation"
	StageGreeks         = "greeks"
	StageAggregation    = "aggregation"
	StageFactorExposure = "factor_exposure"
	StageCorrelation    = "correlation"
	StageStressTest     = "stress_test"
	StageSnapshot       = "snapshot"
)

// Stages lists the per-portfolio stages in execution order.
var Stages = []string{
	StageValuation,
	StageGreeks,
	StageAggregation,
	StageFactorExposure,
	StageCorrelation,
	StageStressTest,
	StageSnapshot,
}

// Orchestrator sequences the daily stages for every portfolio. Valuation and
// aggregation are critical: their failure halts the portfolio's remaining
// stages. Analytical stages (greeks, factors, correlation, stress) fail soft:
// the failure is recorded and the sequence continues. Portfolios are isolated
// from each other and run under a bounded worker pool.
type Orchestrator struct {
	Repo         repository.Repository
	Cache        *marketdata.Cache
	Calendar     *marketdata.Calendar
	Valuation    *valuation.Engine
	Greeks       *greeks.Calculator
	Aggregator   *aggregation.Aggregator
	Factors      *factor.Engine
	Correlations *correlation.Engine
	Stress       *stress.Engine
	Snapshots    *snapshot.Builder
	Scenarios    stress.ScenarioSet
	Config       config.PipelineConfig
	Logger       *zap.Logger
}

type RunReport struct {
	RunDate    time.Time `json:"run_date"`
	Skipped    bool      `json:"skipped"`
	Portfolios int       `json:"portfolios"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// RunAll executes the full pipeline for every portfolio at runDate. Non-trading
// days are skipped unless force is set. One portfolio failing never stops the
// others.
func (o *Orchestrator) RunAll(ctx context.Context, runDate time.Time, force bool) (RunReport, error) {
	report := RunReport{RunDate: runDate}
	if o == nil || o.Repo == nil {
		return report, nil
	}
	if !force && o.Calendar != nil && !o.Calendar.IsTradingDay(runDate) {
		report.Skipped = true
		if o.Logger != nil {
			o.Logger.Info("pipeline skipped on non-trading day", zap.Time("run_date", runDate))
		}
		return report, nil
	}

	portfolios, err := o.Repo.ListPortfolios(ctx)
	if err != nil {
		return report, err
	}
	report.Portfolios = len(portfolios)
	if len(portfolios) == 0 {
		return report, nil
	}

	workers := o.Config.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range portfolios {
		wg.Add(1)
		sem <- struct{}{}
		go func(portfolioID uint64) {
			defer wg.Done()
			defer func() { <-sem }()
			err := o.RunPortfolio(ctx, portfolioID, runDate)
			mu.Lock()
			if err != nil {
				report.Failed++
			} else {
				report.Succeeded++
			}
			mu.Unlock()
		}(p.ID)
	}
	wg.Wait()

	if o.Logger != nil {
		o.Logger.Info("pipeline run finished",
			zap.Time("run_date", runDate),
			zap.Int("portfolios", report.Portfolios),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// RunPortfolio runs the full stage sequence for one portfolio. The returned
// error is the first critical-stage failure; analytical stage failures are
// recorded in batch job records and surfaced as snapshot warnings instead.
func (o *Orchestrator) RunPortfolio(ctx context.Context, portfolioID uint64, runDate time.Time) error {
	state := &runState{portfolioID: portfolioID, runDate: runDate}

	if err := o.runStage(ctx, StageValuation, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageValuation(ctx, state)
	}); err != nil {
		return err
	}

	if err := o.runStage(ctx, StageGreeks, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageGreeks(ctx, state)
	}); err != nil {
		state.warn("greeks_failed")
	}

	if err := o.runStage(ctx, StageAggregation, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageAggregation(state)
	}); err != nil {
		return err
	}

	if err := o.runStage(ctx, StageFactorExposure, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageFactorExposure(ctx, state)
	}); err != nil {
		state.warn("factor_exposure_failed")
	}

	if err := o.runStage(ctx, StageCorrelation, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageCorrelation(ctx, state)
	}); err != nil {
		state.warn("correlation_failed")
	}

	if err := o.runStage(ctx, StageStressTest, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageStressTest(ctx, state)
	}); err != nil {
		state.warn("stress_test_failed")
	}

	return o.runStage(ctx, StageSnapshot, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
		return o.stageSnapshot(ctx, state)
	})
}

// RunStage re-runs a single named stage for one portfolio, recomputing its
// in-memory prerequisites without re-recording their job rows. Used by the
// manual trigger endpoint after an upstream fix.
func (o *Orchestrator) RunStage(ctx context.Context, portfolioID uint64, runDate time.Time, stage string) error {
	state := &runState{portfolioID: portfolioID, runDate: runDate}

	prepare := func(upTo string) error {
		if _, err := o.stageValuation(ctx, state); err != nil {
			return err
		}
		if upTo == StageValuation {
			return nil
		}
		if _, err := o.stageGreeks(ctx, state); err != nil && o.Logger != nil {
			o.Logger.Warn("greeks prerequisite degraded", zap.Error(err))
		}
		if upTo == StageGreeks || upTo == StageFactorExposure || upTo == StageCorrelation {
			return nil
		}
		_, err := o.stageAggregation(state)
		return err
	}

	switch stage {
	case StageValuation:
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageValuation(ctx, state)
		})
	case StageGreeks:
		if err := prepare(StageValuation); err != nil {
			return err
		}
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageGreeks(ctx, state)
		})
	case StageAggregation:
		if err := prepare(StageGreeks); err != nil {
			return err
		}
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageAggregation(state)
		})
	case StageFactorExposure:
		if err := prepare(StageValuation); err != nil {
			return err
		}
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageFactorExposure(ctx, state)
		})
	case StageCorrelation:
		if err := prepare(StageValuation); err != nil {
			return err
		}
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageCorrelation(ctx, state)
		})
	case StageStressTest:
		if err := prepare(StageAggregation); err != nil {
			return err
		}
		// Correlated impact needs the factor matrix. Recompute it here so a
		// rerun upserts the same correlated result as the full run instead of
		// degrading to direct-only and overwriting it.
		factors, err := o.Repo.ListFactorDefinitions(ctx)
		if err != nil {
			return err
		}
		state.factorMatrix, state.matrixOK, err = o.Correlations.FactorMatrix(ctx, factors, runDate)
		if err != nil {
			return err
		}
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageStressTest(ctx, state)
		})
	case StageSnapshot:
		if err := prepare(StageAggregation); err != nil {
			return err
		}
		return o.runStage(ctx, stage, portfolioID, runDate, func(ctx context.Context) ([]string, error) {
			return o.stageSnapshot(ctx, state)
		})
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// RefreshMarketData fetches the lookback window for every symbol the open
// positions and factor proxies reference. Recorded as a global job (portfolio
// id 0).
func (o *Orchestrator) RefreshMarketData(ctx context.Context, runDate time.Time, lookbackDays int) (marketdata.RefreshResult, error) {
	var result marketdata.RefreshResult
	err := o.runStage(ctx, StageMarketData, 0, runDate, func(ctx context.Context) ([]string, error) {
		symbols, err := o.collectSymbols(ctx)
		if err != nil {
			return nil, err
		}
		start := runDate.AddDate(0, 0, -lookbackDays)
		result, err = o.Cache.Refresh(ctx, symbols, start, runDate)
		if err != nil {
			return nil, err
		}
		var warnings []string
		for symbol, detail := range result.Failed {
			warnings = append(warnings, fmt.Sprintf("%s: %s", symbol, detail))
		}
		return warnings, nil
	})
	return result, err
}

func (o *Orchestrator) collectSymbols(ctx context.Context) ([]string, error) {
	portfolios, err := o.Repo.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var symbols []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	for _, p := range portfolios {
		positions, err := o.Repo.ListOpenPositions(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, pos := range positions {
			add(pos.PriceSymbol())
		}
	}
	factors, err := o.Repo.ListFactorDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range factors {
		add(f.ProxySymbol)
	}
	return symbols, nil
}

// runState carries intermediate stage outputs through one portfolio run.
type runState struct {
	portfolioID uint64
	runDate     time.Time

	positions []models.Position
	valued    []valuation.PositionValuation
	excluded  []valuation.Exclusion
	greeksRes []greeks.Result
	inputs    []aggregation.PositionInput
	summary   aggregation.Summary

	factorMatrix map[string]map[string]float64
	matrixOK     bool

	warnings []string
}

func (s *runState) warn(w string) {
	s.warnings = append(s.warnings, w)
}

func (o *Orchestrator) stageValuation(ctx context.Context, s *runState) ([]string, error) {
	positions, err := o.Repo.ListOpenPositions(ctx, s.portfolioID)
	if err != nil {
		return nil, err
	}
	s.positions = positions
	valued, excluded, err := o.Valuation.ValuePositions(ctx, positions, s.runDate)
	if err != nil {
		return nil, err
	}
	s.valued = valued
	s.excluded = excluded
	var warnings []string
	for _, ex := range excluded {
		warnings = append(warnings, fmt.Sprintf("excluded %s: %s", ex.Symbol, ex.Reason))
	}
	return warnings, nil
}

func (o *Orchestrator) stageGreeks(ctx context.Context, s *runState) ([]string, error) {
	results, err := o.Greeks.ComputeAll(ctx, valuedPositions(s.valued), s.runDate)
	if err != nil {
		return nil, err
	}
	s.greeksRes = results
	records := make([]models.GreeksRecord, 0, len(results))
	var warnings []string
	for _, r := range results {
		records = append(records, r.Record)
		if r.Warning != "" {
			warnings = append(warnings, fmt.Sprintf("position %d: %s", r.Record.PositionID, r.Warning))
		}
	}
	if len(records) > 0 {
		if err := o.Repo.UpsertGreeksRecords(ctx, records); err != nil {
			return nil, err
		}
	}
	return warnings, nil
}

func (o *Orchestrator) stageAggregation(s *runState) ([]string, error) {
	byID := make(map[uint64]greeks.Result, len(s.greeksRes))
	for _, r := range s.greeksRes {
		byID[r.Record.PositionID] = r
	}
	inputs := make([]aggregation.PositionInput, 0, len(s.valued))
	for _, v := range s.valued {
		in := aggregation.PositionInput{Position: v.Position, Valuation: v}
		if r, ok := byID[v.Position.ID]; ok {
			record := r.Record
			in.Greeks = &record
			in.UnitDelta = r.UnitDelta
		}
		inputs = append(inputs, in)
	}
	s.inputs = inputs

	summary, err := o.Aggregator.Aggregate(inputs)
	if err != nil {
		return nil, err
	}
	s.summary = summary
	var warnings []string
	if summary.Greeks.Skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d positions skipped in greek totals", summary.Greeks.Skipped))
	}
	return warnings, nil
}

func (o *Orchestrator) stageFactorExposure(ctx context.Context, s *runState) ([]string, error) {
	rows, err := o.Factors.ComputeForPortfolio(ctx, s.portfolioID, s.valued, s.runDate)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []string{"no factor exposures produced"}, nil
	}
	if err := o.Repo.UpsertFactorExposures(ctx, rows); err != nil {
		return nil, err
	}
	var warnings []string
	for _, row := range rows {
		if row.EntityKind == models.EntityPortfolio && row.Quality == models.QualityLimitedHistory {
			warnings = append(warnings, fmt.Sprintf("factor %s: limited history (n=%d)", row.FactorName, row.SampleSize))
		}
	}
	return warnings, nil
}

func (o *Orchestrator) stageCorrelation(ctx context.Context, s *runState) ([]string, error) {
	out, err := o.Correlations.ComputeForPortfolio(ctx, s.portfolioID, s.valued, s.runDate)
	if err != nil {
		return nil, err
	}
	if len(out.Records) > 0 {
		if err := o.Repo.UpsertCorrelationRecords(ctx, out.Records); err != nil {
			return nil, err
		}
	}

	factors, err := o.Repo.ListFactorDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	s.factorMatrix, s.matrixOK, err = o.Correlations.FactorMatrix(ctx, factors, s.runDate)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if out.Status == models.CorrelationStatusInsufficient {
		warnings = append(warnings, "insufficient overlap for correlation matrix")
	}
	if !s.matrixOK {
		warnings = append(warnings, "factor correlation matrix unavailable")
	}
	return warnings, nil
}

func (o *Orchestrator) stageStressTest(ctx context.Context, s *runState) ([]string, error) {
	if len(o.Scenarios.Scenarios) == 0 {
		return []string{"no scenarios configured"}, nil
	}
	results, err := o.Stress.Run(ctx, s.portfolioID, o.Scenarios, s.summary.Exposure.Gross, s.factorMatrix, s.matrixOK, s.runDate)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []string{"stress scenarios skipped: no factor betas"}, nil
	}
	if err := o.Repo.UpsertStressResults(ctx, results); err != nil {
		return nil, err
	}
	if !s.matrixOK {
		return []string{"correlated impact degraded to direct impact"}, nil
	}
	return nil, nil
}

func (o *Orchestrator) stageSnapshot(ctx context.Context, s *runState) ([]string, error) {
	warnings := append([]string(nil), s.warnings...)
	for _, ex := range s.excluded {
		warnings = append(warnings, fmt.Sprintf("excluded %s: %s", ex.Symbol, ex.Reason))
	}
	_, err := o.Snapshots.Build(ctx, s.portfolioID, s.runDate, s.inputs, warnings)
	return warnings, err
}

// runStage records one batch job row around fn. The row is created pending,
// marked running when the stage begins, and finalized exactly once whether fn
// succeeds, degrades, or fails.
func (o *Orchestrator) runStage(ctx context.Context, name string, portfolioID uint64, runDate time.Time, fn func(context.Context) ([]string, error)) error {
	record := &models.BatchJobRecord{
		JobName:     name,
		PortfolioID: portfolioID,
		RunDate:     runDate,
		Status:      models.JobStatusPending,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.Repo.StartBatchJob(ctx, record); err != nil {
		return err
	}
	if err := o.Repo.MarkBatchJobRunning(ctx, name, portfolioID, runDate); err != nil {
		return err
	}

	warnings, err := fn(ctx)

	status := models.JobStatusSucceeded
	detail := ""
	switch {
	case err != nil:
		status = models.JobStatusFailed
		detail = err.Error()
	case len(warnings) > 0:
		status = models.JobStatusSucceededWithWarning
		detail = strings.Join(warnings, "; ")
	}
	if finishErr := o.Repo.FinishBatchJob(ctx, name, portfolioID, runDate, status, detail); finishErr != nil && o.Logger != nil {
		o.Logger.Error("failed to finalize batch job",
			zap.String("job", name),
			zap.Uint64("portfolio_id", portfolioID),
			zap.Error(finishErr),
		)
	}
	if err != nil && o.Logger != nil {
		o.Logger.Error("pipeline stage failed",
			zap.String("job", name),
			zap.Uint64("portfolio_id", portfolioID),
			zap.Time("run_date", runDate),
			zap.Error(err),
		)
	}
	return err
}

func valuedPositions(valued []valuation.PositionValuation) []models.Position {
	out := make([]models.Position, 0, len(valued))
	for _, v := range valued {
		out = append(out, v.Position)
	}
	return out
}
