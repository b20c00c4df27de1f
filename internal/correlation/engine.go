package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"riskfolio/internal/config"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/models"
	"riskfolio/internal/valuation"
)

// Engine computes pairwise return correlations among significant positions.
// Significance thresholds bound the O(n^2) pair cost.
type Engine struct {
	Cache  *marketdata.Cache
	Config config.CorrelationConfig
	Logger *zap.Logger
}

type Summary struct {
	AverageCorrelation float64
	// ConcentrationScore is the share of pairs correlated above the cluster
	// threshold.
	ConcentrationScore float64
	// EffectivePositions is N / (1 + (N-1) * avg correlation), the effective
	// number of independent bets.
	EffectivePositions float64
	Pairs              int
}

type Cluster struct {
	Label       string
	PositionIDs []uint64
}

type Output struct {
	Records  []models.CorrelationRecord
	Summary  Summary
	Clusters []Cluster
	// Status is set to models.CorrelationStatusInsufficient when no pair had
	// enough overlapping observations.
	Status string
}

// ComputeForPortfolio builds the full correlation matrix (diagonal included)
// for the portfolio's significant positions at calcDate.
func (e *Engine) ComputeForPortfolio(ctx context.Context, portfolioID uint64, valued []valuation.PositionValuation, calcDate time.Time) (Output, error) {
	if e == nil || e.Cache == nil {
		return Output{}, nil
	}
	significant := e.selectSignificant(valued)
	if len(significant) == 0 {
		return Output{Status: models.CorrelationStatusInsufficient}, nil
	}

	lookbackStart := calcDate.AddDate(0, 0, -e.Config.LookbackDays)
	returnsByID := make(map[uint64]map[string]float64, len(significant))
	sectorByID := make(map[uint64]string, len(significant))
	for _, v := range significant {
		points, err := e.Cache.GetPriceRange(ctx, v.Position.PriceSymbol(), lookbackStart, calcDate)
		if err != nil {
			return Output{}, err
		}
		returnsByID[v.Position.ID] = marketdata.DailyReturns(points)
		if len(points) > 0 {
			sectorByID[v.Position.ID] = points[len(points)-1].Sector
		}
	}

	var out Output
	usablePairs := 0
	adjacency := map[uint64][]uint64{}

	for i := 0; i < len(significant); i++ {
		a := significant[i].Position
		// Diagonal: self-correlation is 1 by definition.
		out.Records = append(out.Records, models.CorrelationRecord{
			PortfolioID: portfolioID,
			PositionA:   a.ID,
			PositionB:   a.ID,
			CalcDate:    calcDate,
			Correlation: 1,
			SampleSize:  len(returnsByID[a.ID]),
			Quality:     models.CorrelationQualitySelf,
		})
		for j := i + 1; j < len(significant); j++ {
			b := significant[j].Position
			x, y := alignReturns(returnsByID[a.ID], returnsByID[b.ID])
			coef, ok := Pearson(x, y)
			record := models.CorrelationRecord{
				PortfolioID: portfolioID,
				PositionA:   a.ID,
				PositionB:   b.ID,
				CalcDate:    calcDate,
				SampleSize:  len(x),
			}
			if !ok || len(x) < e.Config.MinOverlap {
				record.Quality = models.CorrelationQualityLowOverlap
				record.Correlation = 0
				out.Records = append(out.Records, record, mirror(record))
				continue
			}
			record.Quality = models.CorrelationQualityOK
			record.Correlation = Clamp(coef)
			out.Records = append(out.Records, record, mirror(record))
			usablePairs++
			out.Summary.AverageCorrelation += record.Correlation
			if record.Correlation >= e.Config.ClusterThreshold {
				out.Summary.ConcentrationScore++
				adjacency[a.ID] = append(adjacency[a.ID], b.ID)
				adjacency[b.ID] = append(adjacency[b.ID], a.ID)
			}
		}
	}

	if usablePairs == 0 {
		out.Status = models.CorrelationStatusInsufficient
		out.Records = nil
		if e.Logger != nil {
			e.Logger.Warn("no position pair had sufficient overlap",
				zap.Uint64("portfolio_id", portfolioID),
				zap.Int("min_overlap", e.Config.MinOverlap),
			)
		}
		return out, nil
	}

	out.Summary.Pairs = usablePairs
	out.Summary.AverageCorrelation /= float64(usablePairs)
	out.Summary.ConcentrationScore /= float64(usablePairs)
	n := float64(len(significant))
	denom := 1 + (n-1)*out.Summary.AverageCorrelation
	if denom > 0 {
		out.Summary.EffectivePositions = n / denom
	} else {
		out.Summary.EffectivePositions = n
	}

	out.Clusters = buildClusters(significant, adjacency, sectorByID)
	return out, nil
}

// FactorMatrix computes the cross-factor correlation matrix from the factor
// proxy return series, used by stress propagation. The bool result is false
// when the matrix could not be built.
func (e *Engine) FactorMatrix(ctx context.Context, factors []models.FactorDefinition, calcDate time.Time) (map[string]map[string]float64, bool, error) {
	if e == nil || e.Cache == nil || len(factors) == 0 {
		return nil, false, nil
	}
	lookbackStart := calcDate.AddDate(0, 0, -e.Config.LookbackDays)
	returns := make(map[string]map[string]float64, len(factors))
	for _, f := range factors {
		points, err := e.Cache.GetPriceRange(ctx, f.ProxySymbol, lookbackStart, calcDate)
		if err != nil {
			return nil, false, err
		}
		r := marketdata.DailyReturns(points)
		if len(r) == 0 {
			continue
		}
		returns[f.Name] = r
	}
	if len(returns) < 2 {
		return nil, false, nil
	}

	matrix := map[string]map[string]float64{}
	usable := false
	for _, fa := range factors {
		ra, ok := returns[fa.Name]
		if !ok {
			continue
		}
		matrix[fa.Name] = map[string]float64{fa.Name: 1}
		for _, fb := range factors {
			if fa.Name == fb.Name {
				continue
			}
			rb, ok := returns[fb.Name]
			if !ok {
				continue
			}
			x, y := alignReturns(ra, rb)
			if len(x) < e.Config.MinOverlap {
				continue
			}
			coef, ok := Pearson(x, y)
			if !ok {
				continue
			}
			matrix[fa.Name][fb.Name] = Clamp(coef)
			usable = true
		}
	}
	return matrix, usable, nil
}

func (e *Engine) selectSignificant(valued []valuation.PositionValuation) []valuation.PositionValuation {
	gross := 0.0
	for _, v := range valued {
		exp, _ := v.Exposure.Float64()
		gross += math.Abs(exp)
	}
	if gross == 0 {
		return nil
	}
	out := make([]valuation.PositionValuation, 0, len(valued))
	for _, v := range valued {
		notional, _ := v.MarketValue.Float64()
		exp, _ := v.Exposure.Float64()
		weight := math.Abs(exp) / gross
		if notional < e.Config.MinNotionalUSD {
			continue
		}
		if weight < e.Config.MinWeight {
			continue
		}
		out = append(out, v)
	}
	return out
}

// buildClusters finds connected components over the above-threshold adjacency
// and labels each with its dominant tag or sector.
func buildClusters(significant []valuation.PositionValuation, adjacency map[uint64][]uint64, sectorByID map[uint64]string) []Cluster {
	posByID := make(map[uint64]models.Position, len(significant))
	for _, v := range significant {
		posByID[v.Position.ID] = v.Position
	}
	visited := map[uint64]bool{}
	var clusters []Cluster
	for _, v := range significant {
		id := v.Position.ID
		if visited[id] || len(adjacency[id]) == 0 {
			continue
		}
		// BFS over the component.
		component := []uint64{}
		queue := []uint64{id}
		visited[id] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			component = append(component, cur)
			for _, next := range adjacency[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		if len(component) < 2 {
			continue
		}
		sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
		clusters = append(clusters, Cluster{
			Label:       clusterLabel(component, posByID, sectorByID),
			PositionIDs: component,
		})
	}
	return clusters
}

func clusterLabel(ids []uint64, posByID map[uint64]models.Position, sectorByID map[uint64]string) string {
	counts := map[string]int{}
	for _, id := range ids {
		pos := posByID[id]
		var tags []string
		if len(pos.Tags) > 0 {
			_ = json.Unmarshal(pos.Tags, &tags)
		}
		for _, t := range tags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				counts[t]++
			}
		}
		if sector := strings.ToLower(strings.TrimSpace(sectorByID[id])); sector != "" {
			counts[sector]++
		}
	}
	best := ""
	bestCount := 0
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best = label
			bestCount = count
		}
	}
	if best == "" {
		return fmt.Sprintf("correlated-group-%d", ids[0])
	}
	return best
}

func mirror(record models.CorrelationRecord) models.CorrelationRecord {
	record.PositionA, record.PositionB = record.PositionB, record.PositionA
	return record
}

// Pearson computes the correlation coefficient of two paired samples.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n < 2 || len(y) != n {
		return 0, false
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	coef := cov / math.Sqrt(varX*varY)
	if math.IsNaN(coef) || math.IsInf(coef, 0) {
		return 0, false
	}
	return coef, true
}

// Clamp bounds a coefficient to [-1, 1]; floating point can drift past the
// mathematical range.
func Clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func alignReturns(a, b map[string]float64) ([]float64, []float64) {
	dates := make([]string, 0, len(a))
	for d := range a {
		if _, ok := b[d]; ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	xs := make([]float64, 0, len(dates))
	ys := make([]float64, 0, len(dates))
	for _, d := range dates {
		xs = append(xs, a[d])
		ys = append(ys, b[d])
	}
	return xs, ys
}
