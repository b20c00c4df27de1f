package aggregation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"riskfolio/internal/models"
	"riskfolio/internal/valuation"
)

// PositionInput is one valued position entering aggregation. Greeks may be
// nil: such positions are skipped in greek sums but still aggregate exposure.
type PositionInput struct {
	Position  models.Position
	Valuation valuation.PositionValuation
	Greeks    *models.GreeksRecord
	UnitDelta *float64
}

// Wrapped is the known wrapper shape some callers hand over instead of a flat
// slice. Aggregation unwraps it rather than miscomputing over the wrong type.
type Wrapped struct {
	Positions []PositionInput
	Metadata  map[string]any
}

type MatchMode int

const (
	MatchAny MatchMode = iota
	MatchAll
)

type ExposureSummary struct {
	Gross decimal.Decimal
	Net   decimal.Decimal
	Long  decimal.Decimal
	Short decimal.Decimal

	PositionCount int
	OptionCount   int
	StockCount    int
}

type GreeksSummary struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64

	Included int
	Skipped  int
}

type Summary struct {
	Exposure      ExposureSummary
	Greeks        GreeksSummary
	DeltaAdjusted decimal.Decimal

	// Excluded enumerates every position left out of a computation and why.
	Excluded []valuation.Exclusion

	// NormalizedInput is true when the input needed unwrapping; logged so the
	// offending caller can be fixed.
	NormalizedInput bool
}

type Group struct {
	Key       string
	Exposure  ExposureSummary
	Greeks    GreeksSummary
	Positions []uint64
}

type Aggregator struct {
	Logger *zap.Logger
}

// Normalize accepts the shapes callers are known to produce and returns a
// flat slice. Unknown shapes are an error, not a silent miscomputation.
func Normalize(input any) ([]PositionInput, bool, error) {
	switch v := input.(type) {
	case []PositionInput:
		return v, false, nil
	case *[]PositionInput:
		if v == nil {
			return nil, false, nil
		}
		return *v, true, nil
	case Wrapped:
		return v.Positions, true, nil
	case *Wrapped:
		if v == nil {
			return nil, false, nil
		}
		return v.Positions, true, nil
	case nil:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("aggregation: unsupported input shape %T", input)
	}
}

// NormalizeKind canonicalizes an instrument kind that may arrive as an
// enumerated value or a differently-cased string.
func NormalizeKind(kind any) string {
	switch v := kind.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", kind)))
	}
}

// Aggregate reduces the input to portfolio-level exposure, greek totals, and
// delta-adjusted exposure.
func (a *Aggregator) Aggregate(input any) (Summary, error) {
	positions, normalized, err := Normalize(input)
	if err != nil {
		return Summary{}, err
	}
	if normalized && a != nil && a.Logger != nil {
		a.Logger.Warn("aggregation input required normalization",
			zap.Int("positions", len(positions)),
		)
	}

	summary := Summary{
		NormalizedInput: normalized,
	}
	summary.Exposure = sumExposure(positions)
	summary.Greeks = sumGreeks(positions)
	summary.DeltaAdjusted, summary.Excluded = deltaAdjusted(positions)

	for _, p := range positions {
		if p.Greeks == nil || !p.Greeks.HasValues() {
			summary.Excluded = append(summary.Excluded, valuation.Exclusion{
				PositionID: p.Position.ID,
				Symbol:     p.Position.Symbol,
				Reason:     "greeks_unavailable",
			})
		}
	}
	return summary, nil
}

// ByTag groups positions whose tag set matches the given tags under the
// chosen mode (ANY = at least one tag, ALL = every tag).
func (a *Aggregator) ByTag(input any, tags []string, mode MatchMode) (Group, error) {
	positions, _, err := Normalize(input)
	if err != nil {
		return Group{}, err
	}
	matched := make([]PositionInput, 0, len(positions))
	ids := make([]uint64, 0, len(positions))
	for _, p := range positions {
		if matchTags(positionTags(p.Position), tags, mode) {
			matched = append(matched, p)
			ids = append(ids, p.Position.ID)
		}
	}
	return Group{
		Key:       strings.Join(tags, ","),
		Exposure:  sumExposure(matched),
		Greeks:    sumGreeks(matched),
		Positions: ids,
	}, nil
}

// ByUnderlying groups stock and option legs sharing one underlying, the view
// used for covered-call and hedge analysis.
func (a *Aggregator) ByUnderlying(input any) (map[string]Group, error) {
	positions, _, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	byKey := map[string][]PositionInput{}
	for _, p := range positions {
		key := strings.TrimSpace(p.Position.Underlying)
		if key == "" {
			key = strings.TrimSpace(p.Position.Symbol)
		}
		byKey[key] = append(byKey[key], p)
	}
	out := make(map[string]Group, len(byKey))
	for key, group := range byKey {
		ids := make([]uint64, 0, len(group))
		for _, p := range group {
			ids = append(ids, p.Position.ID)
		}
		out[key] = Group{
			Key:       key,
			Exposure:  sumExposure(group),
			Greeks:    sumGreeks(group),
			Positions: ids,
		}
	}
	return out, nil
}

func sumExposure(positions []PositionInput) ExposureSummary {
	s := ExposureSummary{
		Gross: decimal.Zero,
		Net:   decimal.Zero,
		Long:  decimal.Zero,
		Short: decimal.Zero,
	}
	for _, p := range positions {
		exp := p.Valuation.Exposure
		s.Gross = s.Gross.Add(exp.Abs())
		s.Net = s.Net.Add(exp)
		if exp.IsNegative() {
			s.Short = s.Short.Add(exp)
		} else {
			s.Long = s.Long.Add(exp)
		}
		s.PositionCount++
		if NormalizeKind(p.Position.Kind) == models.KindStock {
			s.StockCount++
		} else {
			s.OptionCount++
		}
	}
	return s
}

func sumGreeks(positions []PositionInput) GreeksSummary {
	var s GreeksSummary
	for _, p := range positions {
		if p.Greeks == nil || !p.Greeks.HasValues() {
			// Nil greeks are skipped, never treated as zero.
			s.Skipped++
			continue
		}
		s.Delta += *p.Greeks.Delta
		s.Gamma += *p.Greeks.Gamma
		s.Theta += *p.Greeks.Theta
		s.Vega += *p.Greeks.Vega
		s.Rho += *p.Greeks.Rho
		s.Included++
	}
	return s
}

// deltaAdjusted sums exposure scaled to stock-equivalent terms. Options use
// their per-contract delta; stock exposure is already directional. Positions
// with unknown delta are excluded with a reason.
func deltaAdjusted(positions []PositionInput) (decimal.Decimal, []valuation.Exclusion) {
	total := decimal.Zero
	var excluded []valuation.Exclusion
	for _, p := range positions {
		if NormalizeKind(p.Position.Kind) == models.KindStock {
			total = total.Add(p.Valuation.Exposure)
			continue
		}
		if p.UnitDelta == nil {
			excluded = append(excluded, valuation.Exclusion{
				PositionID: p.Position.ID,
				Symbol:     p.Position.Symbol,
				Reason:     "delta_unavailable",
			})
			continue
		}
		total = total.Add(p.Valuation.Exposure.Mul(decimal.NewFromFloat(*p.UnitDelta)))
	}
	return total, excluded
}

func positionTags(pos models.Position) []string {
	if len(pos.Tags) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(pos.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

func matchTags(have, want []string, mode MatchMode) bool {
	if len(want) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	hits := 0
	for _, t := range want {
		if _, ok := set[strings.ToLower(strings.TrimSpace(t))]; ok {
			hits++
		}
	}
	if mode == MatchAll {
		return hits == len(want)
	}
	return hits > 0
}
