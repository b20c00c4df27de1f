package stress

import (
	"math"
	"testing"
)

func TestDirectImpact_LossNeverExceedsGross(t *testing.T) {
	// Every factor near beta 1 with every factor shocked hard: the naive
	// beta * portfolio-value formula would lose several times the book.
	betas := map[string]float64{
		"Market": 1.0, "Value": 0.9, "Growth": 1.1,
		"Size": 0.95, "Momentum": 1.05, "Quality": 0.85, "LowVolatility": 0.8,
	}
	shocks := map[string]float64{
		"Market": -0.45, "Value": -0.50, "Growth": -0.40,
		"Size": -0.48, "Momentum": -0.35, "Quality": -0.30, "LowVolatility": -0.25,
	}
	gross := 1_000_000.0

	loss := DirectImpact(betas, shocks, gross)
	if loss >= 0 {
		t.Fatalf("loss=%v want negative", loss)
	}
	if loss < -gross {
		t.Fatalf("loss=%v exceeds gross exposure %v", loss, gross)
	}
}

func TestDirectImpact_SingleFactor(t *testing.T) {
	betas := map[string]float64{"Market": 1.2}
	shocks := map[string]float64{"Market": -0.10}
	// Only factor: apportionment gives the full gross, signed by beta.
	got := DirectImpact(betas, shocks, 100000)
	if math.Abs(got-(-10000)) > 1e-6 {
		t.Fatalf("impact=%v want=-10000", got)
	}
}

func TestDirectImpact_ShortBetaGainsOnDownShock(t *testing.T) {
	betas := map[string]float64{"Market": -0.5}
	shocks := map[string]float64{"Market": -0.20}
	got := DirectImpact(betas, shocks, 100000)
	if got <= 0 {
		t.Fatalf("impact=%v want positive for negative beta on a down shock", got)
	}
}

func TestDirectImpact_NoBetasNoImpact(t *testing.T) {
	if got := DirectImpact(nil, map[string]float64{"Market": -0.2}, 100000); got != 0 {
		t.Fatalf("impact=%v want=0", got)
	}
	if got := DirectImpact(map[string]float64{"Market": 0}, map[string]float64{"Market": -0.2}, 100000); got != 0 {
		t.Fatalf("zero betas: impact=%v want=0", got)
	}
}

func TestCorrelatedImpact_PropagatesThroughMatrix(t *testing.T) {
	betas := map[string]float64{"Market": 1.0, "Size": 1.0}
	shocks := map[string]float64{"Market": -0.20}
	matrix := map[string]map[string]float64{
		"Market": {"Market": 1, "Size": 0.8},
		"Size":   {"Size": 1, "Market": 0.8},
	}
	gross := 100000.0

	direct := DirectImpact(betas, shocks, gross)
	correlated := CorrelatedImpact(betas, shocks, matrix, gross)
	// Size picks up 0.8 * -0.20 through the matrix, so the correlated
	// impact is strictly worse than direct.
	if correlated >= direct {
		t.Fatalf("correlated=%v direct=%v want correlated < direct", correlated, direct)
	}
	if correlated < -gross {
		t.Fatalf("correlated=%v exceeds gross %v", correlated, gross)
	}
}

func TestCorrelatedImpact_EmptyMatrixMatchesDirect(t *testing.T) {
	betas := map[string]float64{"Market": 1.0}
	shocks := map[string]float64{"Market": -0.10}
	gross := 50000.0
	direct := DirectImpact(betas, shocks, gross)
	correlated := CorrelatedImpact(betas, shocks, nil, gross)
	if math.Abs(direct-correlated) > 1e-9 {
		t.Fatalf("direct=%v correlated=%v want equal without matrix", direct, correlated)
	}
}

func TestCapLoss(t *testing.T) {
	if got := CapLoss(-150000, 100000); got != -100000 {
		t.Fatalf("got=%v want=-100000", got)
	}
	if got := CapLoss(-50000, 100000); got != -50000 {
		t.Fatalf("got=%v want=-50000", got)
	}
	if got := CapLoss(20000, 100000); got != 20000 {
		t.Fatalf("gains must pass through, got=%v", got)
	}
}

func TestApportionedDollars_SumsToGross(t *testing.T) {
	betas := map[string]float64{"Market": 1.0, "Value": -0.5, "Growth": 0.5}
	gross := 200000.0
	dollars := apportionedDollars(betas, gross)
	totalAbs := 0.0
	for _, d := range dollars {
		totalAbs += math.Abs(d)
	}
	if math.Abs(totalAbs-gross) > 1e-6 {
		t.Fatalf("sum of absolute dollars=%v want=%v", totalAbs, gross)
	}
	if dollars["Value"] >= 0 {
		t.Fatalf("negative beta must keep its sign, got %v", dollars["Value"])
	}
}
