package greeks

import (
	"fmt"
	"math"
)

// Inputs parameterize the closed-form Black-Scholes model. TimeToExpiry is in
// years; Volatility and RiskFree are annualized fractions.
type Inputs struct {
	Spot         float64
	Strike       float64
	TimeToExpiry float64
	Volatility   float64
	RiskFree     float64
	IsCall       bool
}

// Greeks are per-contract sensitivities. Theta is per calendar day; vega and
// rho are per one percentage point of volatility / rate.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Compute evaluates the Black-Scholes greeks. It rejects non-positive spot,
// strike, time, or volatility instead of producing NaN sensitivities.
func Compute(in Inputs) (Greeks, error) {
	if in.Spot <= 0 {
		return Greeks{}, fmt.Errorf("spot must be positive, got %v", in.Spot)
	}
	if in.Strike <= 0 {
		return Greeks{}, fmt.Errorf("strike must be positive, got %v", in.Strike)
	}
	if in.TimeToExpiry <= 0 {
		return Greeks{}, fmt.Errorf("time to expiry must be positive, got %v", in.TimeToExpiry)
	}
	if in.Volatility <= 0 {
		return Greeks{}, fmt.Errorf("volatility must be positive, got %v", in.Volatility)
	}

	sqrtT := math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) + (in.RiskFree+in.Volatility*in.Volatility/2)*in.TimeToExpiry) /
		(in.Volatility * sqrtT)
	d2 := d1 - in.Volatility*sqrtT

	if math.IsNaN(d1) || math.IsInf(d1, 0) {
		return Greeks{}, fmt.Errorf("degenerate model inputs: d1=%v", d1)
	}

	discount := math.Exp(-in.RiskFree * in.TimeToExpiry)
	pdfD1 := normPDF(d1)

	var g Greeks
	if in.IsCall {
		g.Delta = normCDF(d1)
		g.Theta = (-in.Spot*pdfD1*in.Volatility/(2*sqrtT) -
			in.RiskFree*in.Strike*discount*normCDF(d2)) / 365
		g.Rho = in.Strike * in.TimeToExpiry * discount * normCDF(d2) / 100
	} else {
		g.Delta = normCDF(d1) - 1
		g.Theta = (-in.Spot*pdfD1*in.Volatility/(2*sqrtT) +
			in.RiskFree*in.Strike*discount*normCDF(-d2)) / 365
		g.Rho = -in.Strike * in.TimeToExpiry * discount * normCDF(-d2) / 100
	}
	g.Gamma = pdfD1 / (in.Spot * in.Volatility * sqrtT)
	g.Vega = in.Spot * pdfD1 * sqrtT / 100

	return g, nil
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
