package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the default VaR confidence level.
const DefaultConfidence = 0.95

// ComputeVaR computes parametric Value-at-Risk under a Gaussian return
// assumption. Daily parameters are derived from the annual figures as
// mu/T and sigma/sqrt(T); both results are reported as positive currency
// magnitudes.
func ComputeVaR(expectedReturn, volatility, confidence, investment float64) VaRResult {
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultConfidence
	}

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - confidence)

	t := float64(DefaultTradingDays)
	muDaily := expectedReturn / t
	sigmaDaily := volatility / math.Sqrt(t)

	dailyVaR := investment * math.Abs(muDaily+z*sigmaDaily)
	annualVaR := investment * math.Abs(expectedReturn+z*volatility)

	return VaRResult{
		DailyVaR:   round2(dailyVaR),
		AnnualVaR:  round2(annualVaR),
		Confidence: confidence,
	}
}
