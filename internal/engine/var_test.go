package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeVaR(t *testing.T) {
	// 10% expected return, 20% volatility, $100k at 95% confidence.
	// z(0.05) = -1.6449, so annual VaR = 100000 * |0.10 - 1.6449*0.20|.
	result := ComputeVaR(0.10, 0.20, 0.95, 100_000)

	assert.InDelta(t, 22897.07, result.AnnualVaR, 1.0)
	assert.InDelta(t, 2032.63, result.DailyVaR, 1.0)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Greater(t, result.DailyVaR, 0.0)
	assert.Greater(t, result.AnnualVaR, 0.0)
}

func TestComputeVaR_HigherConfidenceMeansHigherVaR(t *testing.T) {
	at95 := ComputeVaR(0.10, 0.20, 0.95, 100_000)
	at99 := ComputeVaR(0.10, 0.20, 0.99, 100_000)

	assert.Greater(t, at99.AnnualVaR, at95.AnnualVaR)
	assert.Greater(t, at99.DailyVaR, at95.DailyVaR)
}

func TestComputeVaR_InvalidConfidenceFallsBack(t *testing.T) {
	result := ComputeVaR(0.10, 0.20, 1.5, 100_000)
	assert.Equal(t, DefaultConfidence, result.Confidence)
}

func TestComputeVaR_ScalesWithInvestment(t *testing.T) {
	small := ComputeVaR(0.10, 0.20, 0.95, 10_000)
	large := ComputeVaR(0.10, 0.20, 0.95, 100_000)

	assert.InDelta(t, small.AnnualVaR*10, large.AnnualVaR, 0.5)
}
