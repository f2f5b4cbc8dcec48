package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func symFromRows(rows [][]float64) *mat.SymDense {
	n := len(rows)
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, rows[i][j])
		}
	}
	return s
}

func assertValidWeights(t *testing.T, weights map[string]float64) {
	t.Helper()
	sum := 0.0
	for ticker, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0, "weight for %s should be non-negative", ticker)
		assert.LessOrEqual(t, w, 1.0, "weight for %s should be <= 1", ticker)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-3, "weights should sum to 1")
}

func TestMaxSharpe_SymmetricAssets(t *testing.T) {
	// Two identical, uncorrelated assets: the tangency portfolio is 50/50.
	est := &ReturnEstimate{
		Tickers: []string{"A", "B"},
		Mu:      []float64{0.10, 0.10},
		Sigma:   symFromRows([][]float64{{0.04, 0}, {0, 0.04}}),
	}

	opt := NewOptimizer(zerolog.Nop())
	result, err := opt.MaxSharpe(est, OptimizeOptions{RiskFreeRate: 0.05, Gamma: 0.1})
	require.NoError(t, err)
	require.NotNil(t, result)

	assertValidWeights(t, result.Weights)
	assert.InDelta(t, 0.5, result.Weights["A"], 0.05)
	assert.InDelta(t, 0.5, result.Weights["B"], 0.05)
	assert.Greater(t, result.SharpeRatio, 0.0)
}

func TestMaxSharpe_FavorsHigherReturn(t *testing.T) {
	est := &ReturnEstimate{
		Tickers: []string{"LOW", "HIGH"},
		Mu:      []float64{0.08, 0.16},
		Sigma:   symFromRows([][]float64{{0.04, 0.005}, {0.005, 0.04}}),
	}

	opt := NewOptimizer(zerolog.Nop())
	result, err := opt.MaxSharpe(est, OptimizeOptions{RiskFreeRate: 0.05, Gamma: 0.1})
	require.NoError(t, err)

	assertValidWeights(t, result.Weights)
	assert.Greater(t, result.Weights["HIGH"], result.Weights["LOW"],
		"higher expected return at equal risk should attract more weight")
}

func TestMinVariance_FavorsLowerRisk(t *testing.T) {
	// Uncorrelated assets: analytic min-variance weight is
	// sigma_B^2 / (sigma_A^2 + sigma_B^2) = 0.9 on the low-vol asset.
	est := &ReturnEstimate{
		Tickers: []string{"CALM", "WILD"},
		Mu:      []float64{0.06, 0.12},
		Sigma:   symFromRows([][]float64{{0.01, 0}, {0, 0.09}}),
	}

	opt := NewOptimizer(zerolog.Nop())
	result, err := opt.MinVariance(est, OptimizeOptions{})
	require.NoError(t, err)

	assertValidWeights(t, result.Weights)
	assert.InDelta(t, 0.9, result.Weights["CALM"], 0.05)
}

func TestMaxSharpe_DegenerateUniverse(t *testing.T) {
	// A zero covariance matrix yields zero portfolio volatility, which the
	// engine reports as a numerical failure rather than an infinite Sharpe.
	est := &ReturnEstimate{
		Tickers: []string{"A", "B"},
		Mu:      []float64{0.10, 0.10},
		Sigma:   symFromRows([][]float64{{0, 0}, {0, 0}}),
	}

	opt := NewOptimizer(zerolog.Nop())
	_, err := opt.MaxSharpe(est, OptimizeOptions{})
	var numErr *NumericalError
	require.ErrorAs(t, err, &numErr)
}

func TestCleanWeights(t *testing.T) {
	weights := []float64{0.005, 0.495, 0.5}
	cleaned := cleanWeights(weights, []string{"DUST", "A", "B"}, 0.01)

	_, hasDust := cleaned["DUST"]
	assert.False(t, hasDust, "weights below the cutoff should be dropped")

	sum := 0.0
	for _, w := range cleaned {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-3, "survivors should be renormalized")
	assert.Greater(t, cleaned["B"], cleaned["A"])
}

func TestCleanWeights_AllBelowCutoff(t *testing.T) {
	weights := []float64{0.004, 0.006}
	cleaned := cleanWeights(weights, []string{"A", "B"}, 0.01)

	sum := 0.0
	for _, w := range cleaned {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-3, "raw weights should be kept when everything is dust")
}

func TestClassifyStrategy(t *testing.T) {
	assert.Equal(t, "Conservative", classifyStrategy(0.10))
	assert.Equal(t, "Conservative", classifyStrategy(0.12))
	assert.Equal(t, "Balanced", classifyStrategy(0.15))
	assert.Equal(t, "Balanced", classifyStrategy(0.20))
	assert.Equal(t, "Aggressive", classifyStrategy(0.30))
}
