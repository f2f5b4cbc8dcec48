package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultTradingDays is the annualization factor used throughout the engine.
const DefaultTradingDays = 252

// EstimateParameters computes annualized expected returns and a shrunk,
// annualized covariance matrix from an aligned price history.
//
// Expected returns are annualized by compounding the mean daily return:
// mu_i = (1 + mean(r_i))^tradingDays - 1. This matches geometric growth of a
// buy-and-hold position and is applied uniformly to every asset.
//
// The covariance matrix is the sample covariance of daily returns, shrunk
// toward a scaled-identity target with the Ledoit-Wolf intensity estimated
// from the data itself, then annualized by the trading-day count.
func EstimateParameters(prices *PriceMatrix, tradingDays int) (*ReturnEstimate, error) {
	if tradingDays <= 0 {
		tradingDays = DefaultTradingDays
	}
	n := len(prices.Tickers)
	if n < 2 {
		return nil, &DataError{Reason: fmt.Sprintf(
			"only %d tickers available; need at least 2 tickers for estimation", n)}
	}
	if prices.Len() < 3 {
		return nil, &DataError{Reason: fmt.Sprintf(
			"price history has %d observations; need at least 3", prices.Len())}
	}

	returns := prices.DailyReturns()
	obs := prices.Len() - 1

	// Returns as an obs x n matrix, columns ordered by prices.Tickers.
	cols := make([][]float64, n)
	mu := make([]float64, n)
	for j, ticker := range prices.Tickers {
		col := returns[ticker]
		if len(col) != obs {
			return nil, fmt.Errorf("inconsistent return length for %s: got %d, expected %d",
				ticker, len(col), obs)
		}
		cols[j] = col
		mu[j] = math.Pow(1+stat.Mean(col, nil), float64(tradingDays)) - 1
	}

	sample := sampleCovariance(cols)
	shrunk, intensity := ledoitWolfShrink(sample, cols, obs)

	// Annualize by scaling daily covariance by the trading-day count.
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, shrunk.At(i, j)*float64(tradingDays))
		}
	}

	tickers := make([]string, n)
	copy(tickers, prices.Tickers)

	return &ReturnEstimate{
		Tickers:   tickers,
		Mu:        mu,
		Sigma:     sigma,
		Shrinkage: intensity,
	}, nil
}

// sampleCovariance computes the sample covariance matrix (N-1 denominator)
// of daily returns. cols holds one return series per asset.
func sampleCovariance(cols [][]float64) *mat.SymDense {
	n := len(cols)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, stat.Covariance(cols[i], cols[j], nil))
		}
	}
	return cov
}

// ledoitWolfShrink shrinks the sample covariance toward mu*I where mu is the
// average sample variance. The intensity delta minimizes the expected squared
// Frobenius loss of the estimator, per Ledoit & Wolf (2004), "A
// well-conditioned estimator for large-dimensional covariance matrices".
// The intensity comes out of the data; it is never a fixed constant.
func ledoitWolfShrink(sample *mat.SymDense, cols [][]float64, obs int) (*mat.SymDense, float64) {
	n := sample.SymmetricDim()
	t := float64(obs)

	// Target scale: mean of the diagonal.
	var m float64
	for i := 0; i < n; i++ {
		m += sample.At(i, i)
	}
	m /= float64(n)

	// d^2: squared distance between the sample matrix and the target, per
	// element (Frobenius norm scaled by 1/n).
	var d2 float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := sample.At(i, j)
			if i == j {
				diff -= m
			}
			d2 += diff * diff
		}
	}
	d2 /= float64(n)

	// b^2: estimation error of the sample covariance, averaged over the
	// daily observations of the outer products x_t x_t'.
	means := make([]float64, n)
	for j, col := range cols {
		means[j] = stat.Mean(col, nil)
	}
	var b2bar float64
	for k := 0; k < obs; k++ {
		for i := 0; i < n; i++ {
			xi := cols[i][k] - means[i]
			for j := 0; j < n; j++ {
				xj := cols[j][k] - means[j]
				diff := xi*xj - sample.At(i, j)
				b2bar += diff * diff
			}
		}
	}
	b2bar /= t * t * float64(n)
	b2 := math.Min(b2bar, d2)

	var delta float64
	if d2 > 0 {
		delta = b2 / d2
	}
	delta = math.Max(0, math.Min(1, delta))

	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			target := 0.0
			if i == j {
				target = m
			}
			shrunk.SetSym(i, j, (1-delta)*sample.At(i, j)+delta*target)
		}
	}
	return shrunk, delta
}
