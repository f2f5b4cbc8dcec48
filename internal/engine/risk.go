package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultCrashPct is the uniform shock applied by the stress test.
const DefaultCrashPct = -0.20

// ComputeCorrelationMatrix computes the Pearson correlation matrix of daily
// returns across the tickers in the price matrix. The result is symmetric
// with a diagonal of exactly 1.
func ComputeCorrelationMatrix(prices *PriceMatrix) map[string]map[string]float64 {
	returns := prices.DailyReturns()
	out := make(map[string]map[string]float64, len(prices.Tickers))
	for _, a := range prices.Tickers {
		out[a] = make(map[string]float64, len(prices.Tickers))
		out[a][a] = 1
	}
	for i, a := range prices.Tickers {
		for _, b := range prices.Tickers[i+1:] {
			corr := stat.Correlation(returns[a], returns[b], nil)
			if math.IsNaN(corr) {
				corr = 0
			}
			corr = round6(corr)
			out[a][b] = corr
			out[b][a] = corr
		}
	}
	return out
}

// ComputeContributionToRisk performs the Euler decomposition of portfolio
// variance: contribution_i = w_i * (Σw)_i / w'Σw * 100, using the annualized
// covariance of the held tickers. Contributions sum to 100 across held
// tickers; a single held ticker trivially gets 100.
func ComputeContributionToRisk(
	prices *PriceMatrix,
	weights map[string]float64,
	tradingDays int,
) ([]RiskContribution, error) {
	if tradingDays <= 0 {
		tradingDays = DefaultTradingDays
	}

	held := make([]string, 0, len(weights))
	for _, ticker := range prices.Tickers {
		if weights[ticker] > 0 {
			held = append(held, ticker)
		}
	}
	if len(held) == 0 {
		return nil, &DataError{Reason: "no held tickers present in price history"}
	}
	if len(held) == 1 {
		return []RiskContribution{{Ticker: held[0], Pct: 100}}, nil
	}

	returns := prices.DailyReturns()
	cols := make([][]float64, len(held))
	w := make([]float64, len(held))
	for i, ticker := range held {
		cols[i] = returns[ticker]
		w[i] = weights[ticker]
	}

	n := len(held)
	cov := sampleCovariance(cols)
	// Annualized covariance restricted to held tickers.
	sigmaW := make([]float64, n)
	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigmaW[i] += cov.At(i, j) * float64(tradingDays) * w[j]
		}
		variance += w[i] * sigmaW[i]
	}

	if variance < volEpsilon {
		return nil, &NumericalError{Reason: fmt.Sprintf(
			"portfolio variance %.3g is effectively zero; cannot decompose risk", variance)}
	}

	out := make([]RiskContribution, n)
	for i, ticker := range held {
		out[i] = RiskContribution{
			Ticker: ticker,
			Pct:    round2(w[i] * sigmaW[i] / variance * 100),
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pct > out[j].Pct })
	return out, nil
}

// StressTest applies a uniform shock to every held asset. The model assumes
// perfect correlation during the crash, so with fully-invested weights the
// portfolio loss fraction equals the shock fraction exactly.
func StressTest(weights map[string]float64, investment, crashPct float64) StressResult {
	if crashPct == 0 {
		crashPct = DefaultCrashPct
	}

	post := investment * (1 + crashPct)
	return StressResult{
		CrashPct:             crashPct,
		PortfolioReturnCrash: round2(crashPct * 100),
		PreShockValue:        round2(investment),
		PostShockValue:       round2(post),
		Loss:                 round2(investment - post),
	}
}
