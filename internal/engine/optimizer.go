package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Optimization defaults. Gamma is the diversification penalty weight pushing
// the solution toward the equal-weight portfolio; the weight cutoff zeroes
// dust positions after the solve.
const (
	DefaultRiskFreeRate = 0.05
	DefaultGamma        = 0.1
	DefaultCutoff       = 0.01

	// Strategy classification thresholds on annualized volatility.
	conservativeVolThreshold = 0.12
	balancedVolThreshold     = 0.20

	// Constraint penalty weight for the sum-to-one and target-return terms.
	penaltyWeight = 1000.0

	// Volatility below this floor indicates a degenerate universe rather
	// than a genuinely riskless portfolio.
	volEpsilon = 1e-8
)

// OptimizeOptions carries the tunable parameters of a max-Sharpe solve.
type OptimizeOptions struct {
	RiskFreeRate float64
	Gamma        float64 // diversification penalty weight; 0 disables it
	Cutoff       float64 // minimum post-solve weight; smaller weights are zeroed
}

// Optimizer solves the constrained portfolio-choice problem: long-only,
// fully-invested max-Sharpe with a diversification penalty, with a
// minimum-variance fallback when the primary solve fails.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a new optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "optimizer").Logger()}
}

// MaxSharpe solves the tangency portfolio problem
//
//	maximize (mu'w - rf) / sqrt(w'Σw) - gamma * ||w - 1/N||^2
//	subject to Σw_i = 1, 0 <= w_i <= 1
//
// via a penalty-method formulation on a smooth solver (BFGS, with a
// Nelder-Mead retry). If the solve fails to converge it falls back to the
// minimum-variance portfolio and logs a warning; if the fallback fails too,
// the error is fatal.
func (o *Optimizer) MaxSharpe(est *ReturnEstimate, opts OptimizeOptions) (*OptimizationResult, error) {
	if opts.RiskFreeRate == 0 {
		opts.RiskFreeRate = DefaultRiskFreeRate
	}
	if opts.Cutoff == 0 {
		opts.Cutoff = DefaultCutoff
	}

	weights, err := o.solveMaxSharpe(est, opts)
	if err != nil {
		o.log.Warn().Err(err).Msg("Max-Sharpe solve failed; falling back to minimum variance")
		weights, err = o.solveMinVariance(est, nil)
		if err != nil {
			return nil, &OptimizationError{Stage: "min_variance fallback", Err: err}
		}
	}

	cleaned := cleanWeights(weights, est.Tickers, opts.Cutoff)
	return o.performance(est, cleaned, opts.RiskFreeRate)
}

// MinVariance solves the global minimum-variance portfolio under the same
// long-only, fully-invested constraints, with no Sharpe objective.
func (o *Optimizer) MinVariance(est *ReturnEstimate, opts OptimizeOptions) (*OptimizationResult, error) {
	if opts.RiskFreeRate == 0 {
		opts.RiskFreeRate = DefaultRiskFreeRate
	}
	if opts.Cutoff == 0 {
		opts.Cutoff = DefaultCutoff
	}

	weights, err := o.solveMinVariance(est, nil)
	if err != nil {
		return nil, &OptimizationError{Stage: "min_variance", Err: err}
	}

	cleaned := cleanWeights(weights, est.Tickers, opts.Cutoff)
	return o.performance(est, cleaned, opts.RiskFreeRate)
}

// solveMaxSharpe runs the penalized negative-Sharpe minimization and returns
// normalized raw weights aligned with est.Tickers.
func (o *Optimizer) solveMaxSharpe(est *ReturnEstimate, opts OptimizeOptions) ([]float64, error) {
	n := len(est.Tickers)
	mu := est.Mu
	sigma := est.Sigma
	rf := opts.RiskFreeRate
	gamma := opts.Gamma
	equal := 1.0 / float64(n)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToUnitBox(x)

			var ret, variance float64
			for i := 0; i < n; i++ {
				ret += mu[i] * w[i]
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * sigma.At(i, j)
				}
			}
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			obj := -(ret - rf) / stdDev

			for i := 0; i < n; i++ {
				dev := w[i] - equal
				obj += gamma * dev * dev
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)

			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToUnitBox(x)

			var ret, variance float64
			for i := 0; i < n; i++ {
				ret += mu[i] * w[i]
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * sigma.At(i, j)
				}
			}
			stdDev := math.Sqrt(math.Max(variance, 1e-10))
			excess := ret - rf

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * w[j]
				}
				grad[i] = -mu[i]/stdDev + excess*dVariance/(2*stdDev*stdDev*stdDev)
				grad[i] += 2 * gamma * (w[i] - equal)
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	return runSolve(problem, n)
}

// solveMinVariance minimizes w'Σw under the sum-to-one and box constraints.
// A non-nil targetReturn adds the frontier equality constraint mu'w = target
// as a penalty term.
func (o *Optimizer) solveMinVariance(est *ReturnEstimate, targetReturn *float64) ([]float64, error) {
	n := len(est.Tickers)
	mu := est.Mu
	sigma := est.Sigma

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToUnitBox(x)

			var variance float64
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * sigma.At(i, j)
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}

			obj := variance
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)

			if targetReturn != nil {
				var ret float64
				for i := 0; i < n; i++ {
					ret += mu[i] * w[i]
				}
				obj += penaltyWeight * (ret - *targetReturn) * (ret - *targetReturn)
			}

			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToUnitBox(x)

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}

			var ret float64
			if targetReturn != nil {
				for i := 0; i < n; i++ {
					ret += mu[i] * w[i]
				}
			}

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * w[j]
				}
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
				if targetReturn != nil {
					grad[i] += 2 * penaltyWeight * (ret - *targetReturn) * mu[i]
				}
			}
		},
	}

	return runSolve(problem, n)
}

// runSolve minimizes the problem from the equal-weight starting point with
// BFGS, retrying with Nelder-Mead on failure, then projects and normalizes
// the solution.
func runSolve(problem optimize.Problem, n int) ([]float64, error) {
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("solver failed: %w", err)
		}
		if !converged(result.Status) {
			return nil, fmt.Errorf("solver did not converge: status=%v", result.Status)
		}
	}

	w := projectToUnitBox(result.X)
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return nil, fmt.Errorf("solver produced a zero-weight solution")
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}

// converged reports whether the optimize status counts as a successful solve.
func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

// projectToUnitBox clamps every weight to [0, 1].
func projectToUnitBox(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0, math.Min(1, x[i]))
	}
	return proj
}

// cleanWeights zeroes weights below the cutoff, renormalizes the survivors to
// sum to 1 and rounds them to 4 decimals.
func cleanWeights(w []float64, tickers []string, cutoff float64) map[string]float64 {
	kept := make([]float64, len(w))
	sum := 0.0
	for i, v := range w {
		if v >= cutoff {
			kept[i] = v
			sum += v
		}
	}
	// Degenerate case: everything was below the cutoff. Keep the raw
	// weights instead of returning an empty portfolio.
	if sum <= 0 {
		copy(kept, w)
		for _, v := range w {
			sum += v
		}
	}

	out := make(map[string]float64, len(tickers))
	for i, ticker := range tickers {
		if kept[i] <= 0 {
			continue
		}
		out[ticker] = math.Round(kept[i]/sum*1e4) / 1e4
	}
	return out
}

// performance computes expected return, volatility and Sharpe ratio for the
// final weights and classifies the strategy from realized volatility.
func (o *Optimizer) performance(est *ReturnEstimate, weights map[string]float64, rf float64) (*OptimizationResult, error) {
	n := len(est.Tickers)
	w := make([]float64, n)
	for i, ticker := range est.Tickers {
		w[i] = weights[ticker]
	}

	var ret float64
	for i := 0; i < n; i++ {
		ret += est.Mu[i] * w[i]
	}
	variance := quadraticForm(w, est.Sigma)
	if variance < 0 {
		variance = 0
	}
	vol := math.Sqrt(variance)
	if vol < volEpsilon {
		return nil, &NumericalError{Reason: fmt.Sprintf(
			"portfolio volatility %.3g is effectively zero; universe appears degenerate", vol)}
	}

	sharpe := (ret - rf) / vol

	return &OptimizationResult{
		Weights:        weights,
		ExpectedReturn: round6(ret),
		Volatility:     round6(vol),
		SharpeRatio:    round6(sharpe),
		Strategy:       classifyStrategy(vol),
	}, nil
}

// classifyStrategy maps annualized volatility to a strategy label. The label
// derives from realized portfolio risk, not from the investor's stated risk
// tolerance.
func classifyStrategy(volatility float64) string {
	switch {
	case volatility <= conservativeVolThreshold:
		return "Conservative"
	case volatility <= balancedVolThreshold:
		return "Balanced"
	default:
		return "Aggressive"
	}
}

// quadraticForm computes w'Σw.
func quadraticForm(w []float64, sigma *mat.SymDense) float64 {
	n := len(w)
	var out float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return out
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}
