package engine

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// PriceMatrix holds aligned daily adjusted-close prices for a set of tickers.
// Every series has exactly one value per entry in Dates; the provider is
// responsible for alignment and gap filling before the matrix reaches the
// engine.
type PriceMatrix struct {
	Dates   []time.Time
	Tickers []string
	Prices  map[string][]float64
}

// Len returns the number of trading days in the matrix.
func (p *PriceMatrix) Len() int {
	return len(p.Dates)
}

// Series returns the price series for a ticker, or nil if absent.
func (p *PriceMatrix) Series(ticker string) []float64 {
	return p.Prices[ticker]
}

// DailyReturns computes simple daily returns per ticker.
// Each series has Len()-1 entries; zero-or-negative previous prices yield a
// zero return rather than propagating garbage.
func (p *PriceMatrix) DailyReturns() map[string][]float64 {
	returns := make(map[string][]float64, len(p.Tickers))
	for _, ticker := range p.Tickers {
		returns[ticker] = dailyReturns(p.Prices[ticker])
	}
	return returns
}

func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 && !math.IsNaN(prices[i]) && !math.IsNaN(prices[i-1]) {
			out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return out
}

// ReturnEstimate holds annualized expected returns and the shrunk, annualized
// covariance matrix for a ticker universe. Mu and Sigma are aligned with
// Tickers.
type ReturnEstimate struct {
	Tickers   []string
	Mu        []float64
	Sigma     *mat.SymDense
	Shrinkage float64 // Ledoit-Wolf intensity actually applied, in [0, 1]
}

// MuFor returns the expected return for a ticker, or 0 if unknown.
func (e *ReturnEstimate) MuFor(ticker string) float64 {
	for i, t := range e.Tickers {
		if t == ticker {
			return e.Mu[i]
		}
	}
	return 0
}

// OptimizationResult is the outcome of a portfolio optimization solve.
type OptimizationResult struct {
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	Strategy       string             `json:"strategy"`
}

// FrontierPoint is one (target return, volatility) pair on the efficient
// frontier.
type FrontierPoint struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// VaRResult holds parametric Value-at-Risk figures in currency units.
type VaRResult struct {
	DailyVaR   float64 `json:"daily_var"`
	AnnualVaR  float64 `json:"annual_var"`
	Confidence float64 `json:"confidence"`
}

// BacktestResult is the output of the historical simulation.
type BacktestResult struct {
	Dates                 []string  `json:"dates"`
	PortfolioValues       []float64 `json:"portfolio_values"`
	BenchmarkValues       []float64 `json:"benchmark_values"`
	Drawdowns             []float64 `json:"drawdowns"`
	PortfolioTotalReturn  float64   `json:"portfolio_total_return"`
	BenchmarkTotalReturn  float64   `json:"benchmark_total_return"`
	PortfolioCAGR         float64   `json:"portfolio_cagr"`
	BenchmarkCAGR         float64   `json:"benchmark_cagr"`
	TotalInvested         float64   `json:"total_invested"`
	PortfolioMaxDrawdown  float64   `json:"portfolio_max_drawdown"`
	BenchmarkMaxDrawdown  float64   `json:"benchmark_max_drawdown"`
	MonthsElapsed         int       `json:"months_elapsed"`
}

// RiskContribution is one asset's Euler share of portfolio variance.
type RiskContribution struct {
	Ticker string  `json:"ticker"`
	Pct    float64 `json:"pct"`
}

// StressResult reports a uniform-shock stress scenario.
type StressResult struct {
	CrashPct             float64 `json:"crash_pct"`
	PortfolioReturnCrash float64 `json:"portfolio_return_crash"`
	PreShockValue        float64 `json:"pre_shock_value"`
	PostShockValue       float64 `json:"post_shock_value"`
	Loss                 float64 `json:"loss"`
}

// Bundle is the full result of one portfolio generation request. It is
// assembled once by the orchestrator and never mutated afterwards.
type Bundle struct {
	ValidTickers        []string                      `json:"valid_tickers"`
	Optimization        *OptimizationResult           `json:"optimization"`
	EfficientFrontier   []FrontierPoint               `json:"efficient_frontier"`
	VaR                 *VaRResult                    `json:"var"`
	Backtest            *BacktestResult               `json:"backtest"`
	Investment          float64                       `json:"investment"`
	RiskTolerance       float64                       `json:"risk_tolerance"`
	MonthlyContribution float64                       `json:"monthly_contribution"`
	CorrelationMatrix   map[string]map[string]float64 `json:"correlation_matrix"`
	ContributionToRisk  []RiskContribution            `json:"contribution_to_risk"`
	StressTest          *StressResult                 `json:"stress_test"`
}
