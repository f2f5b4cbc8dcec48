// Package engine implements the quantitative core of the Ares portfolio
// service: parameter estimation, constrained mean-variance optimization,
// efficient-frontier tracing, parametric VaR, historical backtesting and risk
// decomposition. The engine is a pure function of its inputs; no stage
// retains state between invocations and every stage produces a fresh value
// consumed read-only by the next.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MinHistoryYears is the floor on the price history window. Covariance
// estimation needs a minimum sample regardless of the requested horizon.
const MinHistoryYears = 3

// PriceProvider supplies aligned daily price history. FetchHistory must
// return a cleaned matrix (tickers with >20% missing observations dropped,
// gaps forward- then back-filled) and fail with a DataError when fewer than
// 2 tickers survive. FetchBenchmark returns a single instrument's series
// aligned to the given dates.
type PriceProvider interface {
	FetchHistory(ctx context.Context, tickers []string, years int) (*PriceMatrix, error)
	FetchBenchmark(ctx context.Context, ticker string, dates []time.Time) ([]float64, error)
}

// Config holds the engine's tunable parameters.
type Config struct {
	RiskFreeRate    float64
	TradingDays     int
	BenchmarkTicker string
	FrontierPoints  int
	Confidence      float64
	Gamma           float64
}

// Request is one portfolio generation request.
type Request struct {
	Tickers             []string
	Investment          float64
	RiskTolerance       float64
	TimeHorizonYears    int
	MonthlyContribution float64
}

// Engine sequences the quantitative pipeline into one result bundle per
// request.
type Engine struct {
	provider PriceProvider
	opt      *Optimizer
	cfg      Config
	log      zerolog.Logger
}

// New creates a new engine.
func New(provider PriceProvider, cfg Config, log zerolog.Logger) *Engine {
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = DefaultRiskFreeRate
	}
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = DefaultTradingDays
	}
	if cfg.BenchmarkTicker == "" {
		cfg.BenchmarkTicker = "SPY"
	}
	if cfg.FrontierPoints <= 0 {
		cfg.FrontierPoints = DefaultFrontierPoints
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = DefaultConfidence
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = DefaultGamma
	}
	engineLog := log.With().Str("component", "engine").Logger()
	return &Engine{
		provider: provider,
		opt:      NewOptimizer(engineLog),
		cfg:      cfg,
		log:      engineLog,
	}
}

// GeneratePortfolio runs the full pipeline: fetch prices, estimate
// parameters, optimize, trace the frontier, compute VaR, backtest against
// the benchmark and decompose risk. It either returns a complete bundle or
// an error; no partial bundle is ever produced.
func (e *Engine) GeneratePortfolio(ctx context.Context, req Request) (*Bundle, error) {
	runID := uuid.New().String()
	log := e.log.With().Str("run_id", runID).Logger()

	years := req.TimeHorizonYears
	if years < MinHistoryYears {
		years = MinHistoryYears
	}

	log.Info().
		Strs("tickers", req.Tickers).
		Float64("investment", req.Investment).
		Float64("risk_tolerance", req.RiskTolerance).
		Int("history_years", years).
		Msg("Generating portfolio")

	prices, err := e.provider.FetchHistory(ctx, req.Tickers, years)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("days", prices.Len()).Int("assets", len(prices.Tickers)).Msg("Price history fetched")

	est, err := EstimateParameters(prices, e.cfg.TradingDays)
	if err != nil {
		return nil, err
	}
	log.Debug().Float64("shrinkage", est.Shrinkage).Msg("Parameters estimated")

	opt, err := e.opt.MaxSharpe(est, OptimizeOptions{
		RiskFreeRate: e.cfg.RiskFreeRate,
		Gamma:        e.cfg.Gamma,
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("strategy", opt.Strategy).
		Float64("expected_return", opt.ExpectedReturn).
		Float64("volatility", opt.Volatility).
		Float64("sharpe", opt.SharpeRatio).
		Msg("Portfolio optimized")

	frontier := e.opt.ComputeEfficientFrontier(est, e.cfg.FrontierPoints)

	varResult := ComputeVaR(opt.ExpectedReturn, opt.Volatility, e.cfg.Confidence, req.Investment)

	benchmark, err := e.provider.FetchBenchmark(ctx, e.cfg.BenchmarkTicker, prices.Dates)
	if err != nil {
		return nil, err
	}

	backtest, err := RunBacktest(prices, opt.Weights, benchmark, req.Investment, req.MonthlyContribution)
	if err != nil {
		return nil, err
	}

	correlation := ComputeCorrelationMatrix(prices)

	contribution, err := ComputeContributionToRisk(prices, opt.Weights, e.cfg.TradingDays)
	if err != nil {
		return nil, err
	}

	stress := StressTest(opt.Weights, req.Investment, DefaultCrashPct)

	validTickers := make([]string, len(prices.Tickers))
	copy(validTickers, prices.Tickers)

	return &Bundle{
		ValidTickers:        validTickers,
		Optimization:        opt,
		EfficientFrontier:   frontier,
		VaR:                 &varResult,
		Backtest:            backtest,
		Investment:          req.Investment,
		RiskTolerance:       req.RiskTolerance,
		MonthlyContribution: req.MonthlyContribution,
		CorrelationMatrix:   correlation,
		ContributionToRisk:  contribution,
		StressTest:          &stress,
	}, nil
}

// Frontier fetches history for the given tickers and traces an efficient
// frontier with the requested number of points. Used by the standalone
// frontier endpoint.
func (e *Engine) Frontier(ctx context.Context, tickers []string, horizonYears, nPoints int) ([]FrontierPoint, error) {
	years := horizonYears
	if years < MinHistoryYears {
		years = MinHistoryYears
	}

	prices, err := e.provider.FetchHistory(ctx, tickers, years)
	if err != nil {
		return nil, err
	}
	est, err := EstimateParameters(prices, e.cfg.TradingDays)
	if err != nil {
		return nil, err
	}
	return e.opt.ComputeEfficientFrontier(est, nPoints), nil
}
