package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider serves a fixed price matrix without touching the network.
type stubProvider struct {
	prices     *PriceMatrix
	historyErr error
}

func (s *stubProvider) FetchHistory(ctx context.Context, tickers []string, years int) (*PriceMatrix, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.prices, nil
}

func (s *stubProvider) FetchBenchmark(ctx context.Context, ticker string, dates []time.Time) ([]float64, error) {
	out := make([]float64, len(dates))
	copy(out, s.prices.Prices[s.prices.Tickers[0]])
	return out, nil
}

func TestGeneratePortfolio(t *testing.T) {
	prices := twoAssetPrices(500)
	eng := New(&stubProvider{prices: prices}, Config{}, zerolog.Nop())

	bundle, err := eng.GeneratePortfolio(context.Background(), Request{
		Tickers:             []string{"AAA", "BBB"},
		Investment:          100_000,
		RiskTolerance:       0.5,
		TimeHorizonYears:    5,
		MonthlyContribution: 500,
	})
	require.NoError(t, err)
	require.NotNil(t, bundle)

	assert.Equal(t, []string{"AAA", "BBB"}, bundle.ValidTickers)
	assert.Equal(t, 100_000.0, bundle.Investment)
	assert.Equal(t, 0.5, bundle.RiskTolerance)
	assert.Equal(t, 500.0, bundle.MonthlyContribution)

	require.NotNil(t, bundle.Optimization)
	sum := 0.0
	for _, w := range bundle.Optimization.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
	assert.Contains(t, []string{"Conservative", "Balanced", "Aggressive"}, bundle.Optimization.Strategy)

	assert.NotEmpty(t, bundle.EfficientFrontier)

	require.NotNil(t, bundle.VaR)
	assert.Greater(t, bundle.VaR.AnnualVaR, 0.0)
	assert.Equal(t, DefaultConfidence, bundle.VaR.Confidence)

	require.NotNil(t, bundle.Backtest)
	assert.Len(t, bundle.Backtest.PortfolioValues, prices.Len()-1)
	assert.Greater(t, bundle.Backtest.TotalInvested, 100_000.0)

	require.Len(t, bundle.CorrelationMatrix, 2)
	assert.Equal(t, 1.0, bundle.CorrelationMatrix["AAA"]["AAA"])

	require.NotEmpty(t, bundle.ContributionToRisk)
	contribSum := 0.0
	for _, c := range bundle.ContributionToRisk {
		contribSum += c.Pct
	}
	assert.InDelta(t, 100, contribSum, 0.1)

	require.NotNil(t, bundle.StressTest)
	assert.Equal(t, -20.0, bundle.StressTest.PortfolioReturnCrash)
}

func TestGeneratePortfolio_Deterministic(t *testing.T) {
	prices := twoAssetPrices(500)
	eng := New(&stubProvider{prices: prices}, Config{}, zerolog.Nop())
	req := Request{
		Tickers:          []string{"AAA", "BBB"},
		Investment:       100_000,
		TimeHorizonYears: 5,
	}

	first, err := eng.GeneratePortfolio(context.Background(), req)
	require.NoError(t, err)
	second, err := eng.GeneratePortfolio(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Optimization.Weights, second.Optimization.Weights)
	assert.Equal(t, first.VaR, second.VaR)
	assert.Equal(t, first.Backtest.PortfolioValues, second.Backtest.PortfolioValues)
}

func TestGeneratePortfolio_DataErrorPassthrough(t *testing.T) {
	wantErr := &DataError{Reason: "only 1 tickers survived data cleaning"}
	eng := New(&stubProvider{historyErr: wantErr}, Config{}, zerolog.Nop())

	_, err := eng.GeneratePortfolio(context.Background(), Request{
		Tickers:          []string{"AAA", "BBB"},
		Investment:       100_000,
		TimeHorizonYears: 5,
	})
	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, wantErr.Reason, dataErr.Reason)
}

func TestFrontierConvenience(t *testing.T) {
	prices := twoAssetPrices(500)
	eng := New(&stubProvider{prices: prices}, Config{}, zerolog.Nop())

	frontier, err := eng.Frontier(context.Background(), []string{"AAA", "BBB"}, 5, 15)
	require.NoError(t, err)
	assert.NotEmpty(t, frontier)
}
