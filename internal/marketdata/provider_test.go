package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aresquant/ares/internal/engine"
)

func newTestProvider(t *testing.T, stub *chartStub) *Provider {
	t.Helper()
	return NewProvider(newTestClient(t, stub), nil, zerolog.Nop())
}

func TestFetchHistory(t *testing.T) {
	stub := &chartStub{series: map[string]*Series{
		"AAA": testSeries(100, 100),
		"BBB": testSeries(100, 50),
	}}
	provider := newTestProvider(t, stub)

	matrix, err := provider.FetchHistory(context.Background(), []string{"AAA", "BBB"}, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, matrix.Tickers)
	assert.Equal(t, 100, matrix.Len())
	require.Len(t, matrix.Prices["AAA"], 100)
	require.Len(t, matrix.Prices["BBB"], 100)
}

func TestFetchHistory_DropsSparseTickers(t *testing.T) {
	// CCC covers only 40% of the window and must be dropped.
	stub := &chartStub{series: map[string]*Series{
		"AAA": testSeries(100, 100),
		"BBB": testSeries(100, 50),
		"CCC": testSeries(40, 200),
	}}
	provider := newTestProvider(t, stub)

	matrix, err := provider.FetchHistory(context.Background(), []string{"AAA", "BBB", "CCC"}, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, matrix.Tickers)
	_, hasCCC := matrix.Prices["CCC"]
	assert.False(t, hasCCC)
}

func TestFetchHistory_TooFewSurvivors(t *testing.T) {
	stub := &chartStub{series: map[string]*Series{
		"AAA": testSeries(100, 100),
	}}
	provider := newTestProvider(t, stub)

	_, err := provider.FetchHistory(context.Background(), []string{"AAA", "NOPE"}, 1)
	var dataErr *engine.DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Contains(t, dataErr.Error(), "at least 2 valid tickers")
	assert.Contains(t, dataErr.Error(), "NOPE")
}

func TestFetchHistory_NoData(t *testing.T) {
	provider := newTestProvider(t, &chartStub{series: map[string]*Series{}})

	_, err := provider.FetchHistory(context.Background(), []string{"NOPE", "ALSO"}, 1)
	var dataErr *engine.DataError
	require.ErrorAs(t, err, &dataErr)
}

func TestFetchHistory_DeduplicatesTickers(t *testing.T) {
	stub := &chartStub{series: map[string]*Series{
		"AAA": testSeries(100, 100),
		"BBB": testSeries(100, 50),
	}}
	provider := newTestProvider(t, stub)

	matrix, err := provider.FetchHistory(context.Background(), []string{"AAA", "BBB", "AAA"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, matrix.Tickers)
}

func TestFetchBenchmark(t *testing.T) {
	bench := testSeries(100, 400)
	stub := &chartStub{series: map[string]*Series{"SPY": bench}}
	provider := newTestProvider(t, stub)

	aligned, err := provider.FetchBenchmark(context.Background(), "SPY", bench.Dates)
	require.NoError(t, err)
	require.Len(t, aligned, 100)
	assert.Equal(t, bench.Closes[0], aligned[0])
	assert.Equal(t, bench.Closes[99], aligned[99])
}

func TestFetchBenchmark_NoOverlap(t *testing.T) {
	stub := &chartStub{series: map[string]*Series{"SPY": testSeries(100, 400)}}
	provider := newTestProvider(t, stub)

	far := []time.Time{
		time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(1990, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	_, err := provider.FetchBenchmark(context.Background(), "SPY", far)
	require.Error(t, err)
}

func TestFillGaps(t *testing.T) {
	t.Run("interior gaps forward fill", func(t *testing.T) {
		prices := []float64{100, math.NaN(), math.NaN(), 104}
		fillGaps(prices)
		assert.Equal(t, []float64{100, 100, 100, 104}, prices)
	})

	t.Run("leading gaps back fill", func(t *testing.T) {
		prices := []float64{math.NaN(), math.NaN(), 102, 104}
		fillGaps(prices)
		assert.Equal(t, []float64{102, 102, 102, 104}, prices)
	})

	t.Run("trailing gaps forward fill", func(t *testing.T) {
		prices := []float64{100, 101, math.NaN()}
		fillGaps(prices)
		assert.Equal(t, []float64{100, 101, 101}, prices)
	})
}

func TestAlignSeries(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2), base.AddDate(0, 0, 3)}

	series := &Series{
		Dates:  []time.Time{dates[0], dates[2]},
		Closes: []float64{100, 102},
	}

	aligned, completeness := alignSeries(series, dates)
	require.Len(t, aligned, 4)
	assert.Equal(t, 100.0, aligned[0])
	assert.True(t, math.IsNaN(aligned[1]))
	assert.Equal(t, 102.0, aligned[2])
	assert.True(t, math.IsNaN(aligned[3]))
	assert.Equal(t, 0.5, completeness)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, dedupe([]string{"AAA", "BBB", "AAA", "CCC", "BBB"}))
}
