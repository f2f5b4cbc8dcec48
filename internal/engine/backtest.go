package engine

import (
	"fmt"
	"math"
	"time"
)

// RunBacktest replays the optimized weights against the historical price
// matrix, one trading day at a time, against a benchmark series aligned to
// the same dates.
//
// Without a contribution the portfolio compounds as V(t) = V(t-1)*(1+w'r_t)
// with V(0) = investment. With a monthly contribution c > 0, c is added to
// the portfolio value before the day's return on the first trading day of
// each new calendar month (the very first day of the series never
// contributes). The benchmark leg compounds the plain investment and never
// receives contributions.
func RunBacktest(
	prices *PriceMatrix,
	weights map[string]float64,
	benchmark []float64,
	investment float64,
	monthlyContribution float64,
) (*BacktestResult, error) {
	if prices.Len() < 2 {
		return nil, &DataError{Reason: "price history too short for a backtest"}
	}
	if len(benchmark) != prices.Len() {
		return nil, fmt.Errorf("benchmark series length %d does not match price history length %d",
			len(benchmark), prices.Len())
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

	returns := prices.DailyReturns()
	benchReturns := dailyReturns(benchmark)
	days := prices.Len() - 1

	dates := make([]string, days)
	values := make([]float64, days)
	benchValues := make([]float64, days)
	drawdowns := make([]float64, days)

	value := investment
	benchValue := investment
	peak := investment
	benchPeak := investment
	maxDrawdown := 0.0
	benchMaxDrawdown := 0.0

	for t := 0; t < days; t++ {
		date := prices.Dates[t+1]
		prev := prices.Dates[t]

		if monthlyContribution > 0 && newCalendarMonth(prev, date) {
			value += monthlyContribution
		}

		var dayReturn float64
		for _, ticker := range held {
			dayReturn += weights[ticker] * returns[ticker][t]
		}
		value *= 1 + dayReturn
		benchValue *= 1 + benchReturns[t]

		if value > peak {
			peak = value
		}
		dd := 0.0
		if peak > 0 {
			dd = (value - peak) / peak
		}
		if dd < maxDrawdown {
			maxDrawdown = dd
		}

		if benchValue > benchPeak {
			benchPeak = benchValue
		}
		if benchPeak > 0 {
			if bdd := (benchValue - benchPeak) / benchPeak; bdd < benchMaxDrawdown {
				benchMaxDrawdown = bdd
			}
		}

		dates[t] = date.Format("2006-01-02")
		values[t] = round2(value)
		benchValues[t] = round2(benchValue)
		drawdowns[t] = round6(dd)
	}

	months := distinctMonths(prices.Dates)
	totalInvested := investment
	if monthlyContribution > 0 && months > 1 {
		totalInvested += monthlyContribution * float64(months-1)
	}

	years := float64(days) / float64(DefaultTradingDays)

	return &BacktestResult{
		Dates:                 dates,
		PortfolioValues:       values,
		BenchmarkValues:       benchValues,
		Drawdowns:             drawdowns,
		PortfolioTotalReturn:  round6(totalReturn(value, totalInvested)),
		BenchmarkTotalReturn:  round6(totalReturn(benchValue, investment)),
		PortfolioCAGR:         round6(cagr(value, totalInvested, years)),
		BenchmarkCAGR:         round6(cagr(benchValue, investment, years)),
		TotalInvested:         round2(totalInvested),
		PortfolioMaxDrawdown:  round6(maxDrawdown),
		BenchmarkMaxDrawdown:  round6(benchMaxDrawdown),
		MonthsElapsed:         months,
	}, nil
}

// newCalendarMonth reports whether date falls in a different calendar month
// than prev.
func newCalendarMonth(prev, date time.Time) bool {
	return prev.Year() != date.Year() || prev.Month() != date.Month()
}

// distinctMonths counts distinct calendar months spanned by the date series.
func distinctMonths(dates []time.Time) int {
	seen := make(map[int]struct{}, len(dates)/20+1)
	for _, d := range dates {
		seen[d.Year()*100+int(d.Month())] = struct{}{}
	}
	return len(seen)
}

// totalReturn computes final/invested - 1, guarded against zero investment.
func totalReturn(final, invested float64) float64 {
	if invested <= 0 {
		return 0
	}
	return final/invested - 1
}

// cagr computes the compound annual growth rate, defined as 0 when the
// invested amount or the elapsed time is not positive.
func cagr(final, invested, years float64) float64 {
	if invested <= 0 || years <= 0 || final <= 0 {
		return 0
	}
	return math.Pow(final/invested, 1/years) - 1
}
