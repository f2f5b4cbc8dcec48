package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aresquant/ares/internal/engine"
)

// minCompleteness is the fraction of the aligned window a ticker must cover
// to survive cleaning.
const minCompleteness = 0.80

// Provider implements engine.PriceProvider on top of the Yahoo client with a
// persistent cache-first layer.
type Provider struct {
	client *Client
	cache  *PriceCache
	log    zerolog.Logger
}

// NewProvider creates a new price history provider. cache may be nil, in
// which case every request goes to the upstream API.
func NewProvider(client *Client, cache *PriceCache, log zerolog.Logger) *Provider {
	return &Provider{
		client: client,
		cache:  cache,
		log:    log.With().Str("component", "price_provider").Logger(),
	}
}

// FetchHistory fetches, aligns and cleans daily price history for a set of
// tickers. Tickers with more than 20% missing observations over the aligned
// window are dropped; remaining gaps are forward-filled then back-filled.
// Fails with an engine.DataError when fewer than 2 tickers survive.
func (p *Provider) FetchHistory(ctx context.Context, tickers []string, years int) (*engine.PriceMatrix, error) {
	raw := make(map[string]*Series, len(tickers))
	dropped := make(map[string]string)

	ordered := dedupe(tickers)
	for _, ticker := range ordered {
		series, err := p.fetchSeries(ctx, ticker, years)
		if err != nil {
			p.log.Warn().Str("ticker", ticker).Err(err).Msg("Failed to fetch price history")
			dropped[ticker] = "no data returned"
			continue
		}
		raw[ticker] = series
	}

	if len(raw) == 0 {
		return nil, &engine.DataError{Reason: "price provider returned no data; check ticker symbols"}
	}

	dates := unionDates(raw)
	if len(dates) == 0 {
		return nil, &engine.DataError{Reason: "empty price history"}
	}

	survivors := make([]string, 0, len(ordered))
	prices := make(map[string][]float64, len(raw))
	for _, ticker := range ordered {
		series, ok := raw[ticker]
		if !ok {
			continue
		}
		aligned, completeness := alignSeries(series, dates)
		if completeness < minCompleteness {
			dropped[ticker] = fmt.Sprintf("only %.0f%% of the history window populated", completeness*100)
			p.log.Warn().
				Str("ticker", ticker).
				Float64("completeness", completeness).
				Msg("Dropping ticker below completeness threshold")
			continue
		}
		fillGaps(aligned)
		prices[ticker] = aligned
		survivors = append(survivors, ticker)
	}

	if len(survivors) < 2 {
		return nil, &engine.DataError{Reason: fmt.Sprintf(
			"only %d tickers survived data cleaning; need at least 2 valid tickers for optimization (dropped: %s)",
			len(survivors), describeDropped(dropped))}
	}

	p.log.Info().
		Int("days", len(dates)).
		Int("assets", len(survivors)).
		Int("dropped", len(dropped)).
		Msg("Price history assembled")

	return &engine.PriceMatrix{
		Dates:   dates,
		Tickers: survivors,
		Prices:  prices,
	}, nil
}

// FetchBenchmark returns a single instrument's close series re-indexed onto
// the given dates, with gaps forward- then back-filled.
func (p *Provider) FetchBenchmark(ctx context.Context, ticker string, dates []time.Time) ([]float64, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("no dates to align benchmark %s against", ticker)
	}

	span := dates[len(dates)-1].Sub(dates[0])
	years := int(span.Hours()/(24*365)) + 1

	series, err := p.fetchSeries(ctx, ticker, years)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch benchmark %s: %w", ticker, err)
	}

	aligned, completeness := alignSeries(series, dates)
	if completeness == 0 {
		return nil, fmt.Errorf("benchmark %s has no overlap with the portfolio window", ticker)
	}
	fillGaps(aligned)
	return aligned, nil
}

// fetchSeries resolves one symbol's history, cache first.
func (p *Provider) fetchSeries(ctx context.Context, ticker string, years int) (*Series, error) {
	if p.cache != nil {
		series, err := p.cache.Get(ticker, years)
		if err == nil {
			return series, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			p.log.Warn().Str("ticker", ticker).Err(err).Msg("Price cache read failed")
		}
	}

	series, err := p.client.ChartDaily(ctx, ticker, years)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Put(ticker, years, series); err != nil {
			p.log.Warn().Str("ticker", ticker).Err(err).Msg("Price cache write failed")
		}
	}
	return series, nil
}

// dedupe preserves first-seen order while removing duplicates.
func dedupe(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// unionDates builds the sorted union of all observation dates.
func unionDates(raw map[string]*Series) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, series := range raw {
		for _, d := range series.Dates {
			seen[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// alignSeries re-indexes a series onto the shared date index, marking missing
// observations as NaN, and reports the populated fraction.
func alignSeries(series *Series, dates []time.Time) ([]float64, float64) {
	index := make(map[time.Time]float64, len(series.Dates))
	for i, d := range series.Dates {
		index[d] = series.Closes[i]
	}

	aligned := make([]float64, len(dates))
	populated := 0
	for i, d := range dates {
		if v, ok := index[d]; ok && v > 0 {
			aligned[i] = v
			populated++
		} else {
			aligned[i] = math.NaN()
		}
	}
	return aligned, float64(populated) / float64(len(dates))
}

// fillGaps forward-fills then back-fills NaN gaps in place.
func fillGaps(prices []float64) {
	var lastValid float64
	hasLastValid := false
	for i := 0; i < len(prices); i++ {
		if math.IsNaN(prices[i]) {
			if hasLastValid {
				prices[i] = lastValid
			}
		} else {
			lastValid = prices[i]
			hasLastValid = true
		}
	}

	var nextValid float64
	hasNextValid := false
	for i := len(prices) - 1; i >= 0; i-- {
		if math.IsNaN(prices[i]) {
			if hasNextValid {
				prices[i] = nextValid
			}
		} else {
			nextValid = prices[i]
			hasNextValid = true
		}
	}
}

// describeDropped renders the dropped-ticker map for error messages.
func describeDropped(dropped map[string]string) string {
	if len(dropped) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(dropped))
	for k := range dropped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s (%s)", k, dropped[k])
	}
	return strings.Join(parts, ", ")
}
