// Package marketdata implements the price history provider: a Yahoo Finance
// chart-API client, a persistent price cache, and the cleaning/alignment
// pipeline that turns raw per-symbol series into the aligned matrix the
// engine consumes.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches daily price history and quotes from the Yahoo Finance
// chart API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		log:        log.With().Str("component", "yahoo").Logger(),
	}
}

// chartResponse mirrors the subset of the v8 chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol              string  `json:"symbol"`
				ShortName           string  `json:"shortName"`
				LongName            string  `json:"longName"`
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume int64   `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Adjclose []struct {
					Adjclose []float64 `json:"adjclose"`
				} `json:"adjclose"`
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Series is one symbol's raw daily price history.
type Series struct {
	Dates  []time.Time
	Closes []float64
}

// ChartDaily fetches up to `years` years of daily adjusted-close history for
// a symbol. Days where Yahoo reports no close are dropped from the series.
func (c *Client) ChartDaily(ctx context.Context, symbol string, years int) (*Series, error) {
	q := url.Values{}
	q.Set("range", fmt.Sprintf("%dy", years))
	q.Set("interval", "1d")
	q.Set("events", "div,split")

	resp, err := c.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	closes := c.pickCloses(result.Indicators.Adjclose, result.Indicators.Quote)
	if len(closes) == 0 || len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("no price data returned for %s", symbol)
	}

	series := &Series{}
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		series.Dates = append(series.Dates, day)
		series.Closes = append(series.Closes, closes[i])
	}
	if len(series.Dates) == 0 {
		return nil, fmt.Errorf("no valid price observations for %s", symbol)
	}
	return series, nil
}

// Quote is a live market snapshot for one symbol.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Volume    int64     `json:"volume"`
	Sparkline []float64 `json:"sparkline"`
}

// FetchQuote returns the latest price, day-over-day change and a short
// sparkline for a symbol, using a 7-day daily chart.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	q := url.Values{}
	q.Set("range", "7d")
	q.Set("interval", "1d")

	resp, err := c.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	closes := c.pickCloses(result.Indicators.Adjclose, result.Indicators.Quote)

	var spark []float64
	for _, v := range closes {
		if v > 0 {
			spark = append(spark, round2(v))
		}
	}

	price := result.Meta.RegularMarketPrice
	if price == 0 && len(spark) > 0 {
		price = spark[len(spark)-1]
	}
	prev := result.Meta.ChartPreviousClose
	if len(spark) >= 2 {
		prev = spark[len(spark)-2]
	}
	changePct := 0.0
	if prev > 0 {
		changePct = (price - prev) / prev * 100
	}

	name := result.Meta.LongName
	if name == "" {
		name = result.Meta.ShortName
	}
	if name == "" {
		name = symbol
	}

	if len(spark) > 20 {
		spark = spark[len(spark)-20:]
	}

	return &Quote{
		Ticker:    symbol,
		Name:      name,
		Price:     round2(price),
		ChangePct: round2(changePct),
		Volume:    result.Meta.RegularMarketVolume,
		Sparkline: spark,
	}, nil
}

// chart issues one chart-API request and validates the envelope.
func (c *Client) chart(ctx context.Context, symbol string, q url.Values) (*chartResponse, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request for %s: %w", symbol, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ares/1.0)")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request for %s failed: %w", symbol, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request for %s returned status %d", symbol, httpResp.StatusCode)
	}

	var resp chartResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode chart response for %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart API returned no result for %s", symbol)
	}
	return &resp, nil
}

// pickCloses prefers adjusted closes and falls back to raw closes.
func (c *Client) pickCloses(
	adj []struct {
		Adjclose []float64 `json:"adjclose"`
	},
	quote []struct {
		Close []float64 `json:"close"`
	},
) []float64 {
	if len(adj) > 0 && len(adj[0].Adjclose) > 0 {
		return adj[0].Adjclose
	}
	if len(quote) > 0 {
		return quote[0].Close
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
