package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aresquant/ares/internal/engine"
	"github.com/aresquant/ares/internal/marketdata"
	"github.com/aresquant/ares/internal/universe"
)

// Request limits, mirroring the public API contract.
const (
	minTickers          = 2
	maxTickers          = 30
	minInvestment       = 100
	maxInvestment       = 1_000_000_000
	maxContribution     = 1_000_000
	minHorizonYears     = 1
	maxHorizonYears     = 30
	defaultInvestment   = 100_000
	defaultRiskTol      = 0.5
	defaultHorizonYears = 5
	maxQuoteSymbols     = 20
)

// optimizeRequest is the body of POST /api/portfolio/optimize.
type optimizeRequest struct {
	Tickers             []string `json:"tickers"`
	Investment          float64  `json:"investment"`
	MonthlyContribution float64  `json:"monthly_contribution"`
	RiskTolerance       *float64 `json:"risk_tolerance"`
	TimeHorizonYears    int      `json:"time_horizon_years"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": "1.0.0",
	})
}

// handleOptimize runs the full pipeline and returns the result bundle.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	tickers := normalizeTickers(req.Tickers)
	if len(tickers) < minTickers || len(tickers) > maxTickers {
		s.writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("tickers must contain between %d and %d symbols", minTickers, maxTickers))
		return
	}

	if req.Investment == 0 {
		req.Investment = defaultInvestment
	}
	if req.Investment < minInvestment || req.Investment > maxInvestment {
		s.writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("investment must be between %d and %d", minInvestment, maxInvestment))
		return
	}
	if req.MonthlyContribution < 0 || req.MonthlyContribution > maxContribution {
		s.writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("monthly_contribution must be between 0 and %d", maxContribution))
		return
	}

	riskTolerance := defaultRiskTol
	if req.RiskTolerance != nil {
		riskTolerance = *req.RiskTolerance
	}
	if riskTolerance < 0 || riskTolerance > 1 {
		s.writeError(w, http.StatusUnprocessableEntity, "risk_tolerance must be between 0 and 1")
		return
	}

	if req.TimeHorizonYears == 0 {
		req.TimeHorizonYears = defaultHorizonYears
	}
	if req.TimeHorizonYears < minHorizonYears || req.TimeHorizonYears > maxHorizonYears {
		s.writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("time_horizon_years must be between %d and %d", minHorizonYears, maxHorizonYears))
		return
	}

	bundle, err := s.engine.GeneratePortfolio(r.Context(), engine.Request{
		Tickers:             tickers,
		Investment:          req.Investment,
		RiskTolerance:       riskTolerance,
		TimeHorizonYears:    req.TimeHorizonYears,
		MonthlyContribution: req.MonthlyContribution,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    bundle,
	})
}

// handleFrontier returns efficient frontier points for plotting.
func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	tickers := normalizeTickers(strings.Split(r.URL.Query().Get("tickers"), ","))
	if len(tickers) < minTickers {
		s.writeError(w, http.StatusUnprocessableEntity, "at least 2 tickers required")
		return
	}
	years := queryInt(r, "time_horizon_years", defaultHorizonYears)

	frontier, err := s.engine.Frontier(r.Context(), tickers, years, 50)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"frontier": frontier})
}

// handleBacktest returns the backtest leg of a full pipeline run.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	tickers := normalizeTickers(strings.Split(r.URL.Query().Get("tickers"), ","))
	if len(tickers) < minTickers {
		s.writeError(w, http.StatusUnprocessableEntity, "at least 2 tickers required")
		return
	}

	bundle, err := s.engine.GeneratePortfolio(r.Context(), engine.Request{
		Tickers:             tickers,
		Investment:          queryFloat(r, "investment", defaultInvestment),
		RiskTolerance:       defaultRiskTol,
		TimeHorizonYears:    queryInt(r, "time_horizon_years", defaultHorizonYears),
		MonthlyContribution: queryFloat(r, "monthly_contribution", 0),
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backtest":   bundle.Backtest,
		"investment": bundle.Investment,
	})
}

// handleRiskDetails returns correlation matrix, contribution to risk, stress
// test and VaR.
func (s *Server) handleRiskDetails(w http.ResponseWriter, r *http.Request) {
	tickers := normalizeTickers(strings.Split(r.URL.Query().Get("tickers"), ","))
	if len(tickers) < minTickers {
		s.writeError(w, http.StatusUnprocessableEntity, "at least 2 tickers required")
		return
	}

	bundle, err := s.engine.GeneratePortfolio(r.Context(), engine.Request{
		Tickers:          tickers,
		Investment:       queryFloat(r, "investment", defaultInvestment),
		RiskTolerance:    defaultRiskTol,
		TimeHorizonYears: queryInt(r, "time_horizon_years", defaultHorizonYears),
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"correlation_matrix":   bundle.CorrelationMatrix,
		"contribution_to_risk": bundle.ContributionToRisk,
		"stress_test":          bundle.StressTest,
		"var":                  bundle.VaR,
	})
}

// handleMarketData is a live quote passthrough for up to 20 symbols.
// Symbols that fail to resolve are silently skipped.
func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	symbols := normalizeTickers(strings.Split(r.URL.Query().Get("tickers"), ","))
	if len(symbols) > maxQuoteSymbols {
		symbols = symbols[:maxQuoteSymbols]
	}

	quotes := make([]*marketdata.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.quoter.FetchQuote(r.Context(), symbol)
		if err != nil {
			s.log.Warn().Str("ticker", symbol).Err(err).Msg("Quote fetch failed")
			continue
		}
		quotes = append(quotes, quote)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tickers": quotes})
}

// handleTickerSuggest returns the curated sector-grouped ticker universe.
func (s *Server) handleTickerSuggest(w http.ResponseWriter, r *http.Request) {
	sector := r.URL.Query().Get("sector")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"universe": universe.Suggest(sector),
	})
}

// writeEngineError maps engine error kinds onto HTTP statuses. Data errors
// are client-correctable and keep their message; everything else is logged in
// full and surfaced generically.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var dataErr *engine.DataError
	if errors.As(err, &dataErr) {
		s.log.Warn().Err(err).Msg("Validation error during optimization")
		s.writeError(w, http.StatusUnprocessableEntity, dataErr.Error())
		return
	}

	s.log.Error().Err(err).Msg("Portfolio generation failed")
	s.writeError(w, http.StatusInternalServerError,
		"optimization failed; check ticker symbols and try again")
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// normalizeTickers trims, uppercases and drops empty entries.
func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
