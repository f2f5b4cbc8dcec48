// Package universe provides the static, sector-grouped ticker directory used
// by the ticker suggestion endpoint.
package universe

import "strings"

// sectors maps sector names to a curated list of liquid symbols.
var sectors = map[string][]string{
	"Technology":  {"AAPL", "MSFT", "GOOGL", "NVDA", "META", "AMD", "AVGO", "TSM"},
	"Finance":     {"JPM", "BAC", "GS", "V", "MA", "BLK", "MS", "WFC"},
	"Healthcare":  {"JNJ", "UNH", "PFE", "MRK", "ABBV", "LLY", "TMO", "ABT"},
	"Energy":      {"XOM", "CVX", "COP", "SLB", "EOG", "MPC", "PSX", "VLO"},
	"Consumer":    {"AMZN", "TSLA", "HD", "MCD", "NKE", "SBUX", "TGT", "COST"},
	"Industrials": {"BA", "CAT", "GE", "MMM", "HON", "UPS", "LMT", "RTX"},
	"ETFs":        {"SPY", "QQQ", "VTI", "GLD", "TLT", "VNQ", "IWM", "EFA"},
}

// Suggest returns the ticker universe, optionally filtered by sector name
// (case-insensitive). An unknown sector yields an empty map.
func Suggest(sector string) map[string][]string {
	out := make(map[string][]string)
	for name, symbols := range sectors {
		if sector != "" && !strings.EqualFold(name, sector) {
			continue
		}
		copied := make([]string, len(symbols))
		copy(copied, symbols)
		out[name] = copied
	}
	return out
}
