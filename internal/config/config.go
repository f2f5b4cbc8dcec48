// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the price cache database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Engine parameters
	RiskFreeRate    float64 // Annualized risk-free rate used in Sharpe ratio and VaR
	TradingDays     int     // Trading days per year used for annualization
	HistoryYears    int     // Default price history window in years
	BenchmarkTicker string  // Benchmark instrument for backtests
	FrontierPoints  int     // Default number of efficient frontier points
	Confidence      float64 // Default VaR confidence level

	// Market data
	CacheTTLHours int // Price cache time-to-live in hours
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ARES_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("ARES_PORT", 8000),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RiskFreeRate:    getEnvAsFloat("RISK_FREE_RATE", 0.05),
		TradingDays:     getEnvAsInt("TRADING_DAYS", 252),
		HistoryYears:    getEnvAsInt("HISTORY_YEARS", 5),
		BenchmarkTicker: getEnv("BENCHMARK_TICKER", "SPY"),
		FrontierPoints:  getEnvAsInt("FRONTIER_POINTS", 30),
		Confidence:      getEnvAsFloat("VAR_CONFIDENCE", 0.95),

		CacheTTLHours: getEnvAsInt("PRICE_CACHE_TTL_HOURS", 24),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.TradingDays <= 0 {
		return fmt.Errorf("TRADING_DAYS must be positive, got %d", c.TradingDays)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("VAR_CONFIDENCE must be in (0, 1), got %f", c.Confidence)
	}
	if c.BenchmarkTicker == "" {
		return fmt.Errorf("BENCHMARK_TICKER must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
