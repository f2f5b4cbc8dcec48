package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ARES_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 0.05, cfg.RiskFreeRate)
	assert.Equal(t, 252, cfg.TradingDays)
	assert.Equal(t, 5, cfg.HistoryYears)
	assert.Equal(t, "SPY", cfg.BenchmarkTicker)
	assert.Equal(t, 30, cfg.FrontierPoints)
	assert.Equal(t, 0.95, cfg.Confidence)
	assert.Equal(t, 24, cfg.CacheTTLHours)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ARES_DATA_DIR", t.TempDir())
	t.Setenv("ARES_PORT", "9100")
	t.Setenv("RISK_FREE_RATE", "0.03")
	t.Setenv("BENCHMARK_TICKER", "QQQ")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 0.03, cfg.RiskFreeRate)
	assert.Equal(t, "QQQ", cfg.BenchmarkTicker)
	assert.True(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	t.Run("bad trading days", func(t *testing.T) {
		cfg := &Config{TradingDays: 0, Confidence: 0.95, BenchmarkTicker: "SPY"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad confidence", func(t *testing.T) {
		cfg := &Config{TradingDays: 252, Confidence: 1.5, BenchmarkTicker: "SPY"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing benchmark", func(t *testing.T) {
		cfg := &Config{TradingDays: 252, Confidence: 0.95}
		assert.Error(t, cfg.Validate())
	})
}
