package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggest_All(t *testing.T) {
	out := Suggest("")
	require.Len(t, out, 7)
	for sector, symbols := range out {
		assert.NotEmpty(t, symbols, "sector %s should have symbols", sector)
	}
	assert.Contains(t, out["Technology"], "AAPL")
	assert.Contains(t, out["ETFs"], "SPY")
}

func TestSuggest_SectorFilter(t *testing.T) {
	out := Suggest("technology")
	require.Len(t, out, 1)
	assert.Contains(t, out["Technology"], "NVDA")
}

func TestSuggest_UnknownSector(t *testing.T) {
	assert.Empty(t, Suggest("crypto"))
}

func TestSuggest_CopiesSlices(t *testing.T) {
	first := Suggest("finance")
	first["Finance"][0] = "MUTATED"

	second := Suggest("finance")
	assert.NotEqual(t, "MUTATED", second["Finance"][0])
}
