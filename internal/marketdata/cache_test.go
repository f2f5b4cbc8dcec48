package marketdata

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aresquant/ares/internal/database"
)

func newTestCache(t *testing.T, ttl time.Duration) *PriceCache {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		Name: "cache-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache, err := NewPriceCache(db.Conn(), ttl, zerolog.Nop())
	require.NoError(t, err)
	return cache
}

func TestPriceCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	series := testSeries(30, 100)

	require.NoError(t, cache.Put("AAA", 5, series))

	got, err := cache.Get("AAA", 5)
	require.NoError(t, err)
	require.Len(t, got.Dates, 30)
	assert.Equal(t, series.Closes, got.Closes)
	assert.True(t, series.Dates[0].Equal(got.Dates[0]))
	assert.True(t, series.Dates[29].Equal(got.Dates[29]))
}

func TestPriceCache_Miss(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	_, err := cache.Get("AAA", 5)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestPriceCache_KeyedByWindow(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	require.NoError(t, cache.Put("AAA", 5, testSeries(30, 100)))

	_, err := cache.Get("AAA", 3)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestPriceCache_Expiry(t *testing.T) {
	cache := newTestCache(t, -time.Hour)
	require.NoError(t, cache.Put("AAA", 5, testSeries(30, 100)))

	_, err := cache.Get("AAA", 5)
	require.ErrorIs(t, err, ErrCacheMiss)

	removed, err := cache.PruneExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestPriceCache_Overwrite(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	require.NoError(t, cache.Put("AAA", 5, testSeries(30, 100)))
	require.NoError(t, cache.Put("AAA", 5, testSeries(10, 200)))

	got, err := cache.Get("AAA", 5)
	require.NoError(t, err)
	require.Len(t, got.Closes, 10)
	assert.Equal(t, 200.0, got.Closes[0])
}
