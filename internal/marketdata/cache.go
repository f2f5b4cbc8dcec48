package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrCacheMiss is returned when no fresh entry exists for a key.
var ErrCacheMiss = errors.New("price cache miss")

// cachedSeries is the msgpack-encoded blob stored per (symbol, years) key.
type cachedSeries struct {
	Timestamps []int64   `msgpack:"ts"`
	Closes     []float64 `msgpack:"closes"`
}

// PriceCache persists daily price series in SQLite with a TTL, so repeated
// requests for the same universe do not hammer the upstream API. Series are
// stored as msgpack blobs keyed by symbol and window length.
type PriceCache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewPriceCache creates the cache and its schema.
func NewPriceCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) (*PriceCache, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS price_history (
		symbol     TEXT    NOT NULL,
		years      INTEGER NOT NULL,
		data       BLOB    NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (symbol, years)
	);
	CREATE INDEX IF NOT EXISTS idx_price_history_expires ON price_history(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create price cache schema: %w", err)
	}
	return &PriceCache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "price_cache").Logger(),
	}, nil
}

// Get returns the cached series for (symbol, years), or ErrCacheMiss when
// absent or expired.
func (c *PriceCache) Get(symbol string, years int) (*Series, error) {
	var blob []byte
	err := c.db.QueryRow(
		"SELECT data FROM price_history WHERE symbol = ? AND years = ? AND expires_at > ?",
		symbol, years, time.Now().Unix(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache for %s: %w", symbol, err)
	}

	var cached cachedSeries
	if err := msgpack.Unmarshal(blob, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached series for %s: %w", symbol, err)
	}

	series := &Series{
		Dates:  make([]time.Time, len(cached.Timestamps)),
		Closes: cached.Closes,
	}
	for i, ts := range cached.Timestamps {
		series.Dates[i] = time.Unix(ts, 0).UTC()
	}
	return series, nil
}

// Put stores a series with expiration = now + ttl.
func (c *PriceCache) Put(symbol string, years int, series *Series) error {
	cached := cachedSeries{
		Timestamps: make([]int64, len(series.Dates)),
		Closes:     series.Closes,
	}
	for i, d := range series.Dates {
		cached.Timestamps[i] = d.Unix()
	}

	blob, err := msgpack.Marshal(&cached)
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", symbol, err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO price_history (symbol, years, data, expires_at) VALUES (?, ?, ?, ?)",
		symbol, years, blob, time.Now().Add(c.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write price cache for %s: %w", symbol, err)
	}
	return nil
}

// PruneExpired deletes expired rows and returns the number removed. Intended
// to run on a schedule.
func (c *PriceCache) PruneExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM price_history WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price cache: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		c.log.Debug().Int64("removed", removed).Msg("Pruned expired price cache rows")
	}
	return removed, nil
}
