package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// CachedStore is a Redis read-through wrapper around another Store.
// Series are cached as JSON under lp:<ticker>:<start>:<end> with a TTL.
// Cache failures degrade to the inner store, never to a load error.
type CachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps inner with a Redis cache.
func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(ticker string, start, end time.Time) string {
	return fmt.Sprintf("lp:%s:%s:%s", ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// LoadLogPrices implements Store.
func (c *CachedStore) LoadLogPrices(ctx context.Context, ticker string, start, end time.Time) (PriceSeries, error) {
	key := cacheKey(ticker, start, end)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var series PriceSeries
		if err := json.Unmarshal(raw, &series); err == nil {
			log.Debug().Str("ticker", ticker).Str("key", key).Msg("price cache hit")
			return series, nil
		}
		// Corrupt entry: fall through and overwrite below.
		log.Warn().Str("key", key).Msg("discarding corrupt price cache entry")
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("price cache unavailable")
	}

	series, err := c.inner.LoadLogPrices(ctx, ticker, start, end)
	if err != nil {
		return PriceSeries{}, err
	}

	if raw, err := json.Marshal(series); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
		}
	}
	return series, nil
}
