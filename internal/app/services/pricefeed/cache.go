// Package pricefeed wraps the external USD price feed behind a cache that
// enforces sanity bounds and staleness. A momentarily misbehaving feed does
// not halt settlement as long as the cached value is still fresh; staleness is
// enforced where the price is used, not where it is fetched.
package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/pricefeed"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/metrics"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

// RoundFeed is the external price feed: a read-only latest-round query.
type RoundFeed interface {
	LatestRoundData(ctx context.Context) (pricefeed.RoundData, error)
}

// RoundFeedFunc adapts a function to the RoundFeed interface.
type RoundFeedFunc func(ctx context.Context) (pricefeed.RoundData, error)

func (f RoundFeedFunc) LatestRoundData(ctx context.Context) (pricefeed.RoundData, error) {
	return f(ctx)
}

// Clock supplies the cache's notion of now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// CacheConfig bounds what the cache will accept from the feed.
type CacheConfig struct {
	MinPrice  int64         // inclusive lower sanity bound, 8 decimals
	MaxPrice  int64         // inclusive upper sanity bound, 8 decimals
	Staleness time.Duration // max age of feed data and of the cached value
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.MinPrice <= 0 {
		c.MinPrice = 1 * 1e8 // $1
	}
	if c.MaxPrice <= 0 {
		c.MaxPrice = 1_000_000 * 1e8 // $1M
	}
	if c.Staleness <= 0 {
		c.Staleness = time.Hour
	}
	return c
}

// Cache holds the last known-good price.
type Cache struct {
	feed  RoundFeed
	cfg   CacheConfig
	clock Clock
	log   *logger.Logger

	mu    sync.Mutex
	quote *pricefeed.Quote
}

// CacheOption customises cache construction.
type CacheOption func(*Cache)

// WithClock overrides the cache clock (tests).
func WithClock(clock Clock) CacheOption {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCache constructs an empty cache over the given feed.
func NewCache(feed RoundFeed, cfg CacheConfig, log *logger.Logger, opts ...CacheOption) *Cache {
	if log == nil {
		log = logger.NewDefault("pricefeed")
	}
	c := &Cache{
		feed:  feed,
		cfg:   cfg.withDefaults(),
		clock: systemClock{},
		log:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh reads the feed and, when the data passes validation, overwrites the
// cached value. A failed or invalid read leaves the cache untouched and is
// only logged; callers of Cached decide whether the stale value is still
// usable.
func (c *Cache) Refresh(ctx context.Context) {
	rd, err := c.feed.LatestRoundData(ctx)
	if err != nil {
		c.log.WithError(err).Warn("price feed read failed; keeping cached value")
		metrics.RecordPriceRefresh("feed_error")
		return
	}

	now := c.clock.Now()
	if outcome := c.validate(rd, now); outcome != "" {
		c.log.WithField("price_scaled", rd.Price).
			WithField("feed_updated_at", rd.UpdatedAt).
			Warnf("price feed data rejected (%s); keeping cached value", outcome)
		metrics.RecordPriceRefresh(outcome)
		return
	}

	c.mu.Lock()
	c.quote = &pricefeed.Quote{PriceScaled: rd.Price, UpdatedAt: now}
	c.mu.Unlock()

	c.log.WithField("price_scaled", rd.Price).Debug("price cache refreshed")
	metrics.RecordPriceRefresh("ok")
}

// validate returns an empty string for acceptable round data, otherwise the
// rejection reason.
func (c *Cache) validate(rd pricefeed.RoundData, now time.Time) string {
	if rd.Price <= 0 {
		return "invalid_price"
	}
	if rd.Price < c.cfg.MinPrice || rd.Price > c.cfg.MaxPrice {
		return "out_of_bounds"
	}
	if rd.UpdatedAt.IsZero() || now.Sub(rd.UpdatedAt) > c.cfg.Staleness {
		return "stale_feed"
	}
	return ""
}

// Cached returns the cached quote. It fails with ErrPriceFeedStale when the
// cached value has aged past the staleness threshold. When the cache has
// never been populated it makes one direct fallback read; a non-positive or
// out-of-bounds fallback fails with ErrInvalidEthPrice, a stale one with
// ErrPriceFeedStale, and a valid one populates the cache.
func (c *Cache) Cached(ctx context.Context) (pricefeed.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.quote == nil {
		rd, err := c.feed.LatestRoundData(ctx)
		if err != nil || rd.Price <= 0 {
			return pricefeed.Quote{}, settlement.ErrInvalidEthPrice
		}
		switch c.validate(rd, now) {
		case "":
		case "stale_feed":
			return pricefeed.Quote{}, settlement.ErrPriceFeedStale
		default:
			return pricefeed.Quote{}, settlement.ErrInvalidEthPrice
		}
		c.quote = &pricefeed.Quote{PriceScaled: rd.Price, UpdatedAt: now}
		return *c.quote, nil
	}

	if now.Sub(c.quote.UpdatedAt) > c.cfg.Staleness {
		return pricefeed.Quote{}, settlement.ErrPriceFeedStale
	}
	return *c.quote, nil
}
