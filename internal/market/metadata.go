// Package market caches per-exchange symbol metadata for the process
// lifetime. The first lookup per exchange loads the full market table;
// everything after is served from memory. There is no eviction; a restart is
// the only invalidation path and callers must tolerate staleness.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"easymarket/internal/gateway/exchange"
	"easymarket/internal/logger"
	"easymarket/internal/pkg/symbol"

	"golang.org/x/sync/singleflight"
)

// ErrMetadataUnavailable wraps metadata load failures and unknown symbols.
var ErrMetadataUnavailable = errors.New("symbol metadata unavailable")

// MetadataCache is an explicitly owned cache object injected into the router
// at construction. Reads are lock-free after the first load per exchange;
// concurrent first loads collapse into a single venue call.
type MetadataCache struct {
	mu      sync.RWMutex
	markets map[string]map[string]exchange.Market
	group   singleflight.Group
}

func NewMetadataCache() *MetadataCache {
	return &MetadataCache{markets: make(map[string]map[string]exchange.Market)}
}

// Get returns metadata for sym on the given exchange, loading the exchange's
// market table on first use. sym may be any parseable form; lookup is by
// canonical pair.
func (c *MetadataCache) Get(ctx context.Context, exchangeID string, client exchange.Client, sym string) (exchange.Market, error) {
	key := symbol.Normalize(sym, false)
	if key == "" {
		return exchange.Market{}, fmt.Errorf("%w: unparseable symbol %q", ErrMetadataUnavailable, sym)
	}

	c.mu.RLock()
	table, ok := c.markets[exchangeID]
	c.mu.RUnlock()
	if ok {
		meta, found := table[key]
		if !found {
			return exchange.Market{}, fmt.Errorf("%w: %s not listed on %s", ErrMetadataUnavailable, key, exchangeID)
		}
		return meta, nil
	}

	loaded, err, _ := c.group.Do(exchangeID, func() (any, error) {
		table, err := client.LoadMarkets(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.markets[exchangeID] = table
		c.mu.Unlock()
		logger.Infof("market: loaded %d symbols for %s", len(table), exchangeID)
		return table, nil
	})
	if err != nil {
		return exchange.Market{}, fmt.Errorf("%w: loading markets for %s: %v", ErrMetadataUnavailable, exchangeID, err)
	}

	meta, found := loaded.(map[string]exchange.Market)[key]
	if !found {
		return exchange.Market{}, fmt.Errorf("%w: %s not listed on %s", ErrMetadataUnavailable, key, exchangeID)
	}
	return meta, nil
}

// Loaded reports whether metadata for an exchange is already cached.
func (c *MetadataCache) Loaded(exchangeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.markets[exchangeID]
	return ok
}
