// Package cache memoizes query results keyed by source identity and plan
// fingerprint. Sources are immutable and fingerprints cover the full plan,
// so a hit is always safe to return without re-evaluation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/tabular"
)

// ResultCache is a bounded LRU of materialized query results.
type ResultCache struct {
	entries *lru.Cache[string, tabular.Result]
	logger  zerolog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	bypassed atomic.Int64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits     int64
	Misses   int64
	Bypassed int64
	Len      int
}

// New creates a result cache holding at most capacity entries.
func New(capacity int, logger zerolog.Logger) (*ResultCache, error) {
	entries, err := lru.New[string, tabular.Result](capacity)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache{
		entries: entries,
		logger:  logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Execute runs a query through the cache. Cached results are returned as-is;
// misses are evaluated and stored. Queries carrying anonymous callbacks have
// no fingerprint and bypass the cache entirely.
//
// The second return reports whether the result came from the cache.
func (c *ResultCache) Execute(ctx context.Context, q *tabular.Query) (tabular.Result, bool, error) {
	fp, err := q.Fingerprint()
	if errors.Is(err, tabular.ErrNotFingerprintable) {
		c.bypassed.Add(1)
		c.logger.Debug().Msg("query not fingerprintable, bypassing cache")
		res, err := q.Execute(ctx)
		return res, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint query: %w", err)
	}

	key := q.Source().ID() + "\x00" + fp
	if res, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		c.logger.Debug().Str("fingerprint", fp).Msg("cache hit")
		return res, true, nil
	}

	res, err := q.Execute(ctx)
	if err != nil {
		return nil, false, err
	}
	c.misses.Add(1)
	c.entries.Add(key, res)
	c.logger.Debug().Str("fingerprint", fp).Msg("cache miss, stored result")
	return res, false, nil
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Bypassed: c.bypassed.Load(),
		Len:      c.entries.Len(),
	}
}

// Purge drops every cached result.
func (c *ResultCache) Purge() {
	c.entries.Purge()
}
