package geobase

import (
	"context"
	"strconv"

	"github.com/patrickmn/go-cache"
)

// ReadCache memoizes full-collection reads.
//
// Entries never expire and are not invalidated by writes through the store:
// after a Create/Update/Delete a cached read keeps returning the old snapshot
// until ClearCache is called. Callers that need fresh data must clear first.
type ReadCache struct {
	store   *DocumentStore
	entries *cache.Cache
}

// NewReadCache creates an empty cache in front of store
func NewReadCache(store *DocumentStore) *ReadCache {
	return &ReadCache{
		store:   store,
		entries: cache.New(cache.NoExpiration, 0),
	}
}

func readCacheKey(collection, database string, stripID bool) string {
	return database + "/" + collection + "?strip=" + strconv.FormatBool(stripID)
}

// CachedRead returns the documents of collection in database, reading through on a miss.
// An empty database means the store's default. Each call gets its own deep copy.
// Concurrent misses on the same key may both read; the last one stored wins.
func (c *ReadCache) CachedRead(ctx context.Context, collection, database string, stripID bool) ([]Document, error) {
	if database == "" {
		database = c.store.Database()
	}
	key := readCacheKey(collection, database, stripID)

	if v, ok := c.entries.Get(key); ok {
		c.store.metrics.Increment(MetricCacheHits, "collection", collection)
		return cloneDocuments(v.([]Document)), nil
	}
	c.store.metrics.Increment(MetricCacheMisses, "collection", collection)

	docs, err := c.store.ReadIn(ctx, database, collection, stripID)
	if err != nil {
		return nil, err
	}

	c.entries.Set(key, docs, cache.NoExpiration)
	c.store.logger.Debug("cached collection read", "collection", collection, "database", database, "count", len(docs))
	return cloneDocuments(docs), nil
}

// ClearCache drops every cached read
func (c *ReadCache) ClearCache() {
	c.entries.Flush()
	c.store.metrics.Increment(MetricCacheClears)
	c.store.logger.Debug("read cache cleared")
}

// Len returns the number of cached reads
func (c *ReadCache) Len() int {
	return c.entries.ItemCount()
}
