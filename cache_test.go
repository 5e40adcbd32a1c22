package geobase

import (
	"context"
	"reflect"
	"testing"
)

func TestReadCache_StaleUntilCleared(t *testing.T) {
	ctx := context.Background()
	store, metrics := newTestStore(t)
	cache := NewReadCache(store)

	_, _ = store.Create(ctx, "Cities", Document{"name": "Reno", "state_code": "NV"})

	first, err := cache.CachedRead(ctx, "Cities", "", true)
	if err != nil {
		t.Fatalf("CachedRead failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 document, got %d", len(first))
	}

	// Write behind the cache's back
	_, _ = store.Create(ctx, "Cities", Document{"name": "Elko", "state_code": "NV"})

	second, err := cache.CachedRead(ctx, "Cities", "", true)
	if err != nil {
		t.Fatalf("CachedRead failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached read changed without ClearCache: %v vs %v", first, second)
	}

	cache.ClearCache()
	if cache.Len() != 0 {
		t.Errorf("Len after clear = %d", cache.Len())
	}

	third, err := cache.CachedRead(ctx, "Cities", "", true)
	if err != nil {
		t.Fatalf("CachedRead failed: %v", err)
	}
	if len(third) != 2 {
		t.Errorf("after ClearCache expected current state (2 documents), got %d", len(third))
	}

	if metrics.Count(MetricCacheHits) != 1 || metrics.Count(MetricCacheMisses) != 2 {
		t.Errorf("hits=%d misses=%d", metrics.Count(MetricCacheHits), metrics.Count(MetricCacheMisses))
	}
	if metrics.Count(MetricCacheClears) != 1 {
		t.Errorf("clears=%d", metrics.Count(MetricCacheClears))
	}
}

func TestReadCache_KeyedByStripFlagAndDatabase(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	cache := NewReadCache(store)

	_, _ = store.Create(ctx, "Cities", Document{"name": "Provo"})
	_, _ = store.CreateIn(ctx, "archive", "Cities", Document{"name": "Ogden"})

	stripped, _ := cache.CachedRead(ctx, "Cities", "", true)
	withID, _ := cache.CachedRead(ctx, "Cities", "", false)
	archived, _ := cache.CachedRead(ctx, "Cities", "archive", true)

	if _, ok := stripped[0][IDField]; ok {
		t.Error("stripped read should not carry _id")
	}
	if _, ok := withID[0][IDField].(string); !ok {
		t.Error("unstripped read should carry a string _id")
	}
	if archived[0].String("name") != "Ogden" {
		t.Errorf("database is part of the cache key, got %v", archived)
	}
	if cache.Len() != 3 {
		t.Errorf("expected 3 cache entries, got %d", cache.Len())
	}
}

func TestReadCache_SnapshotsAreImmutable(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	cache := NewReadCache(store)

	_, _ = store.Create(ctx, "States", Document{"state_code": "UT", "tags": []interface{}{"west"}})

	first, _ := cache.CachedRead(ctx, "States", "", true)
	first[0]["state_code"] = "XX"
	first[0]["tags"].([]interface{})[0] = "mutated"

	second, _ := cache.CachedRead(ctx, "States", "", true)
	if second[0].String("state_code") != "UT" {
		t.Error("caller mutation leaked into the cache")
	}
	if second[0]["tags"].([]interface{})[0] != "west" {
		t.Error("nested caller mutation leaked into the cache")
	}
}

func TestReadCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	cache := NewReadCache(store)

	if _, err := cache.CachedRead(ctx, "bad/name", "", false); !IsValidation(err) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if cache.Len() != 0 {
		t.Error("failed reads must not be cached")
	}
}
