// Package geobase is the data-access core for geographic records (cities,
// states, feature security records) kept in a schemaless document store.
//
// # Overview
//
// Documents are JSON objects grouped into named collections. They live on a
// byte-level Backend under "<database>/<collection>/<id>.json", so the same
// code runs against a local directory in development and an object store,
// Redis or PostgreSQL in the cloud. The package provides:
//
//   - A Connector that builds the backend on first use and retries its liveness probe
//   - DocumentStore: create, read, read-one, update and delete with exact-match filters
//   - ReadCache: memoized full-collection reads with manual invalidation
//   - Structured logging (zap) and metrics (Prometheus)
//
// # Quick Start
//
// Local mode keeps documents under a data directory:
//
//	cfg := geobase.DefaultConfig()
//	cfg.DataPath = "./data"
//
//	conn := geobase.NewConnector(cfg)
//	defer conn.Close()
//
//	store := geobase.NewDocumentStore(conn)
//	id, err := store.Create(ctx, "Cities", geobase.Document{
//	    "name":       "New York",
//	    "state_code": "NY",
//	    "population": 8000000,
//	})
//
//	doc, err := store.ReadOne(ctx, "Cities", geobase.Filter{"name": "New York"})
//	res, err := store.Update(ctx, "Cities", geobase.Filter{"name": "New York"},
//	    geobase.Document{"population": 8500000})
//
// Cloud mode takes a connection URI, or just a password for the hosted endpoint:
//
//	cfg, err := geobase.ConfigFromEnv() // GEO_DB_MODE=cloud GEO_DB_URI=redis://...
//
//	logger, _ := geobase.NewZapLoggerWithOptions(geobase.LogOptions{Level: "info"})
//	metrics := geobase.NewPrometheusMetrics(nil)
//	conn := geobase.NewConnector(cfg, geobase.WithLogger(logger), geobase.WithMetrics(metrics))
//	store := geobase.NewDocumentStoreWithObservability(conn, logger, metrics)
//
// # Identifiers
//
// Every created document gets a UUIDv7 under "_id". Callers always see it as a
// string; Read with stripID drops it. UUIDv7 is time ordered, so reads return
// documents in insertion order.
//
// # Errors
//
// Operations fail with errors matching one of the sentinels:
//
//	ErrValidation / ErrInvalidConfig  bad input or configuration, checked before any I/O
//	ErrConnection                     the store could not be reached after retrying
//	ErrStorage                        a backend operation failed on a live connection
//	ErrConflict                       (wrapped in ErrStorage) a concurrent writer won
//
// ReadOne reports "no match" as (nil, nil), not as an error. Entity packages
// turn that into ErrNotFound.
//
// # Caching
//
// ReadCache never expires entries and is not told about writes. A cached read
// after a write returns the old snapshot until ClearCache is called.
package geobase
