package geobase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// UpdateResult reports what an Update touched
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DocumentStore provides collection-level CRUD on top of a Connector's Backend.
// Completely domain-agnostic: entity packages add typing and validation.
//
// Every method connects on demand, so the first call on a fresh Connector
// pays the connect cost and may fail with ErrConnection.
type DocumentStore struct {
	conn     *Connector
	database string
	logger   Logger
	metrics  Metrics
}

// NewDocumentStore creates a store on the connector's default database with no-op logger and metrics
func NewDocumentStore(conn *Connector) *DocumentStore {
	return NewDocumentStoreWithObservability(conn, nil, nil)
}

// NewDocumentStoreWithObservability creates a store with logging and metrics
func NewDocumentStoreWithObservability(conn *Connector, logger Logger, metrics Metrics) *DocumentStore {
	database := conn.Config().Database
	if database == "" {
		database = DefaultDatabase
	}
	return &DocumentStore{
		conn:     conn,
		database: database,
		logger:   WithFields(logger, "database", database),
		metrics:  metricsOrNoOp(metrics),
	}
}

// Database returns the default database name used by the non-In methods
func (s *DocumentStore) Database() string {
	return s.database
}

// Connector returns the connector the store draws its backend from
func (s *DocumentStore) Connector() *Connector {
	return s.conn
}

// Logger returns the store's logger so repositories can log in the same stream
func (s *DocumentStore) Logger() Logger {
	return s.logger
}

// Metrics returns the store's metrics collector
func (s *DocumentStore) Metrics() Metrics {
	return s.metrics
}

// connect is the guard every operation starts with
func (s *DocumentStore) connect(ctx context.Context) (Backend, error) {
	return s.conn.Connect(ctx)
}

func validateNames(database, collection string) error {
	for field, name := range map[string]string{"database": database, "collection": collection} {
		if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
			return WithContext(ErrValidation, map[string]interface{}{
				"field":  field,
				"value":  name,
				"reason": "name must be non-empty without path separators",
			})
		}
	}
	return nil
}

// Create inserts doc into collection and returns its generated id
func (s *DocumentStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	return s.CreateIn(ctx, s.database, collection, doc)
}

// CreateIn is Create against an explicit database
func (s *DocumentStore) CreateIn(ctx context.Context, database, collection string, doc Document) (string, error) {
	start := time.Now()
	id, err := s.create(ctx, database, collection, doc)
	s.metrics.Timing(MetricCreateDuration, time.Since(start), "collection", collection)

	if err != nil {
		s.metrics.Increment(MetricCreateError, "collection", collection)
		s.logger.Error("error creating document", "collection", collection, "error", err)
		return "", err
	}

	s.metrics.Increment(MetricCreateSuccess, "collection", collection)
	s.logger.Debug("document created", "collection", collection, "id", id)
	return id, nil
}

func (s *DocumentStore) create(ctx context.Context, database, collection string, doc Document) (string, error) {
	if err := validateNames(database, collection); err != nil {
		return "", err
	}
	backend, err := s.connect(ctx)
	if err != nil {
		return "", err
	}

	id := NewID().String()
	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}
	stored[IDField] = id

	data, err := encodeDocument(stored)
	if err != nil {
		return "", err
	}

	if err := backend.Put(ctx, collectionKeys(database, collection).Key(id), data); err != nil {
		return "", storageError("create", collection, err)
	}
	return id, nil
}

// ReadOne returns the first document matching filter, in insertion order.
// No match is not an error: it returns (nil, nil).
func (s *DocumentStore) ReadOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	return s.ReadOneIn(ctx, s.database, collection, filter)
}

// ReadOneIn is ReadOne against an explicit database
func (s *DocumentStore) ReadOneIn(ctx context.Context, database, collection string, filter Filter) (Document, error) {
	start := time.Now()
	doc, err := s.readOne(ctx, database, collection, filter)
	s.metrics.Timing(MetricReadDuration, time.Since(start), "collection", collection)

	if err != nil {
		s.metrics.Increment(MetricReadError, "collection", collection)
		s.logger.Error("error reading document", "collection", collection, "error", err)
		return nil, err
	}

	s.metrics.Increment(MetricReadSuccess, "collection", collection)
	return doc, nil
}

func (s *DocumentStore) readOne(ctx context.Context, database, collection string, filter Filter) (Document, error) {
	if err := validateNames(database, collection); err != nil {
		return nil, err
	}
	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	_, doc, err := s.findFirst(ctx, backend, database, collection, filter)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// Read returns every document in collection, in insertion order.
// With stripID the generated id is removed; otherwise it is a string.
func (s *DocumentStore) Read(ctx context.Context, collection string, stripID bool) ([]Document, error) {
	return s.ReadIn(ctx, s.database, collection, stripID)
}

// ReadIn is Read against an explicit database
func (s *DocumentStore) ReadIn(ctx context.Context, database, collection string, stripID bool) ([]Document, error) {
	start := time.Now()
	docs, err := s.read(ctx, database, collection, stripID)
	s.metrics.Timing(MetricReadDuration, time.Since(start), "collection", collection)

	if err != nil {
		s.metrics.Increment(MetricReadError, "collection", collection)
		s.logger.Error("error reading documents", "collection", collection, "error", err)
		return nil, err
	}

	s.metrics.Increment(MetricReadSuccess, "collection", collection)
	s.metrics.Histogram(MetricReadResults, float64(len(docs)), "collection", collection)
	return docs, nil
}

func (s *DocumentStore) read(ctx context.Context, database, collection string, stripID bool) ([]Document, error) {
	if err := validateNames(database, collection); err != nil {
		return nil, err
	}
	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := s.scan(ctx, backend, database, collection)
	if err != nil {
		return nil, err
	}
	if stripID {
		for _, doc := range docs {
			delete(doc, IDField)
		}
	}
	return docs, nil
}

// ReadDict returns every document in collection keyed by the string form of keyField.
// A document without keyField fails the whole read with ErrMissingField.
// Later documents win when two share a key.
func (s *DocumentStore) ReadDict(ctx context.Context, collection, keyField string, stripID bool) (map[string]Document, error) {
	return s.ReadDictIn(ctx, s.database, collection, keyField, stripID)
}

// ReadDictIn is ReadDict against an explicit database
func (s *DocumentStore) ReadDictIn(ctx context.Context, database, collection, keyField string, stripID bool) (map[string]Document, error) {
	docs, err := s.ReadIn(ctx, database, collection, false)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Document, len(docs))
	for _, doc := range docs {
		v, ok := doc[keyField]
		if !ok || v == nil {
			return nil, WithContext(ErrMissingField, map[string]interface{}{
				"collection": collection,
				"field":      keyField,
				"id":         doc.ID(),
			})
		}
		key := fieldKey(v)
		if stripID {
			delete(doc, IDField)
		}
		out[key] = doc
	}
	return out, nil
}

func fieldKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		if s := normalizeID(v); s != "" {
			return s
		}
		return fmt.Sprint(v)
	}
}

// Count returns the number of documents in collection without decoding them
func (s *DocumentStore) Count(ctx context.Context, collection string) (int, error) {
	return s.CountIn(ctx, s.database, collection)
}

// CountIn is Count against an explicit database
func (s *DocumentStore) CountIn(ctx context.Context, database, collection string) (int, error) {
	if err := validateNames(database, collection); err != nil {
		return 0, err
	}
	backend, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}

	kb := collectionKeys(database, collection)
	keys, err := backend.List(ctx, kb.Dir())
	if err != nil {
		s.metrics.Increment(MetricReadError, "collection", collection)
		return 0, storageError("count", collection, err)
	}

	n := 0
	for _, key := range keys {
		if _, ok := kb.ID(key); ok {
			n++
		}
	}
	return n, nil
}

// Update applies set as a partial field merge to the first document matching filter.
// ModifiedCount is 0 when nothing matched or every field already held its new value.
func (s *DocumentStore) Update(ctx context.Context, collection string, filter Filter, set Document) (UpdateResult, error) {
	return s.UpdateIn(ctx, s.database, collection, filter, set)
}

// UpdateIn is Update against an explicit database
func (s *DocumentStore) UpdateIn(ctx context.Context, database, collection string, filter Filter, set Document) (UpdateResult, error) {
	start := time.Now()
	result, err := s.update(ctx, database, collection, filter, set)
	s.metrics.Timing(MetricUpdateDuration, time.Since(start), "collection", collection)

	if err != nil {
		s.metrics.Increment(MetricUpdateError, "collection", collection)
		s.logger.Error("error updating document", "collection", collection, "error", err)
		return UpdateResult{}, err
	}

	s.metrics.Increment(MetricUpdateSuccess, "collection", collection)
	s.logger.Debug("document updated",
		"collection", collection,
		"matched", result.MatchedCount,
		"modified", result.ModifiedCount,
	)
	return result, nil
}

func (s *DocumentStore) update(ctx context.Context, database, collection string, filter Filter, set Document) (UpdateResult, error) {
	if err := validateNames(database, collection); err != nil {
		return UpdateResult{}, err
	}
	if len(set) == 0 {
		return UpdateResult{}, WithContext(ErrValidation, map[string]interface{}{
			"reason": "update requires at least one field",
		})
	}
	if _, ok := set[IDField]; ok {
		return UpdateResult{}, WithContext(ErrValidation, map[string]interface{}{
			"field":  IDField,
			"reason": "generated id is immutable",
		})
	}

	backend, err := s.connect(ctx)
	if err != nil {
		return UpdateResult{}, err
	}

	key, _, err := s.findFirst(ctx, backend, database, collection, filter)
	if errors.Is(err, ErrNotFound) {
		return UpdateResult{}, nil
	}
	if err != nil {
		return UpdateResult{}, err
	}

	data, etag, err := backend.GetWithETag(ctx, key)
	if errors.Is(err, ErrNotFound) {
		// Deleted between the scan and the read
		return UpdateResult{}, nil
	}
	if err != nil {
		return UpdateResult{}, storageError("update", collection, err)
	}
	current, err := decodeDocument(data)
	if err != nil {
		return UpdateResult{}, storageError("update", collection, err)
	}

	changed := false
	for field, v := range set {
		if old, ok := current[field]; !ok || !valuesEqual(old, v) {
			changed = true
		}
		current[field] = cloneValue(v)
	}
	if !changed {
		return UpdateResult{MatchedCount: 1}, nil
	}

	encoded, err := encodeDocument(current)
	if err != nil {
		return UpdateResult{}, err
	}
	_, err = backend.PutIfMatch(ctx, key, encoded, etag)
	if errors.Is(err, ErrNotFound) {
		// Deleted between the read and the write
		return UpdateResult{}, nil
	}
	if err != nil {
		return UpdateResult{}, storageError("update", collection, err)
	}
	return UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

// Delete removes the first document matching filter and reports how many were removed (0 or 1)
func (s *DocumentStore) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	return s.DeleteIn(ctx, s.database, collection, filter)
}

// DeleteIn is Delete against an explicit database
func (s *DocumentStore) DeleteIn(ctx context.Context, database, collection string, filter Filter) (int64, error) {
	start := time.Now()
	n, err := s.delete(ctx, database, collection, filter)
	s.metrics.Timing(MetricDeleteDuration, time.Since(start), "collection", collection)

	if err != nil {
		s.metrics.Increment(MetricDeleteError, "collection", collection)
		s.logger.Error("error deleting document", "collection", collection, "error", err)
		return 0, err
	}

	s.metrics.Increment(MetricDeleteSuccess, "collection", collection)
	s.logger.Debug("document delete", "collection", collection, "deleted", n)
	return n, nil
}

func (s *DocumentStore) delete(ctx context.Context, database, collection string, filter Filter) (int64, error) {
	if err := validateNames(database, collection); err != nil {
		return 0, err
	}
	backend, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}

	key, _, err := s.findFirst(ctx, backend, database, collection, filter)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if err := backend.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, storageError("delete", collection, err)
	}
	return 1, nil
}

// findFirst returns the key and decoded body of the first match, or ErrNotFound.
// A filter on the generated id goes straight to its key.
func (s *DocumentStore) findFirst(ctx context.Context, backend Backend, database, collection string, filter Filter) (string, Document, error) {
	kb := collectionKeys(database, collection)

	if raw, ok := filter[IDField]; ok {
		parsed, err := ParseID(normalizeID(raw))
		if err != nil {
			return "", nil, ErrNotFound
		}
		id := parsed.String()
		key := kb.Key(id)
		doc, err := s.load(ctx, backend, kb, key, collection)
		if err != nil {
			return "", nil, err
		}
		byID := make(Filter, len(filter))
		for field, v := range filter {
			byID[field] = v
		}
		byID[IDField] = id
		if !byID.Matches(doc) {
			return "", nil, ErrNotFound
		}
		return key, doc, nil
	}

	keys, err := backend.List(ctx, kb.Dir())
	if err != nil {
		return "", nil, storageError("list", collection, err)
	}
	for _, key := range keys {
		if _, ok := kb.ID(key); !ok {
			continue
		}
		doc, err := s.load(ctx, backend, kb, key, collection)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		if filter.Matches(doc) {
			return key, doc, nil
		}
	}
	return "", nil, ErrNotFound
}

// scan loads every document in the collection in key order
func (s *DocumentStore) scan(ctx context.Context, backend Backend, database, collection string) ([]Document, error) {
	kb := collectionKeys(database, collection)

	keys, err := backend.List(ctx, kb.Dir())
	if err != nil {
		return nil, storageError("list", collection, err)
	}

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		if _, ok := kb.ID(key); !ok {
			continue
		}
		doc, err := s.load(ctx, backend, kb, key, collection)
		if errors.Is(err, ErrNotFound) {
			// Deleted since the listing
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// load reads one document. The id always comes from the key, as a string.
func (s *DocumentStore) load(ctx context.Context, backend Backend, kb KeyBuilder, key, collection string) (Document, error) {
	data, err := backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("read", collection, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, storageError("read", collection, fmt.Errorf("%s: %w", key, err))
	}
	if id, ok := kb.ID(key); ok {
		doc[IDField] = id
	}
	return doc, nil
}
