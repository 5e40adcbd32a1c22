// Package entity provides the typed repository shared by the domain packages.
//
// A Repository binds a record type to one collection and knows which fields
// are required and which identify a record (its natural key). Records cross
// into geobase.Document form only at the store boundary.
package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/adrianmcphee/geobase"
)

const (
	// PopulationField holds the optional population count
	PopulationField = "population"

	// UnknownPopulation is stored or reported when the population is not known
	UnknownPopulation int64 = -1
)

// Schema describes how a record type is stored
type Schema struct {
	// Collection is the collection name inside the store's database
	Collection string

	// Required fields must be non-empty strings on create
	Required []string

	// NaturalKey fields address a single record for ReadOne, Delete and Update
	NaturalKey []string

	// Defaults fill fields missing from stored documents when decoding into records
	Defaults geobase.Document

	// Check runs extra validation on create, after the required-field check
	Check func(doc geobase.Document) error
}

// Repository provides typed CRUD for one collection.
//
// Example:
//
//	type City struct {
//	    ID        string `json:"_id,omitempty"`
//	    Name      string `json:"name"`
//	    StateCode string `json:"state_code"`
//	}
//
//	cities := entity.New[City](store, entity.Schema{
//	    Collection: "Cities",
//	    Required:   []string{"name", "state_code"},
//	    NaturalKey: []string{"name", "state_code"},
//	})
//	id, err := cities.Create(ctx, City{Name: "Reno", StateCode: "NV"})
type Repository[T any] struct {
	store  *geobase.DocumentStore
	schema Schema
}

// New creates a repository over store
func New[T any](store *geobase.DocumentStore, schema Schema) *Repository[T] {
	return &Repository[T]{store: store, schema: schema}
}

// Collection returns the collection the repository reads and writes
func (r *Repository[T]) Collection() string {
	return r.schema.Collection
}

// Store returns the underlying document store
func (r *Repository[T]) Store() *geobase.DocumentStore {
	return r.store
}

// Create validates and stores rec, returning the generated id.
// The record's own id field, if any, is ignored. Optional fields should be
// pointers with omitempty so an unset value is stored absent and Defaults apply.
func (r *Repository[T]) Create(ctx context.Context, rec T) (string, error) {
	doc, err := ToDocument(rec)
	if err != nil {
		return "", err
	}
	return r.CreateDocument(ctx, doc)
}

// CreateFromJSON decodes a JSON object and stores it.
// Anything but an object is rejected with ErrValidation.
func (r *Repository[T]) CreateFromJSON(ctx context.Context, data []byte) (string, error) {
	doc, err := geobase.DecodeObject(data)
	if err != nil {
		return "", err
	}
	return r.CreateDocument(ctx, doc)
}

// CreateDocument validates and stores an untyped document
func (r *Repository[T]) CreateDocument(ctx context.Context, doc geobase.Document) (string, error) {
	if err := r.Validate(doc); err != nil {
		return "", err
	}
	doc = doc.Clone()
	delete(doc, geobase.IDField)
	return r.store.Create(ctx, r.schema.Collection, doc)
}

// Validate checks doc against the schema without touching the store
func (r *Repository[T]) Validate(doc geobase.Document) error {
	if doc == nil {
		return geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"collection": r.schema.Collection,
			"reason":     "record is nil",
		})
	}
	for _, field := range r.schema.Required {
		s, ok := doc[field].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
				"collection": r.schema.Collection,
				"field":      field,
				"reason":     "required field missing or empty",
			})
		}
	}
	if r.schema.Check != nil {
		return r.schema.Check(doc)
	}
	return nil
}

// Read returns every record in insertion order
func (r *Repository[T]) Read(ctx context.Context) ([]T, error) {
	docs, err := r.store.Read(ctx, r.schema.Collection, false)
	if err != nil {
		return nil, err
	}
	recs := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ReadOne returns the record addressed by its natural key, or ErrNotFound
func (r *Repository[T]) ReadOne(ctx context.Context, key ...string) (T, error) {
	var zero T
	doc, err := r.readOne(ctx, key)
	if err != nil {
		return zero, err
	}
	return r.decode(doc)
}

func (r *Repository[T]) readOne(ctx context.Context, key []string) (geobase.Document, error) {
	filter, err := r.naturalFilter(key)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.ReadOne(ctx, r.schema.Collection, filter)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, r.notFound(key)
	}
	return doc, nil
}

// Get returns the record with the generated id, or ErrNotFound
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.store.ReadOne(ctx, r.schema.Collection, geobase.Filter{geobase.IDField: id})
	if err != nil {
		return zero, err
	}
	if doc == nil {
		return zero, geobase.WithContext(geobase.ErrNotFound, map[string]interface{}{
			"collection": r.schema.Collection,
			"id":         id,
		})
	}
	return r.decode(doc)
}

// Update merges set into the record addressed by its natural key.
// A missing record is ErrNotFound; a match with nothing changed reports ModifiedCount 0.
func (r *Repository[T]) Update(ctx context.Context, set geobase.Document, key ...string) (geobase.UpdateResult, error) {
	filter, err := r.naturalFilter(key)
	if err != nil {
		return geobase.UpdateResult{}, err
	}
	res, err := r.store.Update(ctx, r.schema.Collection, filter, set)
	if err != nil {
		return res, err
	}
	if res.MatchedCount == 0 {
		return res, r.notFound(key)
	}
	return res, nil
}

// Delete removes the record addressed by its natural key.
// Nothing deleted is ErrNotFound.
func (r *Repository[T]) Delete(ctx context.Context, key ...string) (int64, error) {
	filter, err := r.naturalFilter(key)
	if err != nil {
		return 0, err
	}
	n, err := r.store.Delete(ctx, r.schema.Collection, filter)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, r.notFound(key)
	}
	return n, nil
}

// Population reports the stored population, or UnknownPopulation when the field is absent
func (r *Repository[T]) Population(ctx context.Context, key ...string) (int64, error) {
	doc, err := r.readOne(ctx, key)
	if err != nil {
		return 0, err
	}
	if _, ok := doc[PopulationField]; !ok {
		return UnknownPopulation, nil
	}
	n, ok := doc.Int64(PopulationField)
	if !ok {
		return 0, geobase.WithContext(geobase.ErrStorage, map[string]interface{}{
			"collection": r.schema.Collection,
			"field":      PopulationField,
			"reason":     fmt.Sprintf("stored value %v is not an integer", doc[PopulationField]),
		})
	}
	return n, nil
}

// SetPopulation stores a non-negative population.
// Writing the value already stored is ErrNotModified.
func (r *Repository[T]) SetPopulation(ctx context.Context, population int64, key ...string) error {
	if population < 0 {
		return geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"collection": r.schema.Collection,
			"field":      PopulationField,
			"value":      population,
			"reason":     "population must be non-negative",
		})
	}
	res, err := r.Update(ctx, geobase.Document{PopulationField: population}, key...)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return geobase.WithContext(geobase.ErrNotModified, map[string]interface{}{
			"collection": r.schema.Collection,
			"key":        strings.Join(key, "/"),
		})
	}
	return nil
}

// Exists reports whether a record with the generated id is stored
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	doc, err := r.store.ReadOne(ctx, r.schema.Collection, geobase.Filter{geobase.IDField: id})
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Count returns the number of stored records
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, r.schema.Collection)
}

// Int64 returns a pointer to n, for optional record fields such as population
func Int64(n int64) *int64 {
	return &n
}

// PopulationOrUnknown dereferences an optional population, reporting UnknownPopulation when unset
func PopulationOrUnknown(p *int64) int64 {
	if p == nil {
		return UnknownPopulation
	}
	return *p
}

// ValidID reports whether id is usable as a record identifier
func ValidID(id string) bool {
	return strings.TrimSpace(id) != ""
}

// CheckPopulation accepts documents whose population is absent, UnknownPopulation, or non-negative
func CheckPopulation(doc geobase.Document) error {
	raw, ok := doc[PopulationField]
	if !ok {
		return nil
	}
	n, isInt := doc.Int64(PopulationField)
	if !isInt || n < UnknownPopulation {
		return geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"field":  PopulationField,
			"value":  raw,
			"reason": "population must be a non-negative integer or -1",
		})
	}
	return nil
}

func (r *Repository[T]) naturalFilter(key []string) (geobase.Filter, error) {
	if len(key) != len(r.schema.NaturalKey) {
		return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"collection": r.schema.Collection,
			"reason":     fmt.Sprintf("expected %d key values, got %d", len(r.schema.NaturalKey), len(key)),
		})
	}
	filter := make(geobase.Filter, len(key))
	for i, field := range r.schema.NaturalKey {
		if strings.TrimSpace(key[i]) == "" {
			return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
				"collection": r.schema.Collection,
				"field":      field,
				"reason":     "key value is empty",
			})
		}
		filter[field] = key[i]
	}
	return filter, nil
}

func (r *Repository[T]) notFound(key []string) error {
	return geobase.WithContext(geobase.ErrNotFound, map[string]interface{}{
		"collection": r.schema.Collection,
		"key":        strings.Join(key, "/"),
	})
}

func (r *Repository[T]) decode(doc geobase.Document) (T, error) {
	var rec T
	if len(r.schema.Defaults) > 0 {
		merged := doc.Clone()
		for field, v := range r.schema.Defaults {
			if _, ok := merged[field]; !ok {
				merged[field] = v
			}
		}
		doc = merged
	}
	if err := FromDocument(doc, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ToDocument converts a record into its stored form through its JSON tags
func ToDocument(rec interface{}) (geobase.Document, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return geobase.DecodeObject(data)
}

// FromDocument fills rec from a stored document through its JSON tags
func FromDocument(doc geobase.Document, rec interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return geobase.WithContext(fmt.Errorf("%w: %w", geobase.ErrStorage, err), map[string]interface{}{
			"reason": "stored document does not fit the record type",
		})
	}
	return nil
}
