// Package cities stores city records.
//
// A city is addressed by its name together with its state code, so two
// cities may share a name as long as they are in different states.
package cities

import (
	"context"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/internal/entity"
)

// Collection is the collection city records live in
const Collection = "Cities"

// Field names as stored
const (
	NameField       = "name"
	StateCodeField  = "state_code"
	PopulationField = entity.PopulationField
)

// City is a stored city record
type City struct {
	ID         string `json:"_id,omitempty"`
	Name       string `json:"name"`
	StateCode  string `json:"state_code"`
	Population *int64 `json:"population,omitempty"`
}

// PopulationOrUnknown returns the population, or -1 when it is not set
func (c City) PopulationOrUnknown() int64 {
	return entity.PopulationOrUnknown(c.Population)
}

// SampleCity is a well-formed record with an unknown population
var SampleCity = City{
	Name:      "New York",
	StateCode: "NY",
}

// Repository reads and writes city records
type Repository struct {
	repo *entity.Repository[City]
}

// New creates a city repository over store
func New(store *geobase.DocumentStore) *Repository {
	return &Repository{
		repo: entity.New[City](store, entity.Schema{
			Collection: Collection,
			Required:   []string{NameField, StateCodeField},
			NaturalKey: []string{NameField, StateCodeField},
			Defaults:   geobase.Document{PopulationField: entity.UnknownPopulation},
			Check:      entity.CheckPopulation,
		}),
	}
}

// Create stores a city and returns its generated id
func (r *Repository) Create(ctx context.Context, city City) (string, error) {
	return r.repo.Create(ctx, city)
}

// CreateDocument stores an untyped city document, e.g. one decoded from a request body
func (r *Repository) CreateDocument(ctx context.Context, doc geobase.Document) (string, error) {
	return r.repo.CreateDocument(ctx, doc)
}

// CreateFromJSON stores a city given as a JSON object
func (r *Repository) CreateFromJSON(ctx context.Context, data []byte) (string, error) {
	return r.repo.CreateFromJSON(ctx, data)
}

// Read returns every city in insertion order
func (r *Repository) Read(ctx context.Context) ([]City, error) {
	return r.repo.Read(ctx)
}

// ReadOne returns the city with the given name in the given state
func (r *Repository) ReadOne(ctx context.Context, name, stateCode string) (City, error) {
	return r.repo.ReadOne(ctx, name, stateCode)
}

// Get returns the city with the given generated id
func (r *Repository) Get(ctx context.Context, id string) (City, error) {
	return r.repo.Get(ctx, id)
}

// Delete removes the city with the given name in the given state
func (r *Repository) Delete(ctx context.Context, name, stateCode string) (int64, error) {
	return r.repo.Delete(ctx, name, stateCode)
}

// Population returns the city's population, or -1 when it is unknown
func (r *Repository) Population(ctx context.Context, name, stateCode string) (int64, error) {
	return r.repo.Population(ctx, name, stateCode)
}

// SetPopulation stores a non-negative population for the city
func (r *Repository) SetPopulation(ctx context.Context, name, stateCode string, population int64) error {
	return r.repo.SetPopulation(ctx, population, name, stateCode)
}

// NumCities returns the number of stored cities
func (r *Repository) NumCities(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}

// Exists reports whether a city with the generated id is stored
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	return r.repo.Exists(ctx, id)
}

// ValidID reports whether id is usable as a city identifier
func ValidID(id string) bool {
	return entity.ValidID(id)
}
