// Package states stores state records, addressed by state code.
package states

import (
	"context"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/internal/entity"
)

// Collection is the collection state records live in
const Collection = "States"

// Field names as stored
const (
	CountryNameField = "country_name"
	StateCodeField   = "state_code"
	PopulationField  = entity.PopulationField
)

// State is a stored state record
type State struct {
	ID          string `json:"_id,omitempty"`
	CountryName string `json:"country_name"`
	StateCode   string `json:"state_code"`
	Population  *int64 `json:"population,omitempty"`
}

// PopulationOrUnknown returns the population, or -1 when it is not set
func (s State) PopulationOrUnknown() int64 {
	return entity.PopulationOrUnknown(s.Population)
}

// SampleState is a well-formed record with an unknown population
var SampleState = State{
	CountryName: "USA",
	StateCode:   "NY",
}

// Repository reads and writes state records
type Repository struct {
	repo *entity.Repository[State]
}

// New creates a state repository over store
func New(store *geobase.DocumentStore) *Repository {
	return &Repository{
		repo: entity.New[State](store, entity.Schema{
			Collection: Collection,
			Required:   []string{CountryNameField, StateCodeField},
			NaturalKey: []string{StateCodeField},
			Defaults:   geobase.Document{PopulationField: entity.UnknownPopulation},
			Check:      entity.CheckPopulation,
		}),
	}
}

func (r *Repository) Create(ctx context.Context, state State) (string, error) {
	return r.repo.Create(ctx, state)
}

func (r *Repository) CreateDocument(ctx context.Context, doc geobase.Document) (string, error) {
	return r.repo.CreateDocument(ctx, doc)
}

func (r *Repository) CreateFromJSON(ctx context.Context, data []byte) (string, error) {
	return r.repo.CreateFromJSON(ctx, data)
}

// Read returns every state in insertion order
func (r *Repository) Read(ctx context.Context) ([]State, error) {
	return r.repo.Read(ctx)
}

// ReadOne returns the state with the given code, or ErrNotFound
func (r *Repository) ReadOne(ctx context.Context, stateCode string) (State, error) {
	return r.repo.ReadOne(ctx, stateCode)
}

func (r *Repository) Delete(ctx context.Context, stateCode string) (int64, error) {
	return r.repo.Delete(ctx, stateCode)
}

// Population returns the state's population, or -1 when it is unknown
func (r *Repository) Population(ctx context.Context, stateCode string) (int64, error) {
	return r.repo.Population(ctx, stateCode)
}

func (r *Repository) SetPopulation(ctx context.Context, stateCode string, population int64) error {
	return r.repo.SetPopulation(ctx, population, stateCode)
}

// NumStates returns the number of stored states
func (r *Repository) NumStates(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	return r.repo.Exists(ctx, id)
}

// ValidID reports whether id is usable as a state identifier
func ValidID(id string) bool {
	return entity.ValidID(id)
}
