package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/adrianmcphee/geobase"
)

type town struct {
	ID         string `json:"_id,omitempty"`
	Name       string `json:"name"`
	Region     string `json:"region"`
	Population int64  `json:"population"`
}

func newTownRepo(t *testing.T) *Repository[town] {
	t.Helper()
	cfg := geobase.DefaultConfig()
	cfg.DataPath = t.TempDir()
	store := geobase.NewDocumentStore(geobase.NewConnector(cfg))
	t.Cleanup(func() { store.Connector().Close() })

	return New[town](store, Schema{
		Collection: "Towns",
		Required:   []string{"name", "region"},
		NaturalKey: []string{"name", "region"},
		Defaults:   geobase.Document{PopulationField: UnknownPopulation},
		Check:      CheckPopulation,
	})
}

func TestRepository_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)

	id, err := repo.Create(ctx, town{ID: "ignored", Name: "Bend", Region: "OR", Population: 100000})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !ValidID(id) || id == "ignored" {
		t.Fatalf("expected a generated id, got %q", id)
	}

	got, err := repo.ReadOne(ctx, "Bend", "OR")
	if err != nil {
		t.Fatalf("ReadOne failed: %v", err)
	}
	if got.ID != id || got.Population != 100000 {
		t.Errorf("ReadOne = %+v", got)
	}

	all, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Bend" {
		t.Errorf("Read = %+v", all)
	}
}

func TestRepository_CreateValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)

	tests := []struct {
		name string
		doc  geobase.Document
	}{
		{"Nil", nil},
		{"MissingName", geobase.Document{"region": "OR"}},
		{"BlankName", geobase.Document{"name": "  ", "region": "OR"}},
		{"NonStringName", geobase.Document{"name": 42, "region": "OR"}},
		{"NegativePopulation", geobase.Document{"name": "Bend", "region": "OR", "population": -5}},
		{"FractionalPopulation", geobase.Document{"name": "Bend", "region": "OR", "population": 1.5}},
		{"TextPopulation", geobase.Document{"name": "Bend", "region": "OR", "population": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.CreateDocument(ctx, tt.doc); !geobase.IsValidation(err) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("rejected records must not be written: count=%d err=%v", n, err)
	}
}

func TestRepository_CreateFromJSON(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)

	if _, err := repo.CreateFromJSON(ctx, []byte(`{"name": "Salem", "region": "OR"}`)); err != nil {
		t.Fatalf("CreateFromJSON failed: %v", err)
	}

	for _, body := range []string{`"Salem"`, `[{"name": "Salem"}]`, `42`, `null`, ``} {
		if _, err := repo.CreateFromJSON(ctx, []byte(body)); !geobase.IsValidation(err) {
			t.Errorf("CreateFromJSON(%s): expected ErrValidation, got %v", body, err)
		}
	}
}

func TestRepository_PopulationDefaultsToUnknown(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)

	if _, err := repo.CreateDocument(ctx, geobase.Document{"name": "Bend", "region": "OR"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	pop, err := repo.Population(ctx, "Bend", "OR")
	if err != nil {
		t.Fatalf("Population failed: %v", err)
	}
	if pop != UnknownPopulation {
		t.Errorf("Population = %d, want %d", pop, UnknownPopulation)
	}

	rec, err := repo.ReadOne(ctx, "Bend", "OR")
	if err != nil {
		t.Fatalf("ReadOne failed: %v", err)
	}
	if rec.Population != UnknownPopulation {
		t.Errorf("decoded Population = %d, want %d", rec.Population, UnknownPopulation)
	}
}

func TestRepository_SetPopulation(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)
	_, _ = repo.CreateDocument(ctx, geobase.Document{"name": "Bend", "region": "OR"})

	if err := repo.SetPopulation(ctx, 99000, "Bend", "OR"); err != nil {
		t.Fatalf("SetPopulation failed: %v", err)
	}
	if pop, _ := repo.Population(ctx, "Bend", "OR"); pop != 99000 {
		t.Errorf("Population = %d", pop)
	}

	if err := repo.SetPopulation(ctx, 99000, "Bend", "OR"); !errors.Is(err, geobase.ErrNotModified) {
		t.Errorf("same value: expected ErrNotModified, got %v", err)
	}
	if err := repo.SetPopulation(ctx, -1, "Bend", "OR"); !geobase.IsValidation(err) {
		t.Errorf("negative: expected ErrValidation, got %v", err)
	}
	if err := repo.SetPopulation(ctx, 10, "Nowhere", "OR"); !geobase.IsNotFound(err) {
		t.Errorf("missing: expected ErrNotFound, got %v", err)
	}
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)
	_, _ = repo.CreateDocument(ctx, geobase.Document{"name": "Bend", "region": "OR"})
	_, _ = repo.CreateDocument(ctx, geobase.Document{"name": "Bend", "region": "KY"})

	n, err := repo.Delete(ctx, "Bend", "OR")
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if _, err := repo.Delete(ctx, "Bend", "OR"); !geobase.IsNotFound(err) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.ReadOne(ctx, "Bend", "KY"); err != nil {
		t.Errorf("record with the same name in another region should survive: %v", err)
	}
}

func TestRepository_NaturalKeyArity(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)

	if _, err := repo.ReadOne(ctx, "Bend"); !geobase.IsValidation(err) {
		t.Errorf("short key: expected ErrValidation, got %v", err)
	}
	if _, err := repo.Delete(ctx, "Bend", ""); !geobase.IsValidation(err) {
		t.Errorf("empty key value: expected ErrValidation, got %v", err)
	}
	if _, err := repo.ReadOne(ctx, "Bend", "OR"); !geobase.IsNotFound(err) {
		t.Errorf("absent record: expected ErrNotFound, got %v", err)
	}
}

func TestRepository_Exists(t *testing.T) {
	ctx := context.Background()
	repo := newTownRepo(t)
	id, _ := repo.CreateDocument(ctx, geobase.Document{"name": "Bend", "region": "OR"})

	for _, tt := range []struct {
		id   string
		want bool
	}{
		{id, true},
		{"", false},
		{"not-an-id", false},
		{geobase.NewID().String(), false},
	} {
		got, err := repo.Exists(ctx, tt.id)
		if err != nil {
			t.Fatalf("Exists(%q) failed: %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestValidID(t *testing.T) {
	for id, want := range map[string]bool{
		"1":    true,
		"abc":  true,
		"":     false,
		"   ":  false,
		"\t\n": false,
	} {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}
