// Package loader imports entity backups, JSON arrays of records, into the store.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/cities"
	"github.com/adrianmcphee/geobase/states"
)

// Kind names the entity a backup file holds
type Kind string

const (
	KindCities Kind = "cities"
	KindStates Kind = "states"
)

// Creator stores one untyped record and returns its generated id
type Creator interface {
	CreateDocument(ctx context.Context, doc geobase.Document) (string, error)
}

// Skip describes a record that was not loaded
type Skip struct {
	Index int
	Name  string
	Err   error
}

// Result reports the outcome of a load
type Result struct {
	Loaded  int
	Skipped []Skip
}

// CreatorFor returns the repository that stores records of kind
func CreatorFor(store *geobase.DocumentStore, kind Kind) (Creator, error) {
	switch kind {
	case KindCities:
		return cities.New(store), nil
	case KindStates:
		return states.New(store), nil
	default:
		return nil, unknownKind(kind)
	}
}

// ReadFile reads a backup file, which must hold a JSON array
func ReadFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup file not readable: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"path":   path,
			"reason": "expected a JSON array of records",
		})
	}
	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"path":   path,
			"reason": err.Error(),
		})
	}
	return records, nil
}

// Load stores each record through creator. Records that fail validation or
// storage are skipped and reported; an unreachable store stops the load.
func Load(ctx context.Context, creator Creator, records []json.RawMessage, logger geobase.Logger) (Result, error) {
	if logger == nil {
		logger = &geobase.NoOpLogger{}
	}

	var res Result
	for i, raw := range records {
		doc, err := geobase.DecodeObject(raw)
		if err == nil {
			_, err = creator.CreateDocument(ctx, doc)
		}
		if geobase.IsConnection(err) {
			return res, err
		}
		if err != nil {
			skip := Skip{Index: i, Name: recordName(doc), Err: err}
			logger.Warn("skipping record", "index", i, "name", skip.Name, "error", err)
			res.Skipped = append(res.Skipped, skip)
			continue
		}
		res.Loaded++
	}
	return res, nil
}

// LoadFile reads path and loads every record in it
func LoadFile(ctx context.Context, creator Creator, path string, logger geobase.Logger) (Result, error) {
	records, err := ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return Load(ctx, creator, records, logger)
}

// Export writes every record of kind as an indented JSON array without ids,
// the format ReadFile accepts. It returns the number of records written.
func Export(ctx context.Context, store *geobase.DocumentStore, kind Kind, w io.Writer) (int, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return 0, err
	}
	docs, err := store.Read(ctx, collection, true)
	if err != nil {
		return 0, err
	}
	if docs == nil {
		docs = []geobase.Document{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}
	return len(docs), nil
}

func collectionFor(kind Kind) (string, error) {
	switch kind {
	case KindCities:
		return cities.Collection, nil
	case KindStates:
		return states.Collection, nil
	default:
		return "", unknownKind(kind)
	}
}

func unknownKind(kind Kind) error {
	return geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
		"kind":   string(kind),
		"reason": "unknown entity kind, want cities or states",
	})
}

func recordName(doc geobase.Document) string {
	for _, field := range []string{cities.NameField, states.StateCodeField} {
		if s := doc.String(field); s != "" {
			return s
		}
	}
	return ""
}
