package geobase

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// Document is a schemaless record stored in a collection.
// Values are whatever the JSON codec produces: numbers decode as json.Number.
type Document map[string]interface{}

// ID returns the document's generated identifier in string form, or "" if it has none
func (d Document) ID() string {
	return normalizeID(d[IDField])
}

// String returns a string field, or "" when missing or not a string
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Int64 returns an integral numeric field.
// ok is false when the field is missing, not a number, or not a whole number.
func (d Document) Int64(field string) (v int64, ok bool) {
	return toInt64(d[field])
}

// Clone returns a deep copy so callers can't mutate shared snapshots
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]interface{}(t)).(map[string]interface{}))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func cloneDocuments(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// encodeDocument serializes a document for storage
func encodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, WithContext(ErrValidation, map[string]interface{}{
			"reason": fmt.Sprintf("document is not JSON-serializable: %v", err),
		})
	}
	return data, nil
}

// decodeDocument parses a stored document, keeping integers exact
func decodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// DecodeObject parses caller-supplied JSON that must be a single object.
// Scalars, arrays and null are rejected with ErrValidation.
func DecodeObject(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, WithContext(ErrValidation, map[string]interface{}{
			"reason": "expected a JSON object of fields",
			"got":    describeJSON(trimmed),
		})
	}
	doc, err := decodeDocument(trimmed)
	if err != nil {
		return nil, WithContext(ErrValidation, map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return doc, nil
}

func describeJSON(data []byte) string {
	if len(data) == 0 {
		return "empty input"
	}
	switch data[0] {
	case '[':
		return "array"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	default:
		return "number"
	}
}

// KeyBuilder helps construct consistent storage keys.
//
//	kb := KeyBuilder{Prefix: "seDB/Cities", Suffix: ".json"}
//	key := kb.Key(id)  // "seDB/Cities/<id>.json"
type KeyBuilder struct {
	Prefix string
	Suffix string
}

// collectionKeys returns the key layout for one collection
func collectionKeys(database, collection string) KeyBuilder {
	return KeyBuilder{Prefix: database + "/" + collection, Suffix: ".json"}
}

// Key constructs a storage key from an ID.
func (kb KeyBuilder) Key(id string) string {
	return kb.Prefix + "/" + id + kb.Suffix
}

// Dir is the listing prefix for every key built by kb
func (kb KeyBuilder) Dir() string {
	return kb.Prefix + "/"
}

// ID extracts the identifier from a key built by kb
func (kb KeyBuilder) ID(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, kb.Dir())
	if !ok || strings.Contains(rest, "/") {
		return "", false
	}
	return strings.CutSuffix(rest, kb.Suffix)
}
