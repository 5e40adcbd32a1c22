package geobase

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestDocument_Accessors(t *testing.T) {
	doc := Document{
		IDField:      NewID().String(),
		"name":       "Denver",
		"population": json.Number("715522"),
		"ratio":      1.5,
		"count":      7,
	}

	if doc.ID() == "" {
		t.Error("ID should be rendered")
	}
	if doc.String("name") != "Denver" || doc.String("population") != "" {
		t.Error("String should only return string fields")
	}

	tests := []struct {
		field string
		want  int64
		ok    bool
	}{
		{"population", 715522, true},
		{"count", 7, true},
		{"ratio", 0, false},
		{"name", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := doc.Int64(tt.field)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Int64(%q) = %d, %v; want %d, %v", tt.field, got, ok, tt.want, tt.ok)
		}
	}

	whole, ok := Document{"p": json.Number("8e6")}.Int64("p")
	if !ok || whole != 8000000 {
		t.Errorf("exponent form of a whole number should convert, got %d, %v", whole, ok)
	}
}

func TestDocument_Clone(t *testing.T) {
	orig := Document{
		"name":   "Boise",
		"nested": map[string]interface{}{"k": "v"},
		"list":   []interface{}{"a", map[string]interface{}{"b": 1}},
	}
	clone := orig.Clone()

	clone["name"] = "changed"
	clone["nested"].(map[string]interface{})["k"] = "changed"
	clone["list"].([]interface{})[1].(map[string]interface{})["b"] = 2

	if orig["name"] != "Boise" ||
		orig["nested"].(map[string]interface{})["k"] != "v" ||
		orig["list"].([]interface{})[1].(map[string]interface{})["b"] != 1 {
		t.Errorf("clone shares state with original: %v", orig)
	}

	var nilDoc Document
	if nilDoc.Clone() != nil {
		t.Error("nil clone should stay nil")
	}
}

func TestDecodeDocument_KeepsIntegers(t *testing.T) {
	doc, err := decodeDocument([]byte(`{"population": 9007199254740993}`))
	if err != nil {
		t.Fatalf("decodeDocument failed: %v", err)
	}
	if n, ok := doc.Int64("population"); !ok || n != 9007199254740993 {
		t.Errorf("large integer lost precision: %v", doc["population"])
	}

	empty, err := decodeDocument([]byte(`null`))
	if err != nil || empty == nil {
		t.Errorf("null should decode to an empty document: %v, %v", empty, err)
	}
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"Object", `{"name": "Salem", "state_code": "OR"}`, false},
		{"LeadingSpace", "  \n{\"a\": 1}", false},
		{"Array", `[{"name": "Salem"}]`, true},
		{"String", `"Salem"`, true},
		{"Number", `42`, true},
		{"Null", `null`, true},
		{"Bool", `true`, true},
		{"Empty", ``, true},
		{"Malformed", `{"name": }`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeObject([]byte(tt.in))
			if tt.wantErr {
				if !IsValidation(err) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil || doc == nil {
				t.Errorf("DecodeObject = %v, %v", doc, err)
			}
		})
	}
}

func TestKeyBuilder(t *testing.T) {
	kb := collectionKeys("seDB", "Cities")
	id := NewID().String()

	key := kb.Key(id)
	if key != "seDB/Cities/"+id+".json" {
		t.Errorf("Key = %s", key)
	}

	got, ok := kb.ID(key)
	if !ok || got != id {
		t.Errorf("ID(%s) = %s, %v", key, got, ok)
	}

	for _, other := range []string{
		"seDB/States/" + id + ".json",
		"seDB/Cities/nested/" + id + ".json",
		"seDB/Cities/" + id + ".tmp",
	} {
		if _, ok := kb.ID(other); ok {
			t.Errorf("ID should reject %s", other)
		}
	}
}
