package geobase

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Filter selects documents by exact match on every listed field.
// An empty filter matches every document.
type Filter map[string]interface{}

// Matches reports whether doc carries every filter field with an equal value.
// Values are compared in canonical JSON form, so int(5) matches json.Number("5").
func (f Filter) Matches(doc Document) bool {
	for field, want := range f {
		got, ok := doc[field]
		if field == IDField && ok {
			got = doc.ID()
			if s := normalizeID(want); s != "" {
				want = s
			}
		}
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
