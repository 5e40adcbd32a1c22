package geobase

import (
	"strings"

	"github.com/google/uuid"
)

// IDField is the generated identifier field every stored document carries
const IDField = "_id"

// NewID generates a UUIDv7 (time-ordered) identifier.
// Time ordering means lexical key order follows insertion order.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to UUIDv4 if NewV7 fails (extremely rare)
		id = uuid.New()
	}
	return id
}

// ParseID parses a generated identifier string. Braced, URN and upper-case forms are accepted.
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// IsValidID checks if a string is a well-formed generated identifier
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// normalizeID renders an identifier value in its display-safe string form
func normalizeID(v interface{}) string {
	switch id := v.(type) {
	case uuid.UUID:
		return id.String()
	case [16]byte:
		return uuid.UUID(id).String()
	case []byte:
		if parsed, err := uuid.FromBytes(id); err == nil {
			return parsed.String()
		}
		return string(id)
	case string:
		return strings.ToLower(id)
	default:
		return ""
	}
}
