package geobase

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	if a == b {
		t.Error("ids should be unique")
	}
	if a.Version() != 7 {
		t.Errorf("expected UUIDv7, got version %d", a.Version())
	}
	if a.String() >= b.String() {
		t.Errorf("ids should sort in creation order: %s then %s", a, b)
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{NewID().String(), true},
		{"0190a5b2-7c4e-7d3a-9f11-2b8c6e1d4a00", true},
		{"", false},
		{"New York", false},
		{"0190a5b2", false},
	}
	for _, tt := range tests {
		if got := IsValidID(tt.in); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseID("nope"); err == nil {
		t.Error("ParseID should reject garbage")
	}
}

func TestNormalizeID(t *testing.T) {
	id := NewID()
	want := id.String()

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"UUID", id, want},
		{"Array", [16]byte(id), want},
		{"Bytes", id[:], want},
		{"String", want, want},
		{"UpperString", "ABC", "abc"},
		{"RawBytes", []byte("legacy"), "legacy"},
		{"Number", 42, ""},
		{"Nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeID(tt.in); got != tt.want {
				t.Errorf("normalizeID(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	var zero uuid.UUID
	if normalizeID(zero) != "00000000-0000-0000-0000-000000000000" {
		t.Error("zero UUID should still render")
	}
}
