package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func TestGeneratedIDsAreEncodedUUIDv4(t *testing.T) {
	tests := []struct {
		name string
		gen  func(t *testing.T) string
	}{
		{
			name: "NewID",
			gen: func(t *testing.T) string {
				value, err := NewID()
				if err != nil {
					t.Fatalf("new id: %v", err)
				}
				return value
			},
		},
		{
			name: "MustNewID",
			gen:  func(*testing.T) string { return MustNewID() },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := tt.gen(t)
			if len(value) != 26 {
				t.Fatalf("len(%q) = %d, want 26", value, len(value))
			}
			if strings.ToLower(value) != value || strings.Contains(value, "=") {
				t.Fatalf("id %q is not lowercase unpadded base32", value)
			}

			raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(value))
			if err != nil {
				t.Fatalf("decode %q: %v", value, err)
			}
			if len(raw) != 16 {
				t.Fatalf("decoded %d bytes, want 16", len(raw))
			}
			if version := raw[6] >> 4; version != 4 {
				t.Fatalf("uuid version = %d, want 4", version)
			}
			if variant := raw[8] & 0xC0; variant != 0x80 {
				t.Fatalf("uuid variant = 0x%X, want 0x80", variant)
			}
		})
	}
}

func TestMustNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		value := MustNewID()
		if _, dup := seen[value]; dup {
			t.Fatalf("duplicate id %q", value)
		}
		seen[value] = struct{}{}
	}
}
