package crypto

import (
	"encoding/base64"
	"testing"
)

func TestNewSecret(t *testing.T) {
	a, err := NewSecret(32)
	if err != nil {
		t.Fatalf("secret error: %v", err)
	}
	b, err := NewSecret(32)
	if err != nil {
		t.Fatalf("secret error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct secrets")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil || len(raw) != 32 {
		t.Fatalf("expected 32 base64url bytes, got %d (%v)", len(raw), err)
	}

	fallback, err := NewSecret(0)
	if err != nil {
		t.Fatalf("secret error: %v", err)
	}
	if raw, _ := base64.RawURLEncoding.DecodeString(fallback); len(raw) != 32 {
		t.Fatalf("expected default length, got %d", len(raw))
	}
}
