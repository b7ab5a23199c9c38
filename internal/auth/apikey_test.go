package auth

import (
	"context"
	"errors"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if len(key) != 64 {
		t.Errorf("GenerateAPIKey() key length = %d, want 64", len(key))
	}

	other, _ := GenerateAPIKey()
	if key == other {
		t.Error("GenerateAPIKey() produced duplicate keys")
	}
}

func TestKeyStore_Lookup(t *testing.T) {
	hash, err := HashAPIKey("secret-key")
	if err != nil {
		t.Fatalf("HashAPIKey() error = %v", err)
	}
	store, err := NewKeyStore([]APIKey{{Name: "booking-service", Hash: hash, Role: RoleOperator}})
	if err != nil {
		t.Fatalf("NewKeyStore() error = %v", err)
	}

	for range 2 { // second lookup is served from the verified cache
		p, err := store.Lookup(context.Background(), "secret-key")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if p.Subject != "booking-service" || p.Role != RoleOperator {
			t.Errorf("unexpected principal %+v", p)
		}
	}

	if _, err := store.Lookup(context.Background(), "wrong-key"); !errors.Is(err, ErrUnknownAPIKey) {
		t.Errorf("expected ErrUnknownAPIKey, got %v", err)
	}
}

func TestNewKeyStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  APIKey
	}{
		{"missing name", APIKey{Hash: "h", Role: RoleAdmin}},
		{"missing hash", APIKey{Name: "n", Role: RoleAdmin}},
		{"bad role", APIKey{Name: "n", Hash: "h", Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewKeyStore([]APIKey{tt.key}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestKeyStore_NilLookup(t *testing.T) {
	var s *KeyStore
	if _, err := s.Lookup(context.Background(), "k"); !errors.Is(err, ErrUnknownAPIKey) {
		t.Errorf("expected ErrUnknownAPIKey, got %v", err)
	}
}
