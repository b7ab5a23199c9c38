package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

const apiKeyBytes = 32

// ErrUnknownAPIKey is returned when no configured key matches.
var ErrUnknownAPIKey = errors.New("unknown api key")

// GenerateAPIKey returns 32 random bytes, hex-encoded to 64 characters.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate API key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// APIKey is a configured machine credential. Only the bcrypt hash of the
// key is kept in configuration.
type APIKey struct {
	Name string `mapstructure:"name"`
	Hash string `mapstructure:"hash"`
	Role string `mapstructure:"role"`
}

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Role    string
}

// KeyStore verifies API keys against configured bcrypt hashes. Successful
// matches are remembered by SHA-256 digest so bcrypt runs once per key.
type KeyStore struct {
	keys []APIKey

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]Principal
}

// NewKeyStore validates the configured keys.
func NewKeyStore(keys []APIKey) (*KeyStore, error) {
	for _, k := range keys {
		if k.Name == "" || k.Hash == "" {
			return nil, errors.New("api key requires name and hash")
		}
		if !ValidRole(k.Role) {
			return nil, fmt.Errorf("api key %s: %w: %q", k.Name, ErrUnknownRole, k.Role)
		}
	}
	return &KeyStore{keys: keys, verified: make(map[[sha256.Size]byte]Principal)}, nil
}

// Lookup returns the principal for key.
func (s *KeyStore) Lookup(_ context.Context, key string) (Principal, error) {
	if s == nil || key == "" {
		return Principal{}, ErrUnknownAPIKey
	}
	digest := sha256.Sum256([]byte(key))

	s.mu.RLock()
	p, ok := s.verified[digest]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	for _, k := range s.keys {
		if verifyHash(k.Hash, key) == nil {
			p = Principal{Subject: k.Name, Role: k.Role}
			s.mu.Lock()
			s.verified[digest] = p
			s.mu.Unlock()
			return p, nil
		}
	}
	return Principal{}, ErrUnknownAPIKey
}
