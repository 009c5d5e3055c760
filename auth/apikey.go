package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyConfig configures APIKeyAuthenticator.
type APIKeyConfig struct {
	// HeaderName carries the key. Default: X-API-Key
	HeaderName string

	// Principal is reported for every accepted key. Default: "api-key"
	Principal string

	// Roles granted to key holders. Default: [RoleControl]
	Roles []string
}

// APIKeyAuthenticator accepts any of a fixed set of keys, stored hashed.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	hashes [][]byte
}

// NewAPIKeyAuthenticator accepts keys whose SHA-256 hex digest is in hashes.
func NewAPIKeyAuthenticator(config APIKeyConfig, hashes ...string) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	if config.Principal == "" {
		config.Principal = "api-key"
	}
	if config.Roles == nil {
		config.Roles = []string{RoleControl}
	}

	a := &APIKeyAuthenticator{config: config}
	for _, h := range hashes {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

func (a *APIKeyAuthenticator) Supports(header http.Header) bool {
	return header.Get(a.config.HeaderName) != ""
}

// Authenticate compares the presented key against every stored hash in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, header http.Header) (*Identity, error) {
	key := strings.TrimSpace(header.Get(a.config.HeaderName))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	presented := []byte(HashAPIKey(key))
	match := 0
	for _, h := range a.hashes {
		match |= subtle.ConstantTimeCompare(presented, h)
	}
	if match != 1 {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Principal: a.config.Principal,
		Method:    MethodAPIKey,
		Roles:     append([]string(nil), a.config.Roles...),
	}, nil
}

// HashAPIKey returns the SHA-256 hex digest stored in place of key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
