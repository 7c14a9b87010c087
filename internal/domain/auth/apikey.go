package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ScopeAdmin grants access to the admin surface.
const ScopeAdmin = "admin"

// ErrNotFound is returned when no active key matches the presented hash.
var ErrNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Identity is the authenticated principal attached to a request context.
type Identity struct {
	UserID string
	Admin  bool
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
