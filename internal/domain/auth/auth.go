package auth

import "context"

// Identity is the authenticated user on whose behalf a request runs. It is
// resolved once at the transport boundary and passed explicitly into domain
// services; no domain code reads it from ambient state.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// APIKeyInfo holds the stored hash and the identity an API key resolves to.
type APIKeyInfo struct {
	ID       string
	KeyHash  string
	Identity Identity
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
