package clients

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"aegis-backend/internal/apperror"
	"aegis-backend/internal/rbac"
)

// ServiceClient is a machine caller bound to one tenant. Its secret is
// stored bcrypt-hashed; the plaintext exists only at registration time.
type ServiceClient struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	Name       string `json:"name"`
	SecretHash string `json:"-"`
	Active     bool   `json:"active"`
}

// Store is the read-only client lookup.
type Store interface {
	ClientByID(ctx context.Context, clientID string) (*ServiceClient, error)
}

// HashSecret hashes a client secret with bcrypt for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash client secret: %w", err)
	}
	return string(hash), nil
}

// CheckSecret compares a plaintext secret against a bcrypt hash.
func CheckSecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Registry authenticates service clients into Caller values.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Authenticate verifies client credentials and returns a ServiceClient
// caller. Unknown client, wrong secret and disabled client all yield the
// same Unauthorized error.
func (r *Registry) Authenticate(ctx context.Context, clientID, secret string) (*rbac.Caller, error) {
	client, err := r.store.ClientByID(ctx, clientID)
	if err != nil {
		log.Printf("clients: lookup %s failed: %v", clientID, err)
		return nil, apperror.Unauthorized("Invalid client credentials")
	}
	if !client.Active || !CheckSecret(secret, client.SecretHash) {
		return nil, apperror.Unauthorized("Invalid client credentials")
	}

	return &rbac.Caller{
		Kind:     rbac.CallerServiceClient,
		Subject:  client.ID,
		TenantID: client.TenantID,
	}, nil
}
