package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/pkg/storefront"
)

// CredentialStore reads and writes per-shop credentials.
type CredentialStore interface {
	FindByTenant(ctx context.Context, tenantID string) (*domain.Credential, error)
	Upsert(ctx context.Context, c domain.Credential) error
}

// Resolver turns a shop id into storefront credentials.
type Resolver struct {
	store CredentialStore
}

// NewResolver creates a new Resolver.
func NewResolver(store CredentialStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the active credential of the shop.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (storefront.Credentials, error) {
	tenantID = Normalize(tenantID)
	if tenantID == "" {
		return storefront.Credentials{}, &ResolutionError{Cause: ErrMissingTenant}
	}

	cred, err := r.store.FindByTenant(ctx, tenantID)
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound):
		return storefront.Credentials{}, &ResolutionError{TenantID: tenantID, Cause: ErrNotRegistered}
	case err != nil:
		return storefront.Credentials{}, &ResolutionError{TenantID: tenantID, Cause: err}
	case !cred.Active:
		return storefront.Credentials{}, &ResolutionError{TenantID: tenantID, Cause: ErrInactive}
	}

	return storefront.Credentials{Shop: cred.TenantID, AccessToken: cred.AccessToken}, nil
}

// Register stores the shop's access token and marks it active, replacing
// any earlier grant.
func (r *Resolver) Register(ctx context.Context, tenantID, accessToken, scope string) error {
	tenantID = Normalize(tenantID)
	if tenantID == "" {
		return ErrMissingTenant
	}
	if accessToken == "" {
		return errors.New("access token is required")
	}
	if err := r.store.Upsert(ctx, domain.Credential{
		TenantID:    tenantID,
		AccessToken: accessToken,
		Scope:       scope,
		Active:      true,
	}); err != nil {
		return fmt.Errorf("registering %s: %w", tenantID, err)
	}
	return nil
}
