// Package tenant resolves the storefront credential of the shop a request
// acts for. The shop is always named explicitly by the caller.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Header carries the tenant on inbound HTTP requests.
const Header = "X-Shop-Domain"

var (
	// ErrMissingTenant indicates the caller did not name a shop.
	ErrMissingTenant = errors.New("no shop given")

	// ErrNotRegistered indicates no credential is stored for the shop.
	ErrNotRegistered = errors.New("shop is not registered")

	// ErrInactive indicates the shop's credential has been deactivated.
	ErrInactive = errors.New("shop credential is inactive")
)

// ResolutionError reports why a shop's credential could not be resolved.
type ResolutionError struct {
	TenantID string
	Cause    error
}

func (e *ResolutionError) Error() string {
	if e.TenantID == "" {
		return fmt.Sprintf("resolving credential: %v", e.Cause)
	}
	return fmt.Sprintf("resolving credential for %s: %v", e.TenantID, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Normalize lower-cases a shop domain and strips scheme, path and blanks.
func Normalize(shop string) string {
	s := strings.ToLower(strings.TrimSpace(shop))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

type ctxKey struct{}

// WithID returns a context carrying the tenant id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFrom returns the tenant id stored by WithID, or "".
func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
