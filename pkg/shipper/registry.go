package shipper

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds the rate providers compiled into the binary. One of them is
// chosen at startup by RATE_PROVIDER and serves every quote and purchase.
// It is filled before the server starts and is read-only afterwards.
type Registry struct {
	providers map[string]Shipper
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Shipper)}
}

// Register makes s selectable under s.Name(). A later provider with the same
// name wins.
func (r *Registry) Register(s Shipper) {
	r.providers[strings.ToLower(s.Name())] = s
}

// Select returns the provider named by a RATE_PROVIDER value. Matching
// ignores case and surrounding spaces. The error lists what is available.
func (r *Registry) Select(name string) (Shipper, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if s, ok := r.providers[key]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrProviderNotFound, name, strings.Join(r.Names(), ", "))
}

// Names returns the selectable provider names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
