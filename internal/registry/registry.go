package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

var (
	// ErrCollectionNotFound means the id is not in the active set.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCapabilityUnsupported means the collection has no binding of the
	// requested capability.
	ErrCapabilityUnsupported = errors.New("capability unsupported")
)

// Registry is the read-only lookup from collection id to configuration and
// providers. Safe for concurrent use; nothing mutates after New.
type Registry struct {
	order []string
	byID  map[string]*Collection
}

func New(collections []Collection) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Collection, len(collections))}
	for i := range collections {
		c := &collections[i]
		if c.ID == "" {
			return nil, errors.New("registry: collection with empty id")
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate collection id %q", c.ID)
		}
		if c.Visibility == "" {
			c.Visibility = VisibilityDefault
		}
		r.byID[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

// Collection returns the configuration for id, hidden or not.
func (r *Registry) Collection(id string) (*Collection, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, id)
	}
	return c, nil
}

// List returns visible collections in declaration order. Hidden collections
// are skipped here and only here; direct lookup by id still works.
func (r *Registry) List() []*Collection {
	out := make([]*Collection, 0, len(r.order))
	for _, id := range r.order {
		c := r.byID[id]
		if c.Hidden() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ResolveProvider opens the provider bound to the requested capability.
// A single typed lookup: no probing across capability types.
func (r *Registry) ResolveProvider(ctx context.Context, id string, cap provider.Capability) (provider.Provider, error) {
	c, err := r.Collection(id)
	if err != nil {
		return nil, err
	}
	b, ok := c.Binding(cap)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s provider", ErrCapabilityUnsupported, id, cap)
	}
	return provider.Open(ctx, b)
}

// Ping opens every configured binding, reporting the first backend that
// cannot be reached. Used by the readiness probe.
func (r *Registry) Ping(ctx context.Context) error {
	for _, id := range r.order {
		for _, b := range r.byID[id].Providers {
			if _, err := provider.Open(ctx, b); err != nil {
				return fmt.Errorf("collection %s: %w", id, err)
			}
		}
	}
	return nil
}
