package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
)

// AttributeRegistry resolves and caches the attribute schemas of each
// entity class. Entries live until Invalidate or Reload.
type AttributeRegistry struct {
	source ports.SchemaSource

	mu      sync.RWMutex
	byClass map[string][]domain.AttributeSchema
}

// NewAttributeRegistry creates a new AttributeRegistry.
func NewAttributeRegistry(source ports.SchemaSource) *AttributeRegistry {
	return &AttributeRegistry{source: source, byClass: make(map[string][]domain.AttributeSchema)}
}

// Attributes returns every attribute of class, loading it on first use.
func (r *AttributeRegistry) Attributes(ctx context.Context, class string) ([]domain.AttributeSchema, error) {
	r.mu.RLock()
	attrs, ok := r.byClass[class]
	r.mu.RUnlock()
	if ok {
		return attrs, nil
	}

	attrs, err := r.source.ListAttributes(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("list attributes of %s: %w", class, err)
	}
	for i := range attrs {
		attrs[i].Class = class
	}

	r.mu.Lock()
	r.byClass[class] = attrs
	r.mu.Unlock()
	return attrs, nil
}

// GeolocationAttributes returns the coordinate-valued attributes of class.
func (r *AttributeRegistry) GeolocationAttributes(ctx context.Context, class string) ([]domain.AttributeSchema, error) {
	attrs, err := r.Attributes(ctx, class)
	if err != nil {
		return nil, err
	}
	var out []domain.AttributeSchema
	for _, a := range attrs {
		if a.IsGeolocation() {
			out = append(out, a)
		}
	}
	return out, nil
}

// Geolocation returns one geolocation attribute of class.
func (r *AttributeRegistry) Geolocation(ctx context.Context, class, code string) (domain.AttributeSchema, error) {
	attrs, err := r.Attributes(ctx, class)
	if err != nil {
		return domain.AttributeSchema{}, err
	}
	for _, a := range attrs {
		if a.Code != code {
			continue
		}
		if !a.IsGeolocation() {
			return domain.AttributeSchema{}, fmt.Errorf("%s.%s: %w", class, code, domain.ErrNotGeolocation)
		}
		return a, nil
	}
	return domain.AttributeSchema{}, fmt.Errorf("attribute %s.%s: %w", class, code, domain.ErrNotFound)
}

// ListAttributes returns the list attributes of class, in schema order.
func (r *AttributeRegistry) ListAttributes(ctx context.Context, class string) ([]domain.AttributeSchema, error) {
	attrs, err := r.Attributes(ctx, class)
	if err != nil {
		return nil, err
	}
	var out []domain.AttributeSchema
	for _, a := range attrs {
		if a.Is(domain.CapList) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Invalidate drops the cached schema of one class.
func (r *AttributeRegistry) Invalidate(class string) {
	r.mu.Lock()
	delete(r.byClass, class)
	r.mu.Unlock()
}

// Reload drops every cached schema.
func (r *AttributeRegistry) Reload() {
	r.mu.Lock()
	r.byClass = make(map[string][]domain.AttributeSchema)
	r.mu.Unlock()
}
