package mapctl

import (
	"context"
	"fmt"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
)

// Capabilities lists the optional features of a provider.
type Capabilities struct {
	Clustering       bool
	DraggableMarkers bool
	Geocoding        bool
}

// Provider is a map backend family. Load must succeed before NewView.
type Provider interface {
	Kind() domain.ProviderKind
	Capabilities() Capabilities
	Load(ctx context.Context) error
	NewView(r Renderer, opts ViewOptions) (View, error)
	Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.Coordinate, error)
}

// NewProvider selects the implementation for spec. Static specs have no
// interactive provider and return domain.ErrConfiguration. geocoder may be
// nil when search is not offered.
func NewProvider(spec domain.ProviderSpec, assets *Assets, geocoder ports.Geocoder, userLanguage string) (Provider, error) {
	switch spec.Kind {
	case domain.KindGoogle:
		return &GoogleProvider{spec: spec, assets: assets, geocoder: geocoder, language: userLanguage}, nil
	case domain.KindVectorTile:
		return &VectorTileProvider{spec: spec, assets: assets, geocoder: geocoder}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not interactive", domain.ErrConfiguration, spec.Name)
	}
}

func geocode(ctx context.Context, g ports.Geocoder, address string, bias domain.Bounds) (domain.Coordinate, error) {
	if g == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: no geocoder", domain.ErrConfiguration)
	}
	res, err := g.Geocode(ctx, address, bias)
	if err != nil {
		return domain.Coordinate{}, err
	}
	return res.Position, nil
}
