package geocoding

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// MapTilerGeocodeURL is the MapTiler forward geocoding endpoint prefix.
const MapTilerGeocodeURL = "https://api.maptiler.com/geocoding/"

// MapTiler geocodes through the MapTiler Geocoding API, which answers with
// a GeoJSON feature collection.
type MapTiler struct {
	client
	endpoint string
	apiKey   string
}

func NewMapTiler(endpoint, apiKey string, timeout time.Duration) *MapTiler {
	if endpoint == "" {
		endpoint = MapTilerGeocodeURL
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &MapTiler{client: newClient("", timeout), endpoint: endpoint, apiKey: apiKey}
}

func (m *MapTiler) Name() string { return "maptiler" }

type mapTilerResponse struct {
	Features []struct {
		PlaceName string           `json:"place_name"`
		Geometry  geojson.Geometry `json:"geometry"`
	} `json:"features"`
}

func (m *MapTiler) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	if m.apiKey == "" {
		return domain.GeocodeResult{}, fmt.Errorf("%w: maptiler geocoding needs an API key", domain.ErrConfiguration)
	}
	params := url.Values{}
	params.Add("key", m.apiKey)
	params.Add("limit", "1")
	if !bias.IsZero() {
		params.Add("bbox", fmt.Sprintf("%f,%f,%f,%f", bias.SouthWest.Lng, bias.SouthWest.Lat, bias.NorthEast.Lng, bias.NorthEast.Lat))
	}

	var resp mapTilerResponse
	if err := m.getJSON(ctx, m.endpoint+url.PathEscape(address)+".json", params, &resp); err != nil {
		return domain.GeocodeResult{}, err
	}

	for _, f := range resp.Features {
		p, ok := f.Geometry.Coordinates.(orb.Point)
		if !ok {
			continue
		}
		pos, err := domain.NewCoordinate(p.Lat(), p.Lon())
		if err != nil {
			return domain.GeocodeResult{}, err
		}
		return domain.GeocodeResult{Position: pos, DisplayName: f.PlaceName}, nil
	}
	return domain.GeocodeResult{}, noMatch(address)
}
