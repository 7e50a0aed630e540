package geocoding

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// NominatimURL is the public OpenStreetMap search endpoint.
const NominatimURL = "https://nominatim.openstreetmap.org/search"

// Nominatim geocodes through an OpenStreetMap Nominatim server.
type Nominatim struct {
	client
	endpoint string
}

// NewNominatim creates a Nominatim geocoder. Nominatim's usage policy
// requires an identifying User-Agent.
func NewNominatim(endpoint, userAgent string, timeout time.Duration) *Nominatim {
	if endpoint == "" {
		endpoint = NominatimURL
	}
	return &Nominatim{client: newClient(userAgent, timeout), endpoint: endpoint}
}

func (n *Nominatim) Name() string { return "nominatim" }

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Geocode returns the best match for address, preferring results inside
// bias when it is set.
func (n *Nominatim) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	params := url.Values{}
	params.Add("q", address)
	params.Add("format", "json")
	params.Add("limit", "1")
	if !bias.IsZero() {
		params.Add("viewbox", fmt.Sprintf("%f,%f,%f,%f", bias.SouthWest.Lng, bias.NorthEast.Lat, bias.NorthEast.Lng, bias.SouthWest.Lat))
	}

	var results []nominatimResult
	if err := n.getJSON(ctx, n.endpoint, params, &results); err != nil {
		return domain.GeocodeResult{}, err
	}
	if len(results) == 0 {
		return domain.GeocodeResult{}, noMatch(address)
	}

	pos, err := parseLatLng(results[0].Lat, results[0].Lon)
	if err != nil {
		return domain.GeocodeResult{}, err
	}
	return domain.GeocodeResult{Position: pos, DisplayName: results[0].DisplayName}, nil
}

func parseLatLng(lat, lng string) (domain.Coordinate, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: latitude %q", domain.ErrNetwork, lat)
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: longitude %q", domain.ErrNetwork, lng)
	}
	return domain.NewCoordinate(la, lo)
}
