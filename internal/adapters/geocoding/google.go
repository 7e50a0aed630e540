package geocoding

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// GoogleGeocodeURL is the Google Geocoding API endpoint.
const GoogleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Google geocodes through the Google Geocoding API.
type Google struct {
	client
	endpoint string
	apiKey   string
	language string
}

// NewGoogle creates a Google geocoder. userLanguage uses the host's
// "EN US" form.
func NewGoogle(endpoint, apiKey, userLanguage string, timeout time.Duration) *Google {
	if endpoint == "" {
		endpoint = GoogleGeocodeURL
	}
	return &Google{
		client:   newClient("", timeout),
		endpoint: endpoint,
		apiKey:   apiKey,
		language: domain.GoogleLanguage(userLanguage),
	}
}

func (g *Google) Name() string { return "google" }

type googleGeocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *Google) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	if g.apiKey == "" {
		return domain.GeocodeResult{}, fmt.Errorf("%w: google geocoding needs an API key", domain.ErrConfiguration)
	}
	params := url.Values{}
	params.Add("address", address)
	params.Add("key", g.apiKey)
	if g.language != "" {
		params.Add("language", g.language)
	}
	if !bias.IsZero() {
		params.Add("bounds", fmt.Sprintf("%f,%f|%f,%f", bias.SouthWest.Lat, bias.SouthWest.Lng, bias.NorthEast.Lat, bias.NorthEast.Lng))
	}

	var resp googleGeocodeResponse
	if err := g.getJSON(ctx, g.endpoint, params, &resp); err != nil {
		return domain.GeocodeResult{}, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return domain.GeocodeResult{}, noMatch(address)
	default:
		return domain.GeocodeResult{}, fmt.Errorf("%w: %s %s", domain.ErrNetwork, resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return domain.GeocodeResult{}, noMatch(address)
	}

	first := resp.Results[0]
	pos, err := domain.NewCoordinate(first.Geometry.Location.Lat, first.Geometry.Location.Lng)
	if err != nil {
		return domain.GeocodeResult{}, err
	}
	return domain.GeocodeResult{Position: pos, DisplayName: first.FormattedAddress}, nil
}
