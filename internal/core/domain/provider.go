package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider names accepted in configuration.
const (
	ProviderGoogleMaps    = "GoogleMaps"
	ProviderMapLibre      = "MapLibre"
	ProviderMapTiler      = "MapTiler"
	ProviderOpenStreetMap = "OpenStreetMap"
	ProviderMapQuest      = "MapQuest"
)

// ProviderKind selects the interactive backend family.
type ProviderKind int

const (
	// KindStatic renders no interactive map.
	KindStatic ProviderKind = iota
	// KindGoogle is the hosted Google Maps SDK.
	KindGoogle
	// KindVectorTile is a MapLibre-compatible vector tile map.
	KindVectorTile
)

func (k ProviderKind) String() string {
	switch k {
	case KindGoogle:
		return "google"
	case KindVectorTile:
		return "vectortile"
	default:
		return "static"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ProviderKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ProviderKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "google":
		*k = KindGoogle
	case "vectortile":
		*k = KindVectorTile
	case "static", "":
		*k = KindStatic
	default:
		return fmt.Errorf("%w: kind %q", ErrUnsupportedProvider, string(b))
	}
	return nil
}

// Style is a vector style reference: either a URL or an inline document.
type Style struct {
	URL      string         `json:"url,omitempty"`
	Document map[string]any `json:"document,omitempty"`
}

// IsZero reports whether no style is set.
func (s Style) IsZero() bool {
	return s.URL == "" && s.Document == nil
}

// MarshalJSON encodes the URL as a string or the document as an object.
func (s Style) MarshalJSON() ([]byte, error) {
	if s.Document != nil {
		return json.Marshal(s.Document)
	}
	return json.Marshal(s.URL)
}

// UnmarshalJSON accepts either form.
func (s *Style) UnmarshalJSON(b []byte) error {
	var url string
	if err := json.Unmarshal(b, &url); err == nil {
		*s = Style{URL: url}
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("style: %w", err)
	}
	*s = Style{Document: doc}
	return nil
}

// ProviderSpec is the tagged union resolved once from settings.
type ProviderSpec struct {
	Kind   ProviderKind `json:"kind"`
	Name   string       `json:"name"`
	APIKey string       `json:"apiKey,omitempty"`
	Style  *Style       `json:"style,omitempty"`
}

// Interactive reports whether p selects an interactive backend.
func (p ProviderSpec) Interactive() bool {
	return p.Kind != KindStatic
}

// OpenStreetMapStyle returns the inline raster style used for OpenStreetMap.
func OpenStreetMapStyle() map[string]any {
	return map[string]any{
		"version": 8,
		"glyphs":  "https://demotiles.maplibre.org/font/{fontstack}/{range}.pbf",
		"sources": map[string]any{
			"osm": map[string]any{
				"type":        "raster",
				"tiles":       []any{"https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
				"tileSize":    256,
				"attribution": `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
			},
		},
		"layers": []any{
			map[string]any{"id": "osm", "type": "raster", "source": "osm"},
		},
	}
}

const mapTilerStyleURL = "https://api.maptiler.com/maps/bright-v2/style.json?key=%s"

// ResolveStyle picks the vector style: an explicit setting wins, then the
// provider default. The zero Style means none could be derived.
func ResolveStyle(provider, apiKey, explicit string) Style {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if strings.HasPrefix(explicit, "{") {
			var doc map[string]any
			if err := json.Unmarshal([]byte(explicit), &doc); err == nil {
				return Style{Document: doc}
			}
		}
		return Style{URL: explicit}
	}
	switch provider {
	case ProviderOpenStreetMap:
		return Style{Document: OpenStreetMapStyle()}
	case ProviderMapTiler:
		if apiKey != "" {
			return Style{URL: fmt.Sprintf(mapTilerStyleURL, apiKey)}
		}
	}
	return Style{}
}

// ResolveProvider maps configuration onto the provider union. A provider
// that cannot run interactively resolves to KindStatic with an error that
// explains why; callers log it and degrade.
func ResolveProvider(name, apiKey, style string) (ProviderSpec, error) {
	spec := ProviderSpec{Kind: KindStatic, Name: name}
	switch name {
	case ProviderGoogleMaps:
		if apiKey == "" {
			return spec, fmt.Errorf("%w: %s requires an api key", ErrConfiguration, name)
		}
		spec.Kind = KindGoogle
		spec.APIKey = apiKey
		return spec, nil
	case ProviderMapLibre, ProviderMapTiler, ProviderOpenStreetMap, ProviderMapQuest:
		s := ResolveStyle(name, apiKey, style)
		if s.IsZero() {
			return spec, fmt.Errorf("%w: %s requires a style", ErrConfiguration, name)
		}
		spec.Kind = KindVectorTile
		spec.APIKey = apiKey
		spec.Style = &s
		return spec, nil
	default:
		return spec, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}

// GoogleLanguage converts a host language code such as "EN US" or "PT BR"
// into the value of the Maps script "language" parameter.
func GoogleLanguage(userLanguage string) string {
	switch strings.ToUpper(strings.TrimSpace(userLanguage)) {
	case "PT BR":
		return "pt-br"
	case "ZH CN":
		return "zh-cn"
	}
	lang, _, _ := strings.Cut(strings.TrimSpace(userLanguage), " ")
	return strings.ToLower(lang)
}

// GoogleScriptURL is the Maps JavaScript API loader URL.
func GoogleScriptURL(apiKey, userLanguage string) string {
	return fmt.Sprintf("https://maps.googleapis.com/maps/api/js?key=%s&callback=$.noop&language=%s&libraries=marker",
		apiKey, GoogleLanguage(userLanguage))
}

// MapLibre GL client assets loaded for vector tile providers.
const (
	MapLibreScriptURL     = "https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.js"
	MapLibreStylesheetURL = "https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.css"
)
