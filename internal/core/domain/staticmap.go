package domain

import "fmt"

// Static map URL templates. Arguments are lat, lng, width, height, key, zoom.
var staticMapTemplates = map[string]string{
	ProviderGoogleMaps: "https://maps.googleapis.com/maps/api/staticmap?markers=%[1]f,%[2]f&size=%[3]dx%[4]d&key=%[5]s",
	ProviderMapQuest:   "https://www.mapquestapi.com/staticmap/v5/map?locations=%[1]f,%[2]f&size=%[3]d,%[4]d&zoom=%[6]d&key=%[5]s",
	ProviderMapTiler:   "https://api.maptiler.com/maps/bright-v2/static/auto/%[3]dx%[4]d@2x.png?markers=%[1]f,%[2]f&key=%[5]s",
}

// StaticMapSettings is the part of the module settings static maps need.
type StaticMapSettings struct {
	Provider string
	APIKey   string
	// Template overrides the provider template when set.
	Template string
	Zoom     int
}

// StaticMapTemplate returns the template to use, or false when the provider
// has none or its key is missing.
func StaticMapTemplate(s StaticMapSettings) (string, bool) {
	if s.Template != "" {
		return s.Template, true
	}
	tmpl, ok := staticMapTemplates[s.Provider]
	if !ok || s.APIKey == "" {
		return "", false
	}
	return tmpl, true
}

// StaticMapURL substitutes c and the attribute size into the static map
// template. It never fails: no template means no URL.
func (a AttributeSchema) StaticMapURL(c Coordinate, s StaticMapSettings) (string, bool) {
	tmpl, ok := StaticMapTemplate(s)
	if !ok {
		return "", false
	}
	return fmt.Sprintf(tmpl, c.Lat, c.Lng, a.WidthPx(), a.HeightPx(), s.APIKey, s.Zoom), true
}
