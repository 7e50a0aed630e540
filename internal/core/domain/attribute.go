package domain

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Default map size of a geolocation field, in pixels.
const (
	DefaultWidth  = 200
	DefaultHeight = 150
)

// Capability tags an attribute with behaviour decided at schema-build time.
type Capability uint8

const (
	// CapGeolocation marks a coordinate-valued attribute.
	CapGeolocation Capability = 1 << iota
	// CapList marks an attribute shown in tooltips and list views.
	CapList
)

// AttributeSchema describes one field of one entity class.
type AttributeSchema struct {
	Class          string     `json:"class"`
	Code           string     `json:"code"`
	Label          string     `json:"label"`
	Width          int        `json:"width,omitempty"`
	Height         int        `json:"height,omitempty"`
	DisplayRawText bool       `json:"display"`
	Editable       bool       `json:"editable"`
	Capabilities   Capability `json:"-"`
}

// Is reports whether the attribute carries the given capability.
func (a AttributeSchema) Is(c Capability) bool {
	return a.Capabilities&c != 0
}

// IsGeolocation reports whether the attribute holds a Coordinate.
func (a AttributeSchema) IsGeolocation() bool {
	return a.Is(CapGeolocation)
}

// WidthPx returns the configured width or DefaultWidth.
func (a AttributeSchema) WidthPx() int {
	if a.Width > 0 {
		return a.Width
	}
	return DefaultWidth
}

// HeightPx returns the configured height or DefaultHeight.
func (a AttributeSchema) HeightPx() int {
	if a.Height > 0 {
		return a.Height
	}
	return DefaultHeight
}

// Column is one persisted column of an attribute.
type Column struct {
	Name string
	Type string
}

// LatColumn is the latitude column for the attribute, optionally prefixed.
func (a AttributeSchema) LatColumn(prefix string) string { return prefix + a.Code + "_lat" }

// LngColumn is the longitude column for the attribute, optionally prefixed.
func (a AttributeSchema) LngColumn(prefix string) string { return prefix + a.Code + "_lng" }

// SQLColumns lists the two numeric columns backing the attribute.
func (a AttributeSchema) SQLColumns() []Column {
	return []Column{
		{Name: a.LatColumn(""), Type: "DECIMAL(8,6)"},
		{Name: a.LngColumn(""), Type: "DECIMAL(9,6)"},
	}
}

// SQLExpressions maps the attribute's sub-expressions to column names:
// "" is the whole value, "latitude" and "longitude" the parts.
func (a AttributeSchema) SQLExpressions(prefix string) map[string]string {
	return map[string]string{
		"":          a.LatColumn(prefix) + ", " + a.LngColumn(prefix),
		"latitude":  a.LatColumn(prefix),
		"longitude": a.LngColumn(prefix),
	}
}

// FromColumns rebuilds the value from a fetched row. Both columns must be
// present in the row; a NULL in either means no value.
func (a AttributeSchema) FromColumns(row map[string]*float64, prefix string) (Coordinate, bool, error) {
	lat, ok := row[a.LatColumn(prefix)]
	if !ok {
		return Coordinate{}, false, fmt.Errorf("%w: %s", ErrMissingColumn, a.LatColumn(prefix))
	}
	lng, ok := row[a.LngColumn(prefix)]
	if !ok {
		return Coordinate{}, false, fmt.Errorf("%w: %s", ErrMissingColumn, a.LngColumn(prefix))
	}
	if lat == nil || lng == nil {
		return Coordinate{}, false, nil
	}
	c, err := NewCoordinate(*lat, *lng)
	if err != nil {
		return Coordinate{}, false, err
	}
	return c, true, nil
}

// SQLValues returns the column values to store for c. A nil c stores NULLs.
func (a AttributeSchema) SQLValues(c *Coordinate) map[string]any {
	if c == nil {
		return map[string]any{a.LatColumn(""): nil, a.LngColumn(""): nil}
	}
	return map[string]any{a.LatColumn(""): c.Lat, a.LngColumn(""): c.Lng}
}

// MakeValue turns submitted text into a value. Unparsable text is no value.
func (a AttributeSchema) MakeValue(text string) *Coordinate {
	c, ok := Parse(text)
	if !ok {
		return nil
	}
	return &c
}

// Validate checks submitted text. Empty text is valid and clears the value.
func (a AttributeSchema) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if _, ok := Parse(text); !ok {
		return fmt.Errorf("%w: %q", ErrFormat, text)
	}
	return nil
}

// ImportColumns describes the single text column used by bulk imports.
func (a AttributeSchema) ImportColumns() []Column {
	return []Column{{Name: a.Code, Type: "VARCHAR(25)"}}
}

// FromImport reads the value from an import row keyed by column name.
func (a AttributeSchema) FromImport(row map[string]string, prefix string) (*Coordinate, error) {
	text, ok := row[prefix+a.Code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, prefix+a.Code)
	}
	return a.MakeValue(text), nil
}

// EditValue is the text placed in the bound form field.
func (a AttributeSchema) EditValue(c *Coordinate) string {
	if c == nil {
		return ""
	}
	return c.String()
}

// AsCSV renders the raw value, wrapped in the text qualifier when the
// separator itself contains a comma.
func (a AttributeSchema) AsCSV(c *Coordinate, separator, qualifier string) string {
	raw := a.EditValue(c)
	if strings.Contains(separator, ",") {
		return qualifier + raw + qualifier
	}
	return raw
}

// HTMLOptions controls AsHTML.
type HTMLOptions struct {
	// StaticMapURL is the resolved image URL, empty when none is available.
	StaticMapURL string
	// DisplayCoordinates adds the raw "lat,lng" text below the image.
	DisplayCoordinates bool
	// UndefinedLabel is shown for an absent value.
	UndefinedLabel string
}

// AsHTML renders the read-only representation of a value.
func (a AttributeSchema) AsHTML(c *Coordinate, opts HTMLOptions) string {
	if c == nil {
		return "<em>" + html.EscapeString(opts.UndefinedLabel) + "</em>"
	}
	text := html.EscapeString(c.String())
	if opts.StaticMapURL == "" {
		return "<pre>" + text + "</pre>"
	}
	var b strings.Builder
	b.WriteString(`<img src="`)
	b.WriteString(html.EscapeString(opts.StaticMapURL))
	b.WriteString(`" width="`)
	b.WriteString(strconv.Itoa(a.WidthPx()))
	b.WriteString(`" height="`)
	b.WriteString(strconv.Itoa(a.HeightPx()))
	b.WriteString(`" title="`)
	b.WriteString(text)
	b.WriteString(`"/>`)
	if opts.DisplayCoordinates {
		b.WriteString("<pre>" + text + "</pre>")
	}
	return b.String()
}

// Template verbs understood by ForTemplate.
const (
	VerbWGS84         = "wgs_84"
	VerbRD            = "rd"
	VerbRijksdriehoek = "rijksdriehoek"
	VerbHTML          = "html"
)

// ForTemplate renders a value for a notification or report template.
// An absent value renders as the empty string.
func (a AttributeSchema) ForTemplate(c *Coordinate, verb string, opts HTMLOptions) (string, error) {
	switch verb {
	case "", VerbWGS84:
		if c == nil {
			return "", nil
		}
		return c.String(), nil
	case VerbRD, VerbRijksdriehoek:
		if c == nil {
			return "", nil
		}
		return c.ToRD().String(), nil
	case VerbHTML:
		return a.AsHTML(c, opts), nil
	default:
		return "", fmt.Errorf("%w: unknown template verb %q", ErrFormat, verb)
	}
}
