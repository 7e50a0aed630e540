package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// DefaultPrecision is the number of decimals used by the canonical text form.
const DefaultPrecision = 6

// coordinatePattern accepts "lat,lng" with an optional sign on each part and
// optional whitespace after the comma. Latitude is limited to [-90, 90] and
// longitude to [-180, 180].
var coordinatePattern = regexp.MustCompile(
	`^([-+]?(?:[1-8]?\d(?:\.\d+)?|90(?:\.0+)?)),\s*([-+]?(?:180(?:\.0+)?|(?:(?:1[0-7]\d)|(?:[1-9]?\d))(?:\.\d+)?))$`,
)

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewCoordinate builds a coordinate from stored values, rejecting values
// outside the WGS 84 ranges.
func NewCoordinate(lat, lng float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Coordinate{}, fmt.Errorf("%w: %f,%f out of range", ErrFormat, lat, lng)
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}

// Parse reads the "lat,lng" text form. Anything else, including the empty
// string and place names, yields ok == false.
func Parse(text string) (Coordinate, bool) {
	m := coordinatePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: lat, Lng: lng}, true
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Coordinate {
	c, ok := Parse(text)
	if !ok {
		panic(fmt.Sprintf("domain: invalid coordinate %q", text))
	}
	return c
}

// String returns the canonical "lat,lng" form.
func (c Coordinate) String() string {
	return c.Format(DefaultPrecision)
}

// Format renders "lat,lng" with the given number of decimals.
func (c Coordinate) Format(precision int) string {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return strconv.FormatFloat(c.Lat, 'f', precision, 64) + "," + strconv.FormatFloat(c.Lng, 'f', precision, 64)
}

// Point converts to an orb point (lng, lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// FromPoint converts an orb point (lng, lat order) to a coordinate.
func FromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lng: p.Lon()}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	SouthWest Coordinate `json:"south_west"`
	NorthEast Coordinate `json:"north_east"`
}

// Contains reports whether c lies inside the box, edges included.
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lng >= b.SouthWest.Lng && c.Lng <= b.NorthEast.Lng
}

// IsZero reports whether the box is unset.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Bound converts to an orb bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Point(), Max: b.NorthEast.Point()}
}

// BoundsAround returns a box of halfSpan degrees around c, clamped to the
// valid ranges.
func BoundsAround(c Coordinate, halfSpan float64) Bounds {
	return Bounds{
		SouthWest: Coordinate{Lat: math.Max(c.Lat-halfSpan, -90), Lng: math.Max(c.Lng-halfSpan, -180)},
		NorthEast: Coordinate{Lat: math.Min(c.Lat+halfSpan, 90), Lng: math.Min(c.Lng+halfSpan, 180)},
	}
}
