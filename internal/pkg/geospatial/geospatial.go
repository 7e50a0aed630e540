package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// MaxMercatorLat is the latitude limit of the web mercator square.
const MaxMercatorLat = 85.05112878

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Coordinate) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// BoundingBox returns a box of radiusMeters around c.
func BoundingBox(c domain.Coordinate, radiusMeters float64) domain.Bounds {
	b := geo.NewBoundAroundPoint(c.Point(), radiusMeters)
	return domain.Bounds{
		SouthWest: domain.FromPoint(b.Min),
		NorthEast: domain.FromPoint(b.Max),
	}
}

// ToUnit projects p onto the unit web mercator square: x grows east and
// y grows south, both in [0, 1].
func ToUnit(p orb.Point) (x, y float64) {
	lat := math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, p.Lat()))
	x = p.Lon()/360 + 0.5
	sin := math.Sin(lat * math.Pi / 180)
	y = 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	return clamp01(x), clamp01(y)
}

// FromUnit is the inverse of ToUnit.
func FromUnit(x, y float64) orb.Point {
	lng := (x - 0.5) * 360
	y2 := (180 - y*360) * math.Pi / 180
	lat := 360*math.Atan(math.Exp(y2))/math.Pi - 90
	return orb.Point{lng, lat}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
